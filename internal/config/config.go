package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin  string        `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LoginAttempts  int           `envconfig:"LOGIN_ATTEMPTS_PER_MINUTE" default:"5"`
	Production     bool          `envconfig:"PRODUCTION" default:"false"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PriceCacheTTL time.Duration `envconfig:"PRICE_CACHE_TTL" default:"10m"`
	LockTTL       time.Duration `envconfig:"SUBMISSION_LOCK_TTL" default:"30s"`

	RetailerCode string `envconfig:"RETAILER_CODE" default:"2500552"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`

	AdminUser      string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPass      string `envconfig:"ADMIN_PASS"`
	OwnerUser      string `envconfig:"OWNER_USER" default:"owner"`
	OwnerPass      string `envconfig:"OWNER_PASS"`
	SupervisorUser string `envconfig:"SUPERVISOR_USER" default:"supervisor"`
	SupervisorPass string `envconfig:"SUPERVISOR_PASS"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AdminUser = strings.TrimSpace(cfg.AdminUser)
	cfg.OwnerUser = strings.TrimSpace(cfg.OwnerUser)
	cfg.SupervisorUser = strings.TrimSpace(cfg.SupervisorUser)
	cfg.RetailerCode = strings.TrimSpace(cfg.RetailerCode)
	if cfg.RetailerCode == "" {
		cfg.RetailerCode = "2500552"
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.PriceCacheTTL <= 0 {
		cfg.PriceCacheTTL = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
