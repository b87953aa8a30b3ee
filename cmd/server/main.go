package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"liquorstock/backend/internal/cache"
	"liquorstock/backend/internal/config"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/httpapi"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/pricing"
	"liquorstock/backend/internal/service"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/store/memory"
	pgstore "liquorstock/backend/internal/store/postgres"
)

type repository interface {
	store.Repository
	store.UserStore
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "liquorstock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo repository
	closers := make([]func(), 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.EnsureSchema(startupCtx); err != nil {
			pg.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Infow("repository ready", "backend", "postgres")
	} else {
		repo = memory.NewSeeded()
		log.Infow("repository ready", "backend", "memory")
	}

	opts := service.Options{RetailerCode: cfg.RetailerCode}
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		priceCache := cache.NewRedisPriceCache(client)
		if err := priceCache.Ping(startupCtx); err != nil {
			log.Warnw("redis unavailable, prices and locks stay in process", "error", err)
			_ = client.Close()
		} else {
			opts.Prices = pricing.NewReference(priceCache, cfg.PriceCacheTTL)
			opts.Locker = cache.NewRedisLocker(client, cfg.LockTTL)
			closers = append(closers, func() { _ = client.Close() })
			log.Infow("cache ready", "backend", "redis", "addr", cfg.RedisAddr)
		}
	}

	svc := service.New(repo, opts)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	if err := auth.SyncUsers(startupCtx, accountsFrom(cfg)); err != nil {
		return fmt.Errorf("sync users: %w", err)
	}
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		RequestTimeout: cfg.RequestTimeout,
		LoginAttempts:  cfg.LoginAttempts,
		Production:     cfg.Production,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("liquorstock backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	for _, closeFn := range closers {
		closeFn()
	}
	log.Infow("server stopped")
	return err
}

func accountsFrom(cfg config.Config) []httpapi.Account {
	return []httpapi.Account{
		{Username: cfg.AdminUser, Password: cfg.AdminPass, Role: domain.RoleAdmin},
		{Username: cfg.OwnerUser, Password: cfg.OwnerPass, Role: domain.RoleOwner},
		{Username: cfg.SupervisorUser, Password: cfg.SupervisorPass, Role: domain.RoleSupervisor},
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminPass == "" {
		return fmt.Errorf("ADMIN_PASS must be set")
	}
	for name, pass := range map[string]string{
		"ADMIN_PASS":      cfg.AdminPass,
		"OWNER_PASS":      cfg.OwnerPass,
		"SUPERVISOR_PASS": cfg.SupervisorPass,
	} {
		if pass == "" {
			continue
		}
		if err := validatePasswordStrength(pass); err != nil {
			return fmt.Errorf("%s is too weak: %w", name, err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, passwords made of one
// repeated character and a few well-known defaults.
func validatePasswordStrength(pass string) error {
	if len(pass) < 8 {
		return fmt.Errorf("at least 8 characters required")
	}
	known := map[string]bool{
		"password": true, "password1": true, "12345678": true, "123456789": true,
		"admin123": true, "changeme": true, "qwerty123": true, "liquorstock": true,
	}
	if known[strings.ToLower(pass)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(pass); i++ {
		if pass[i] != pass[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}
	return nil
}
