// import-prices loads a published MRP list (.json or .xlsx) into the price
// list table and drops the cached MRP map.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/import-prices -file prices.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"liquorstock/backend/internal/cache"
	"liquorstock/backend/internal/config"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/pricing"
	"liquorstock/backend/internal/service"
	pgstore "liquorstock/backend/internal/store/postgres"
)

func main() {
	path := flag.String("file", "", "Required: price list file (.json or .xlsx)")
	dryRun := flag.Bool("dry-run", false, "Parse and report without writing")
	flag.Parse()

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		os.Exit(1)
	}
	if err := run(*path, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "import-prices: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, dryRun bool) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	items, err := readPriceList(path)
	if err != nil {
		return err
	}
	unique := pricing.Dedupe(items)
	log.Infow("price list parsed", "file", path, "parsed", len(items), "unique", len(unique))
	if dryRun {
		return nil
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	opts := service.Options{RetailerCode: cfg.RetailerCode}
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		opts.Prices = pricing.NewReference(cache.NewRedisPriceCache(client), cfg.PriceCacheTTL)
	}
	svc := service.New(pg, opts)

	ctx = service.WithActor(ctx, domain.Principal{Username: "import-prices", Role: domain.RoleAdmin})
	result, err := svc.ImportPriceList(ctx, items)
	if err != nil {
		return err
	}
	log.Infow("price list imported", "inserted", result.Inserted, "updated", result.Updated)
	return nil
}

func readPriceList(path string) ([]domain.PriceListItem, error) {
	var parse func(io.Reader) ([]domain.PriceListItem, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		parse = pricing.ParseXLSX
	case ".json":
		parse = pricing.ParseJSON
	default:
		return nil, fmt.Errorf("unsupported price list format %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}
