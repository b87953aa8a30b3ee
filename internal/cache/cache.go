package cache

import (
	"context"
	"time"

	"liquorstock/backend/internal/domain"
)

const PriceListKey = "liquorstock:price-list:mrp"

// PriceCache keeps the MRP entries of the price list between requests.
type PriceCache interface {
	Get(ctx context.Context, key string) ([]domain.PriceListItem, bool, error)
	Set(ctx context.Context, key string, items []domain.PriceListItem, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopPriceCache struct{}

func (NoopPriceCache) Get(_ context.Context, _ string) ([]domain.PriceListItem, bool, error) {
	return nil, false, nil
}

func (NoopPriceCache) Set(_ context.Context, _ string, _ []domain.PriceListItem, _ time.Duration) error {
	return nil
}

func (NoopPriceCache) Delete(_ context.Context, _ string) error {
	return nil
}
