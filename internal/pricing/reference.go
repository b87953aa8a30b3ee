// Package pricing resolves the MRP of a brand and bottle size from the price list.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/cache"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
)

type MRPKey struct {
	BrandNumber string
	VolumeML    int
	PackType    string
}

func KeyOf(brandNumber string, volumeML int) MRPKey {
	return MRPKey{BrandNumber: strings.TrimSpace(brandNumber), VolumeML: volumeML}
}

// PackKeyOf narrows KeyOf to one pack type (glass, can, pet).
func PackKeyOf(brandNumber string, volumeML int, packType string) MRPKey {
	key := KeyOf(brandNumber, volumeML)
	key.PackType = strings.ToUpper(strings.TrimSpace(packType))
	return key
}

type MRPMap map[MRPKey]decimal.Decimal

// BuildMRPMap keys the price list by brand and volume, and by brand, volume
// and pack type. The first row for a key wins.
func BuildMRPMap(items []domain.PriceListItem) MRPMap {
	m := make(MRPMap, 2*len(items))
	for _, item := range items {
		keys := []MRPKey{KeyOf(item.BrandNumber, item.VolumeML)}
		if pack := PackKeyOf(item.BrandNumber, item.VolumeML, item.PackType); pack.PackType != "" {
			keys = append(keys, pack)
		}
		for _, key := range keys {
			if _, exists := m[key]; !exists {
				m[key] = item.MRP
			}
		}
	}
	return m
}

// Lookup returns a null MRP for brands missing from the price list.
func (m MRPMap) Lookup(brandNumber string, volumeML int) decimal.NullDecimal {
	return m.get(KeyOf(brandNumber, volumeML))
}

// LookupPack matches on pack type as well. A blank pack type falls back to
// Lookup.
func (m MRPMap) LookupPack(brandNumber string, volumeML int, packType string) decimal.NullDecimal {
	key := PackKeyOf(brandNumber, volumeML, packType)
	if key.PackType == "" {
		return m.Lookup(brandNumber, volumeML)
	}
	return m.get(key)
}

func (m MRPMap) get(key MRPKey) decimal.NullDecimal {
	mrp, ok := m[key]
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(mrp)
}

type Loader func(ctx context.Context) ([]domain.PriceListItem, error)

// Reference serves the MRP map, reading the price list through a cache.
type Reference struct {
	cache cache.PriceCache
	ttl   time.Duration
}

func NewReference(priceCache cache.PriceCache, ttl time.Duration) *Reference {
	if priceCache == nil {
		priceCache = cache.NoopPriceCache{}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Reference{cache: priceCache, ttl: ttl}
}

func (r *Reference) MRPMap(ctx context.Context, load Loader) (MRPMap, error) {
	if cached, ok, err := r.cache.Get(ctx, cache.PriceListKey); err == nil && ok {
		return BuildMRPMap(cached), nil
	} else if err != nil {
		logger.Warn(ctx, "price cache read failed", "error", err)
	}

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}

	slim := make([]domain.PriceListItem, 0, len(items))
	for _, item := range items {
		slim = append(slim, domain.PriceListItem{BrandNumber: item.BrandNumber, PackType: item.PackType, VolumeML: item.VolumeML, MRP: item.MRP})
	}
	if err := r.cache.Set(ctx, cache.PriceListKey, slim, r.ttl); err != nil {
		logger.Warn(ctx, "price cache write failed", "error", err)
	}
	return BuildMRPMap(items), nil
}

func (r *Reference) Invalidate(ctx context.Context) {
	if err := r.cache.Delete(ctx, cache.PriceListKey); err != nil {
		logger.Warn(ctx, "price cache invalidation failed", "error", err)
	}
}
