package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/backend/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisPriceCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisPriceCache(client)
}

func TestRedisPriceCacheRoundTripWithTTL(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, PriceListKey)
	require.NoError(t, err)
	assert.False(t, ok)

	items := []domain.PriceListItem{{BrandNumber: "5016", VolumeML: 750, MRP: decimal.RequireFromString("1120.50")}}
	require.NoError(t, c.Set(ctx, PriceListKey, items, time.Minute))

	got, ok, err := c.Get(ctx, PriceListKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].MRP.Equal(items[0].MRP))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, PriceListKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPriceCacheDelete(t *testing.T) {
	_, c := newRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, PriceListKey, []domain.PriceListItem{}, time.Minute))
	require.NoError(t, c.Delete(ctx, PriceListKey))
	_, ok, err := c.Get(ctx, PriceListKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLockerSerializesPerKey(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Obtain(context.Background(), "sell-report")
	require.NoError(t, err)

	other, err := l.Obtain(context.Background(), "sell-finance")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "sell-report")
	assert.True(t, errors.Is(err, ErrLockNotObtained))

	release()
	release()
	again, err := l.Obtain(context.Background(), "sell-report")
	require.NoError(t, err)
	again()
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, 200*time.Millisecond)
	ctx := context.Background()
	release, err := l.Obtain(ctx, "sell-report")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:sell-report"))

	_, err = l.Obtain(ctx, "sell-report")
	assert.True(t, errors.Is(err, ErrLockNotObtained))

	release()
	assert.False(t, mr.Exists("lock:sell-report"))
	release2, err := l.Obtain(ctx, "sell-report")
	require.NoError(t, err)
	release2()
}
