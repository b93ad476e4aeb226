package bundle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
)

type countingCatalog struct {
	mu    sync.Mutex
	calls int
	inner bundle.Catalog
}

func (c *countingCatalog) FindByNumber(ctx context.Context, number string) (*cart.Product, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.FindByNumber(ctx, number)
}

func TestCachedCatalog(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingCatalog{inner: bundle.StaticCatalog{"C1": {ID: "p1", ProductNumber: "C1", TaxRate: dec("19")}}}
	catalog := bundle.CachedCatalog{Next: inner, Cache: bundle.NewCache(client, time.Minute)}
	ctx := context.Background()

	p, err := catalog.FindByNumber(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)

	p, err = catalog.FindByNumber(ctx, "C1")
	require.NoError(t, err)
	require.True(t, dec("19").Equal(p.TaxRate))
	require.Equal(t, 1, inner.calls)
	require.True(t, mr.Exists("taxbridge:product:C1"))

	missing, err := catalog.FindByNumber(ctx, "NOPE")
	require.NoError(t, err)
	require.Nil(t, missing)
	_, err = catalog.FindByNumber(ctx, "NOPE")
	require.NoError(t, err)
	require.Equal(t, 3, inner.calls, "misses are not cached")
}
