package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/domain/providers"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, providers.ErrCacheMiss
}

func (c *mapCache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	return err == nil, nil
}

func TestCacheWarmingService_WarmsFirstPagePerCategory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	for i := 0; i < 12; i++ {
		seedEstablishment(mem, fmt.Sprintf("food-%02d", i), "Food")
	}
	for i := 0; i < 3; i++ {
		seedEstablishment(mem, fmt.Sprintf("bar-%d", i), "Bars")
	}

	cache := &mapCache{data: map[string][]byte{}}
	cached := store.NewCachedStore(mem, cache, nil, services.CollectionEstablishments)
	warmer := services.NewCacheWarmingService(cached, services.NewChunkedQueryService(cached, nil), 10)

	warmed, err := warmer.WarmCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, warmed)
	assert.Len(t, cache.data, 13)

	mem.ResetCalls()
	doc, err := cached.Get(ctx, services.CollectionEstablishments, "bar-2")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Zero(t, mem.Calls(store.OpGet))
}

func TestCacheWarmingService_SkipsFailingCategory(t *testing.T) {
	mem := store.NewMemoryStore()
	seedEstablishment(mem, "food-1", "Food")
	mem.FailWith(store.OpQueryIn, fmt.Errorf("boom"))

	warmer := services.NewCacheWarmingService(mem, services.NewChunkedQueryService(mem, nil), 0)

	warmed, err := warmer.WarmCache(context.Background())
	require.NoError(t, err)
	assert.Zero(t, warmed)
}
