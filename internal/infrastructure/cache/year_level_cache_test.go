package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryYearLevelCache_GetSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := NewInMemoryYearLevelCache(10)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx, 3)
	assert.False(t, ok)

	c.Set(ctx, 3, "Grade 3", time.Minute)
	name, ok := c.Get(ctx, 3)
	require.True(t, ok)
	assert.Equal(t, "Grade 3", name)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, 3)
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, 0, st.Entries)
}

func TestInMemoryYearLevelCache_Bounded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := NewInMemoryYearLevelCache(2)
	c.now = func() time.Time { return now }

	c.Set(ctx, 1, "Grade 1", time.Minute)
	c.Set(ctx, 2, "Grade 2", time.Hour)
	c.Set(ctx, 3, "Grade 3", time.Hour)

	assert.Equal(t, 2, c.Stats().Entries)
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok = c.Get(ctx, 3)
	assert.True(t, ok)

	// overwriting an existing key does not evict
	c.Set(ctx, 3, "Grade III", time.Hour)
	name, _ := c.Get(ctx, 3)
	assert.Equal(t, "Grade III", name)
	_, ok = c.Get(ctx, 2)
	assert.True(t, ok)
}

func TestInMemoryYearLevelCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryYearLevelCache(0)
	c.Set(ctx, 1, "Grade 1", time.Hour)
	c.Set(ctx, 2, "Grade 2", 0)

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestNewStores_FallsBackToMemory(t *testing.T) {
	stores := NewStores(config.CacheConfig{Backend: "redis", YearLevelMaxLen: 8}, nil, nil)
	defer stores.Close()

	assert.Equal(t, "memory", stores.Backend)
	assert.IsType(t, &InMemoryYearLevelCache{}, stores.YearLevels)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
}
