package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const yearLevelKeyPrefix = "fees:yearlevel:name:"

// Stats are hit/miss counters for monitoring
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

type nameEntry struct {
	name      string
	expiresAt time.Time
}

// InMemoryYearLevelCache is a bounded TTL cache of year-level names.
// When full, the entry closest to expiry is evicted.
type InMemoryYearLevelCache struct {
	mu         sync.Mutex
	entries    map[int64]nameEntry
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewInMemoryYearLevelCache creates a cache holding at most maxEntries names
func NewInMemoryYearLevelCache(maxEntries int) *InMemoryYearLevelCache {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &InMemoryYearLevelCache{
		entries:    make(map[int64]nameEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached name for id
func (c *InMemoryYearLevelCache) Get(_ context.Context, id int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if ok && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.name, true
	}
	if ok {
		delete(c.entries, id)
	}
	c.misses.Add(1)
	return "", false
}

// Set stores name for id for ttl
func (c *InMemoryYearLevelCache) Set(_ context.Context, id int64, name string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[id] = nameEntry{name: name, expiresAt: now.Add(ttl)}
}

// Invalidate drops every entry
func (c *InMemoryYearLevelCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]nameEntry)
	return nil
}

// Stats returns hit/miss counters
func (c *InMemoryYearLevelCache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}

// evictLocked removes expired entries, or the one expiring soonest if none are expired
func (c *InMemoryYearLevelCache) evictLocked(now time.Time) {
	var (
		victim  int64
		soonest time.Time
		found   bool
	)
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			continue
		}
		if !found || e.expiresAt.Before(soonest) {
			victim, soonest, found = id, e.expiresAt, true
		}
	}
	if len(c.entries) >= c.maxEntries && found {
		delete(c.entries, victim)
	}
}

var _ fee.YearLevelNameCache = (*InMemoryYearLevelCache)(nil)

// RedisYearLevelCache shares year-level names across instances.
// Redis failures degrade to cache misses.
type RedisYearLevelCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisYearLevelCache creates a cache on an existing client
func NewRedisYearLevelCache(client redis.UniversalClient, logger *zap.Logger) *RedisYearLevelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisYearLevelCache{client: client, logger: logger}
}

func yearLevelKey(id int64) string {
	return yearLevelKeyPrefix + strconv.FormatInt(id, 10)
}

// Get returns the cached name for id
func (c *RedisYearLevelCache) Get(ctx context.Context, id int64) (string, bool) {
	name, err := c.client.Get(ctx, yearLevelKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Year level cache read failed", zap.Int64("year_level_id", id), zap.Error(err))
		}
		return "", false
	}
	return name, true
}

// Set stores name for id for ttl
func (c *RedisYearLevelCache) Set(ctx context.Context, id int64, name string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, yearLevelKey(id), name, ttl).Err(); err != nil {
		c.logger.Warn("Year level cache write failed", zap.Int64("year_level_id", id), zap.Error(err))
	}
}

// Invalidate deletes every cached year-level name
func (c *RedisYearLevelCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, yearLevelKeyPrefix+"*", 100).Iterator()
	keys := make([]string, 0, 64)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan year level cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear year level cache: %w", err)
	}
	return nil
}

var _ fee.YearLevelNameCache = (*RedisYearLevelCache)(nil)
