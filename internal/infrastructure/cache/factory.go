package cache

import (
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores groups the cache-backed collaborators of the fee services
type Stores struct {
	YearLevels  fee.YearLevelNameCache
	Idempotency shared.IdempotencyStore
	Backend     string
}

// NewStores selects the Redis or in-memory implementations. client may be
// nil, in which case the in-memory stores are used regardless of backend.
func NewStores(cfg config.CacheConfig, client redis.UniversalClient, logger *zap.Logger) *Stores {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "redis" && client != nil {
		logger.Info("Using Redis cache backend")
		return &Stores{
			YearLevels:  NewRedisYearLevelCache(client, logger),
			Idempotency: NewRedisIdempotencyStore(client),
			Backend:     "redis",
		}
	}
	if cfg.Backend == "redis" {
		logger.Warn("Redis cache backend requested but no client is available; " +
			"falling back to in-memory stores. Webhook de-duplication is per instance.")
	}
	return &Stores{
		YearLevels:  NewInMemoryYearLevelCache(cfg.YearLevelMaxLen),
		Idempotency: NewInMemoryIdempotencyStore(5 * time.Minute),
		Backend:     "memory",
	}
}

// Close releases the stores
func (s *Stores) Close() error {
	return s.Idempotency.Close()
}
