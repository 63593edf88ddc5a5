package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/localstore-backend/internal/cart"
	"github.com/angelmondragon/localstore-backend/internal/cron"
	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/redis"
)

// newCartStore picks the backend named by LOCALSTORE_CART_STORE.
func newCartStore(cfg config.CartConfig, dbClient *db.Client, redisClient *redis.Client) (cart.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case config.CartStorePostgres:
		if dbClient == nil {
			return nil, fmt.Errorf("database required for %s cart store", cfg.Store)
		}
		return cart.NewRepository(dbClient.DB()), nil
	case config.CartStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis required for %s cart store", cfg.Store)
		}
		return cart.NewRedisStore(redisClient, time.Now)
	case config.CartStoreMemory:
		return cart.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.Store)
	}
}

func newCartLocker(cfg config.CartConfig, redisClient *redis.Client, logg *logger.Logger) (cart.KeyLocker, error) {
	switch strings.ToLower(cfg.Lock) {
	case config.CartLockLocal:
		return cart.NewLocalLocker(), nil
	case config.CartLockRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis required for %s cart lock", cfg.Lock)
		}
		return cart.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockRetry, logg)
	default:
		return nil, fmt.Errorf("unknown cart lock %q", cfg.Lock)
	}
}

// inProcessSweeper returns the store as an expiry sweeper when carts live only
// in this process. The cron worker sweeps the shared backends and redis keys
// expire on their own.
func inProcessSweeper(cfg config.CartConfig, store cart.Store) (cron.CartSweeper, bool) {
	if !strings.EqualFold(cfg.Store, config.CartStoreMemory) {
		return nil, false
	}
	sweeper, ok := store.(cron.CartSweeper)
	return sweeper, ok
}
