package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricing-engine/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const scanBatch = 100

// RedisCache is a PriceCache backed by Redis
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisCacheFromClient(rdb), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(rdb *redis.Client) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		logger: util.GetLogger(),
	}
}

// GetClient returns the underlying Redis client
func (c *RedisCache) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Get reads a cached value. Errors are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		util.CacheErrorsTotal.WithLabelValues("get").Inc()
		c.logger.Warn("Redis get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return value, true
}

// Set writes value with ttl
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		util.CacheErrorsTotal.WithLabelValues("set").Inc()
		c.logger.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// InvalidateProduct deletes every cached price of productID
func (c *RedisCache) InvalidateProduct(ctx context.Context, productID int64) int {
	pattern := productPrefix(productID) + "*"

	count := 0
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			util.CacheErrorsTotal.WithLabelValues("invalidate").Inc()
			c.logger.Warn("Redis scan failed during invalidation",
				zap.Int64("product_id", productID),
				zap.Error(err))
			return count
		}

		if len(keys) > 0 {
			deleted, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				util.CacheErrorsTotal.WithLabelValues("invalidate").Inc()
				c.logger.Warn("Redis delete failed during invalidation",
					zap.Int64("product_id", productID),
					zap.Error(err))
				return count
			}
			count += int(deleted)
		}

		cursor = next
		if cursor == 0 {
			return count
		}
	}
}
