package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oggyb/matchd/internal/config"
	"github.com/redis/go-redis/v9"
)

// likeCountTTL bounds staleness of the "likes you" counters; the DB is
// always the fallback on a miss.
const likeCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForLikedByCount generates the key for a user's pending-likers count.
func (c *RedisCache) KeyForLikedByCount(userID uint64) string {
	return fmt.Sprintf("likedby:count:%d", userID)
}

// BumpLikedByCount adjusts the cached counter after a swipe. A missing
// key is left missing, and the key keeps its original TTL so the counter
// always resyncs from the database within likeCountTTL.
func (c *RedisCache) BumpLikedByCount(ctx context.Context, userID uint64, delta int64) error {
	key := c.KeyForLikedByCount(userID)
	exists, err := c.Client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return c.Client.IncrBy(ctx, key, delta).Err()
}

// GetLikedByCount returns the cached count, or found=false on a miss.
func (c *RedisCache) GetLikedByCount(ctx context.Context, userID uint64) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForLikedByCount(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetLikedByCount stores a freshly computed count with the standard TTL.
func (c *RedisCache) SetLikedByCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForLikedByCount(userID), count, likeCountTTL).Err()
}
