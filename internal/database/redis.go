package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to Redis. A failed connection is not fatal:
// chat rate limiting degrades to disabled and the caller decides what
// else to do with it.
func NewRedisClient(addr, password string, log zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, chat rate limiting will be disabled")
	} else {
		log.Info().Str("addr", addr).Msg("Connected to Redis")
	}
	return client
}

// CheckRateLimit increments a per-key counter with a rolling window.
// Returns true when the caller is still under the limit.
func CheckRateLimit(ctx context.Context, client *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}

	if count == 1 {
		client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}
