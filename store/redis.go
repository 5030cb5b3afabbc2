package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed implementation of Store.
// Suitable for distributed deployments: counters are shared across every
// instance pointing at the same Redis.
//
// Each request is recorded as a sorted-set member scored by its arrival time
// in milliseconds, giving a true sliding window: old requests roll off the
// counter continuously instead of all at once at a window boundary.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisConfig holds configuration for the Redis connection.
// Populate from environment variables in your application code.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Prefix   string
}

// NewRedis creates a Redis store with the given configuration.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Prefix == "" {
		config.Prefix = "ratelimit:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.URL,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: config.Prefix,
		now:    time.Now,
	}, nil
}

// Allow records a request under key and admits it when fewer than limit
// requests from the same key landed inside the trailing window.
//
// A denied request is never written to the set, so a client that keeps
// hammering past its limit neither extends its own window nor grows the key
// without bound.
func (r *Redis) Allow(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	fullKey := r.prefix + key
	now := r.now()
	cutoff := now.Add(-window)
	cutoffArg := strconv.FormatInt(cutoff.UnixMilli(), 10)

	// Check before writing: a client already over the limit would only grow
	// the set while being rejected anyway.
	count, err := r.client.ZCount(ctx, fullKey, "("+cutoffArg, "+inf").Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis count failed for key %s: %w", fullKey, err)
	}

	if count >= limit {
		reset := now.Add(window)
		oldest, err := r.client.ZRangeByScoreWithScores(ctx, fullKey, &redis.ZRangeBy{
			Min:   "(" + cutoffArg,
			Max:   "+inf",
			Count: 1,
		}).Result()
		if err != nil {
			return Result{}, fmt.Errorf("redis oldest lookup failed for key %s: %w", fullKey, err)
		}
		if len(oldest) > 0 {
			reset = time.UnixMilli(int64(oldest[0].Score)).Add(window)
		}
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", cutoffArg)
	pipe.ZAdd(ctx, fullKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, fullKey)
	oldest := pipe.ZRangeWithScores(ctx, fullKey, 0, 0)
	pipe.Expire(ctx, fullKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("redis increment failed for key %s: %w", fullKey, err)
	}

	total := card.Val()
	reset := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		reset = time.UnixMilli(int64(zs[0].Score)).Add(window)
	}

	return Result{
		Allowed:   total <= limit,
		Remaining: max(0, limit-total),
		Reset:     reset,
	}, nil
}

// Close releases resources held by the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
