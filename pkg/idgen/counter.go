package idgen

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const defaultCounterKey = "tag_serial_counter"

// CounterOptions configures a CounterGenerator.
type CounterOptions struct {
	Client *redis.Client
	Key    string
}

// CounterGenerator hands out dense serials from a redis counter.
type CounterGenerator struct {
	redis *redis.Client
	key   string
}

func NewCounterGenerator(redisClient *redis.Client, key string) *CounterGenerator {
	if key == "" {
		key = defaultCounterKey
	}
	return &CounterGenerator{redis: redisClient, key: key}
}

// Next returns the next serial using Redis INCR (atomic counter).
// The first serial handed out is 1.
func (g *CounterGenerator) Next(ctx context.Context, _ string) (int64, error) {
	val, err := g.redis.Incr(ctx, g.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", g.key, err)
	}
	return val, nil
}
