// Package numbering issues human-readable document numbers of the form
// DOC-<yyyyMMdd>-<counter>.
package numbering

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const prefix = "DOC"

// Generator returns a fresh, globally unique document number.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

func format(day time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%d", prefix, day.Format("20060102"), n)
}

// AtomicGenerator is a process-local counter seeded with the start time in
// milliseconds, so numbers stay unique across restarts of a single instance.
type AtomicGenerator struct {
	counter atomic.Int64
	now     func() time.Time
}

func NewAtomicGenerator() *AtomicGenerator {
	g := &AtomicGenerator{now: time.Now}
	g.counter.Store(time.Now().UnixMilli())
	return g
}

func (g *AtomicGenerator) Next(context.Context) (string, error) {
	return format(g.now(), g.counter.Add(1)), nil
}

// RedisGenerator shares one counter per day between instances.
type RedisGenerator struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisGenerator(client *redis.Client) *RedisGenerator {
	return &RedisGenerator{client: client, now: time.Now}
}

func (g *RedisGenerator) Next(ctx context.Context) (string, error) {
	day := g.now()
	key := "docflow:number:" + day.Format("20060102")
	n, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("redis incr %s: %w", key, err)
	}
	if n == 1 {
		_ = g.client.Expire(ctx, key, 48*time.Hour).Err()
	}
	return format(day, n), nil
}
