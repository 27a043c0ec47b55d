package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a counter exceeds its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Rule bounds one route: at most Max hits per identity per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// Config holds per-route rate limit rules keyed by route name.
type Config struct {
	Prefix string
	Rules  map[string]Rule
}

// Limiter enforces fixed-window per-identity rate limits using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[string]Rule
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "akrl"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: cfg.Prefix,
		rules:  cfg.Rules,
	}
}

// Allow records a hit for the route+identity pair and reports whether it is
// within budget. Routes without a configured rule are never limited.
func (l *Limiter) Allow(ctx context.Context, route, identity string) error {
	rule, ok := l.rules[route]
	if !ok || rule.Max <= 0 || identity == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(route, identity), rule.Window)
	if err != nil {
		return err
	}
	if count > int64(rule.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for the route+identity pair.
func (l *Limiter) Reset(ctx context.Context, route, identity string) error {
	if err := l.redis.Del(ctx, l.key(route, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Hits returns the current counter for a route+identity pair.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) Hits(ctx context.Context, route, identity string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(route, identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(route, identity string) string {
	return l.prefix + ":" + route + ":" + identity
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
