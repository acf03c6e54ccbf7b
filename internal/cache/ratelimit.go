package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/ammar1510/alumni-chat/internal/logger"
)

// RateLimiter meters message sends per user. Every session and the REST
// fallback of one user draw from the same budget.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) bool
}

// Unlimited never refuses.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, uuid.UUID) bool { return true }

// MemoryRateLimiter keeps one token bucket per user in process.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewMemoryRateLimiter allows limit sends per window, refilled evenly.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (m *MemoryRateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	m.mu.Lock()
	l, ok := m.limiters[userID]
	if !ok {
		l = rate.NewLimiter(m.every, m.burst)
		m.limiters[userID] = l
	}
	m.mu.Unlock()
	return l.Allow()
}

// RedisRateLimiter counts sends in a fixed window under
// "ratelimit:message:<userID>", shared by every gateway instance. An
// unreachable redis lets the send through.
type RedisRateLimiter struct {
	client  redis.UniversalClient
	limit   int64
	window  time.Duration
	timeout time.Duration
	log     *logger.Logger
}

func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:  client,
		limit:   int64(limit),
		window:  window,
		timeout: defaultRedisTimeout,
		log:     logger.New("ratelimit"),
	}
}

func rateLimitKey(userID uuid.UUID) string {
	return "ratelimit:message:" + userID.String()
}

func (r *RedisRateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := rateLimitKey(userID)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.log.Warn("incr %s failed: %v", key, err)
		return true
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			r.log.Warn("expire %s failed: %v", key, err)
		}
	}
	return n <= r.limit
}
