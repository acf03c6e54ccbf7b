// Package cache holds the per-user unread counters that sit in front of
// the message store. Counters are advisory: a failed or missing cache
// never blocks a chat operation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ammar1510/alumni-chat/internal/logger"
)

// UnreadCounter tracks unread counts per (user, conversation). Failures
// are logged inside the implementation and never returned.
type UnreadCounter interface {
	// Get returns the cached count and whether it is known. A missing
	// entry is a known zero; an unreachable backend is unknown.
	Get(ctx context.Context, userID, conversationID uuid.UUID) (int, bool)
	Incr(ctx context.Context, userID, conversationID uuid.UUID)
	Reset(ctx context.Context, userID, conversationID uuid.UUID)
}

type unreadKey struct {
	user uuid.UUID
	conv uuid.UUID
}

// MemoryUnread keeps counters in process for single-instance deployments.
type MemoryUnread struct {
	mu     sync.Mutex
	counts map[unreadKey]int
}

func NewMemoryUnread() *MemoryUnread {
	return &MemoryUnread{counts: make(map[unreadKey]int)}
}

func (m *MemoryUnread) Get(ctx context.Context, userID, conversationID uuid.UUID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[unreadKey{userID, conversationID}], true
}

func (m *MemoryUnread) Incr(ctx context.Context, userID, conversationID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[unreadKey{userID, conversationID}]++
}

func (m *MemoryUnread) Reset(ctx context.Context, userID, conversationID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, unreadKey{userID, conversationID})
}

// Disabled is used when UNREAD_CACHE=off; every read is unknown.
type Disabled struct{}

func (Disabled) Get(context.Context, uuid.UUID, uuid.UUID) (int, bool) { return 0, false }
func (Disabled) Incr(context.Context, uuid.UUID, uuid.UUID)            {}
func (Disabled) Reset(context.Context, uuid.UUID, uuid.UUID)           {}

const defaultRedisTimeout = 500 * time.Millisecond

// RedisUnread stores one hash per user, "unread:<userID>", keyed by
// conversation id. Counters are shared by every gateway instance.
type RedisUnread struct {
	client  redis.UniversalClient
	timeout time.Duration
	log     *logger.Logger
}

func NewRedisUnread(client redis.UniversalClient) *RedisUnread {
	return &RedisUnread{
		client:  client,
		timeout: defaultRedisTimeout,
		log:     logger.New("unread-cache"),
	}
}

func unreadHash(userID uuid.UUID) string {
	return "unread:" + userID.String()
}

func (r *RedisUnread) Get(ctx context.Context, userID, conversationID uuid.UUID) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	val, err := r.client.HGet(ctx, unreadHash(userID), conversationID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		r.log.Warn("get %s/%s failed: %v", userID, conversationID, err)
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		r.log.Warn("corrupt counter %s/%s: %q", userID, conversationID, val)
		return 0, false
	}
	return n, true
}

func (r *RedisUnread) Incr(ctx context.Context, userID, conversationID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.HIncrBy(ctx, unreadHash(userID), conversationID.String(), 1).Err(); err != nil {
		r.log.Warn("incr %s/%s failed: %v", userID, conversationID, err)
	}
}

func (r *RedisUnread) Reset(ctx context.Context, userID, conversationID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.HDel(ctx, unreadHash(userID), conversationID.String()).Err(); err != nil {
		r.log.Warn("reset %s/%s failed: %v", userID, conversationID, err)
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
