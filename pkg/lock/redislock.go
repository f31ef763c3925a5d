package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/forgeops/orchestrator/pkg/log"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("expire", KEYS[1], ARGV[2])
else
	return 0
end
`

// RedisLock implements DistributedLock on top of a Redis client: SETNX
// for acquisition, Lua-scripted compare-and-delete for release, and
// Lua-scripted compare-and-expire for extension, so a caller can never
// release or extend a lock it does not hold.
type RedisLock struct {
	client *redis.Client
	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLock builds a lock backed by a Redis URL of the form
// redis://[:password@]host:port/db.
func NewRedisLock(redisURL string) (*RedisLock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisLock{
		client: client,
		tokens: make(map[string]string),
	}, nil
}

func lockKey(resourceID string) string {
	return "lock:" + resourceID
}

// Acquire implements DistributedLock.
func (l *RedisLock) Acquire(ctx context.Context, resourceID string, ttlSeconds int) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey(resourceID), token, time.Duration(ttlSeconds)*time.Second).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", resourceID, err)
	}
	if !ok {
		log.WithComponent("lock").Debug().Str("resource_id", resourceID).Msg("lock not acquired")
		return false, nil
	}
	l.mu.Lock()
	l.tokens[resourceID] = token
	l.mu.Unlock()
	log.WithComponent("lock").Debug().Str("resource_id", resourceID).Int("ttl", ttlSeconds).Msg("lock acquired")
	return true, nil
}

// Release implements DistributedLock.
func (l *RedisLock) Release(ctx context.Context, resourceID string) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[resourceID]
	l.mu.Unlock()
	if !ok {
		return false, nil
	}
	result, err := l.client.Eval(ctx, releaseScript, []string{lockKey(resourceID)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", resourceID, err)
	}
	if result == 0 {
		return false, nil
	}
	l.mu.Lock()
	delete(l.tokens, resourceID)
	l.mu.Unlock()
	return true, nil
}

// Extend implements DistributedLock.
func (l *RedisLock) Extend(ctx context.Context, resourceID string, ttlSeconds int) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[resourceID]
	l.mu.Unlock()
	if !ok {
		return false, nil
	}
	result, err := l.client.Eval(ctx, extendScript, []string{lockKey(resourceID)}, token, ttlSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", resourceID, err)
	}
	return result != 0, nil
}

// IsLocked implements DistributedLock.
func (l *RedisLock) IsLocked(ctx context.Context, resourceID string) (bool, error) {
	n, err := l.client.Exists(ctx, lockKey(resourceID)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", resourceID, err)
	}
	return n > 0, nil
}
