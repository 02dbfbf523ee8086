package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// GenerationLockRepository guards against concurrent timetable generations. With a Redis
// client the lock is shared across instances; without one it falls back to process memory.
type GenerationLockRepository struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]localLock
}

type localLock struct {
	token   string
	expires time.Time
}

// NewGenerationLockRepository constructs the lock store.
func NewGenerationLockRepository(client *redis.Client) *GenerationLockRepository {
	return &GenerationLockRepository{client: client, local: make(map[string]localLock)}
}

// Acquire takes the lock for ttl. It reports false when someone else holds it.
func (r *GenerationLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return r.acquireLocal(key, token, ttl), nil
	}
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release frees the lock if token still owns it.
func (r *GenerationLockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		r.releaseLocal(key, token)
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

func (r *GenerationLockRepository) acquireLocal(key, token string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if held, ok := r.local[key]; ok && now.Before(held.expires) {
		return false
	}
	r.local[key] = localLock{token: token, expires: now.Add(ttl)}
	return true
}

func (r *GenerationLockRepository) releaseLocal(key, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.local[key]; ok && held.token == token {
		delete(r.local, key)
	}
}
