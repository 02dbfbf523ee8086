package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestGenerationLockLocalFallback(t *testing.T) {
	repo := NewGenerationLockRepository(nil)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "timetable:generate", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Acquire(ctx, "timetable:generate", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, "timetable:generate", "b"))
	ok, _ = repo.Acquire(ctx, "timetable:generate", "b", time.Minute)
	assert.False(t, ok, "release with a foreign token must not free the lock")

	require.NoError(t, repo.Release(ctx, "timetable:generate", "a"))
	ok, _ = repo.Acquire(ctx, "timetable:generate", "b", time.Minute)
	assert.True(t, ok)
}

func TestGenerationLockLocalExpiry(t *testing.T) {
	repo := NewGenerationLockRepository(nil)
	ctx := context.Background()

	ok, _ := repo.Acquire(ctx, "k", "a", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	ok, _ = repo.Acquire(ctx, "k", "b", time.Minute)
	assert.True(t, ok)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	assert.Error(t, repo.Get(context.Background(), "timetable:current", &dest))
	assert.NoError(t, repo.Set(context.Background(), "timetable:current", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "timetable:current"))
}

func TestGenerationLockRedis(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewGenerationLockRepository(client)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "lock:timetable:generate", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.TTL("lock:timetable:generate") > 0)

	ok, err = repo.Acquire(ctx, "lock:timetable:generate", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, "lock:timetable:generate", "b"))
	assert.True(t, mr.Exists("lock:timetable:generate"))

	require.NoError(t, repo.Release(ctx, "lock:timetable:generate", "a"))
	assert.False(t, mr.Exists("lock:timetable:generate"))
}

func TestCacheRepositoryRedis(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewCacheRepository(client, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "cache:timetable:current", map[string]string{"id": "current"}, time.Minute))
	require.NoError(t, mr.Set("lock:timetable:generate", "token"))

	var dest map[string]string
	require.NoError(t, repo.Get(ctx, "cache:timetable:current", &dest))
	assert.Equal(t, "current", dest["id"])

	require.NoError(t, repo.Delete(ctx, "cache:timetable:current"))
	assert.ErrorIs(t, repo.Get(ctx, "cache:timetable:current", &dest), appErrors.ErrCacheMiss)
	assert.True(t, mr.Exists("lock:timetable:generate"))
}
