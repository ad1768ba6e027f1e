package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/hpyharness/pkg/adapters/redis"
	"github.com/aretw0/hpyharness/pkg/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "build/mytest", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:build/mytest"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:build/mytest"))
}

func TestLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := first.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = second.Lock(waitCtx, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	unlock2, err := second.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_UnlockAfterExpiryKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:lock:k"), "stale unlock must not drop the new holder")
	require.NoError(t, fresh(ctx))
}

func TestHistory_HooksAndRecent(t *testing.T) {
	_, client := newClient(t)
	h := redis.NewHistory(client, redis.WithLimit(2))
	hooks := h.Hooks()
	ctx := context.Background()
	now := time.Now()

	hooks.OnBuild(ctx, &domain.BuildEvent{
		EventBase: domain.EventBase{Timestamp: now, Type: domain.EventBuild, Module: "mytest"},
		ABI:       domain.ABIUniversal,
		Artifact:  "/tmp/mytest.py",
		Duration:  time.Second,
	})
	hooks.OnLoad(ctx, &domain.LoadEvent{
		EventBase: domain.EventBase{Timestamp: now, Type: domain.EventLoad, Module: "mytest", Err: domain.ErrModuleMismatch},
		Path:      "/tmp/mytest.py",
	})
	hooks.OnBuild(ctx, &domain.BuildEvent{
		EventBase: domain.EventBase{Timestamp: now, Type: domain.EventBuild, Module: "other"},
	})

	recs, err := h.Recent(ctx, "mytest", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.EventLoad, recs[0].Type)
	assert.Contains(t, recs[0].Error, "does not match")
	assert.Equal(t, domain.EventBuild, recs[1].Type)
	assert.Equal(t, domain.ABIUniversal, recs[1].ABI)
	assert.Equal(t, time.Second, recs[1].Duration)

	mods, err := h.Modules(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mytest", "other"}, mods)
}

func TestHistory_Limit(t *testing.T) {
	_, client := newClient(t)
	h := redis.NewHistory(client, redis.WithLimit(3), redis.WithPrefix("t:"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, redis.Record{Timestamp: time.Now(), Type: domain.EventBuild, Module: "m"}))
	}
	recs, err := h.Recent(ctx, "m", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
