package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/hpyharness/pkg/ports"
)

func TestManager_SerializesSameKey(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "mytest", func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
	assert.Zero(t, m.Held())
}

func TestManager_NoLeakAcrossKeys(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_ = m.WithLock(ctx, fmt.Sprintf("mod_%d", i), func(context.Context) error { return nil })
	}
	assert.Zero(t, m.Held())
}

func TestManager_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NewManager().WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
	ttl      time.Duration
	err      error
}

func (r *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	r.locked = append(r.locked, key)
	r.ttl = ttl
	r.mu.Unlock()
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.unlocked = append(r.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	rl := &recordingLocker{}
	m := NewManager(WithLocker(rl), WithTTL(time.Second))

	ran := false
	require.NoError(t, m.WithLock(context.Background(), "build/mytest", func(context.Context) error {
		ran = true
		assert.Equal(t, []string{"build/mytest"}, rl.locked)
		assert.Empty(t, rl.unlocked)
		return nil
	}))
	assert.True(t, ran)
	assert.Equal(t, []string{"build/mytest"}, rl.unlocked)
	assert.Equal(t, time.Second, rl.ttl)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	rl := &recordingLocker{err: errors.New("redis down")}
	m := NewManager(WithLocker(rl))

	err := m.WithLock(context.Background(), "mytest", func(context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
	assert.Zero(t, m.Held())
}
