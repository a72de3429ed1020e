package points

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	l := NewKeyedLocker(time.Second)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, l.size())
}

func TestKeyedLockerTimeoutIsConflict(t *testing.T) {
	l := NewKeyedLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(ctx, 1)
	assert.True(t, errors.Is(err, ErrConflict), "err = %v", err)

	// Other keys are unaffected.
	unlock2, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	unlock2()
}

func TestKeyedLockerCancelledContext(t *testing.T) {
	l := NewKeyedLocker(time.Second)

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyedLockerLockAll(t *testing.T) {
	l := NewKeyedLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.LockAll(ctx, []int64{3, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, l.size())

	_, err = l.Lock(ctx, 2)
	assert.True(t, errors.Is(err, ErrConflict))

	unlock()
	unlock()
	assert.Equal(t, 0, l.size())
}

func TestKeyedLockerLockAllReleasesOnFailure(t *testing.T) {
	l := NewKeyedLocker(20 * time.Millisecond)
	ctx := context.Background()

	held, err := l.Lock(ctx, 2)
	require.NoError(t, err)

	_, err = l.LockAll(ctx, []int64{1, 2})
	require.Error(t, err)

	// Key 1 must be free again.
	unlock, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	unlock()
	held()
	assert.Equal(t, 0, l.size())
}
