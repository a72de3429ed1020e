package points

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dukerupert/praisepoints/internal/metrics"
)

// KeyedLocker serializes work per key. Each key gets a weight-1 semaphore
// that is dropped once no goroutine holds or waits for it.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	return &KeyedLocker{
		entries: make(map[int64]*lockEntry),
		timeout: timeout,
	}
}

// Lock blocks until key is free, the locker's timeout passes, or ctx ends.
// A timeout is reported as a CONFLICT error; a cancelled ctx returns ctx.Err().
func (l *KeyedLocker) Lock(ctx context.Context, key int64) (func(), error) {
	e := l.acquire(key)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	err := e.sem.Acquire(waitCtx, 1)
	metrics.RecordLockWait(time.Since(start))
	if err != nil {
		l.release(key)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordLockTimeout()
			return nil, errorf(CodeConflict, "child %d is busy, try again", key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key)
		})
	}, nil
}

// LockAll takes the locks for every distinct key in ascending order, so two
// callers with overlapping sets cannot deadlock.
func (l *KeyedLocker) LockAll(ctx context.Context, keys []int64) (func(), error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range sorted {
		unlock, err := l.Lock(ctx, k)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}

func (l *KeyedLocker) acquire(key int64) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) release(key int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports how many keys are currently tracked.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
