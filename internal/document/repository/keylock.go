package repository

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedLocks hands out one context-aware mutex per document id. A waiter
// blocks on the semaphore (no polling); entries are dropped once nobody holds
// or waits for them, so the map only grows with contention.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[int64]*keyLock)}
}

// Lock blocks until id is free or ctx is done. The returned func releases it.
func (k *keyedLocks) Lock(ctx context.Context, id int64) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		k.drop(id, l)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			k.drop(id, l)
		})
	}, nil
}

func (k *keyedLocks) drop(id int64, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
