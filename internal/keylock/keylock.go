// Package keylock serializes work per key while leaving unrelated keys
// fully parallel.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// KeyedLock hands out one single-slot semaphore per key. Acquire blocks until
// the key is free or ctx is done; entries are dropped once the last holder
// or waiter releases, so the map does not grow with the key space.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyedLock.
func New() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*entry)}
}

// Acquire takes the lock for key, waiting if another holder is active.
func (l *KeyedLock) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e, false)
		return err
	}
	return nil
}

// Release frees the lock for key. It must be called exactly once per
// successful Acquire.
func (l *KeyedLock) Release(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	l.release(key, e, true)
}

func (l *KeyedLock) release(key string, e *entry, held bool) {
	if held {
		e.sem.Release(1)
	}

	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}
