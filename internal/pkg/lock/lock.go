// Package lock provides in-process keyed locks. The bot uses them to
// serialize commands touching the same ticket so that double taps queue up
// instead of racing into optimistic-concurrency retries.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a mutex shared by every holder and waiter of one key.
type entry struct {
	mu   chan struct{}
	refs int
}

// KeyedLock hands out one mutex per key and drops it once nobody holds or
// waits for it.
type KeyedLock[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New creates an empty KeyedLock.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{entries: make(map[K]*entry)}
}

func (l *KeyedLock[K]) acquire(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{mu: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLock[K]) release(key K, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until key is held by the caller.
func (l *KeyedLock[K]) Lock(key K) {
	e := l.acquire(key)
	e.mu <- struct{}{}
}

// Unlock releases key. Unlocking a key that is not held panics.
func (l *KeyedLock[K]) Unlock(key K) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key")
	}
	<-e.mu
	l.release(key, e)
}

// TryLock acquires key only if it is free.
func (l *KeyedLock[K]) TryLock(key K) bool {
	e := l.acquire(key)
	select {
	case e.mu <- struct{}{}:
		return true
	default:
		l.release(key, e)
		return false
	}
}

// LockContext waits for key until ctx is done or timeout passes.
func (l *KeyedLock[K]) LockContext(ctx context.Context, key K, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e := l.acquire(key)
	select {
	case e.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, e)
		return ErrLockTimeout
	}
}

// WithLock runs fn while holding key.
func (l *KeyedLock[K]) WithLock(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if err := l.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer l.Unlock(key)
	return fn()
}

// Len reports how many keys are currently held or waited on.
func (l *KeyedLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
