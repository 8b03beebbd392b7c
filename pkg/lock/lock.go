// Package lock serializes mutating operations on a single project. Every
// approve, move, revise, restore and switch acquires the project's lock so
// concurrent writers cannot interleave stage changes.
package lock

import (
	"context"
	"sync"
)

// Locker acquires a named lock and returns a release function. Acquire blocks
// until the lock is held or the context is cancelled.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MutexLocker is the single-process default, one mutex per key.
type MutexLocker struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

// NewMutexLocker creates an in-process locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{mutexes: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for key, creating it on first use. Mutexes are kept
// for the life of the process; the key space is bounded by project count.
func (l *MutexLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.mutexes[key]

	if !ok {
		m = &sync.Mutex{}
		l.mutexes[key] = m
	}
	l.mu.Unlock()

	m.Lock()

	return m.Unlock, nil
}
