package index

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Locker guards the whole read-modify-write cycle of a Store.
//
// Lock must return without holding the lock when ctx is done before the
// lock is acquired.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock()
}

// SemaphoreLocker is a one-permit weighted semaphore. Waiters block without
// spinning and give up when their context is cancelled.
type SemaphoreLocker struct {
	sem *semaphore.Weighted
}

// NewSemaphoreLocker creates an unlocked SemaphoreLocker.
func NewSemaphoreLocker() *SemaphoreLocker {
	return &SemaphoreLocker{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the permit or returns ctx.Err().
func (l *SemaphoreLocker) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.sem.Acquire(ctx, 1)
}

// Unlock releases the permit.
func (l *SemaphoreLocker) Unlock() {
	l.sem.Release(1)
}

// Verify SemaphoreLocker implements Locker
var _ Locker = (*SemaphoreLocker)(nil)
