package usecase

import (
	"context"
	"fmt"
	"sync"
)

// UserLocker provides operation-level mutual exclusion per user. It prevents
// two concurrent Handle calls from interleaving loads and appends on the
// same user's conversation. Different users never contend.
type UserLocker struct {
	mu    sync.Mutex
	locks map[string]*userMutex
}

type userMutex struct {
	mu       sync.Mutex
	refCount int
}

// NewUserLocker creates a new user locker.
func NewUserLocker() *UserLocker {
	return &UserLocker{
		locks: make(map[string]*userMutex),
	}
}

// Lock acquires the lock for the given user ID. It blocks until the lock is
// acquired or the context is cancelled. Returns an unlock function that MUST
// be called when the operation is complete.
func (ul *UserLocker) Lock(ctx context.Context, userID string) (unlock func(), err error) {
	// Get or create the per-user mutex.
	ul.mu.Lock()
	um, ok := ul.locks[userID]
	if !ok {
		um = &userMutex{}
		ul.locks[userID] = um
	}
	um.refCount++
	ul.mu.Unlock()

	// Try to acquire the user mutex with context cancellation support.
	acquired := make(chan struct{})
	go func() {
		um.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() {
			um.mu.Unlock()
			ul.mu.Lock()
			um.refCount--
			if um.refCount == 0 {
				delete(ul.locks, userID)
			}
			ul.mu.Unlock()
		}, nil

	case <-ctx.Done():
		// Context cancelled before lock acquired.
		// Must clean up: wait for the goroutine to finish acquiring,
		// then immediately release to prevent a permanent held lock.
		go func() {
			<-acquired
			um.mu.Unlock()
			ul.mu.Lock()
			um.refCount--
			if um.refCount == 0 {
				delete(ul.locks, userID)
			}
			ul.mu.Unlock()
		}()
		return nil, fmt.Errorf("user lock: %w", ctx.Err())
	}
}

// ActiveCount returns the number of users with active or pending locks.
// Intended for testing.
func (ul *UserLocker) ActiveCount() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
