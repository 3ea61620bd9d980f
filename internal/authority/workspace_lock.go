package authority

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// workspaceLock is a context-aware, FIFO mutex serializing workspace-mutating
// tool calls against one continuity. It is a weighted semaphore of size 1,
// the same shape as the teacher's repoLock generalized to use
// golang.org/x/sync/semaphore directly, so acquisition can be cancelled by a
// run's context instead of blocking forever on a hung tool, and queued
// acquirers are served FIFO per that package's docs.
type workspaceLock struct {
	sem *semaphore.Weighted
}

func newWorkspaceLock() *workspaceLock {
	return &workspaceLock{sem: semaphore.NewWeighted(1)}
}

// LockWithContext blocks until the lock is acquired or ctx is done.
func (wl *workspaceLock) LockWithContext(ctx context.Context) error {
	if err := wl.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("authority: workspace lock acquisition cancelled: %w", err)
	}
	return nil
}

// Unlock releases the lock. Must be called exactly once per successful
// LockWithContext call.
func (wl *workspaceLock) Unlock() {
	wl.sem.Release(1)
}

// WorkspaceLocks is a registry of per-continuity workspace locks, so that
// concurrent runs against different continuities never contend on each
// other's lock but all tool calls mutating one continuity's workspace are
// strictly serialized.
type WorkspaceLocks struct {
	mu    sync.Mutex
	locks map[string]*workspaceLock
}

// NewWorkspaceLocks constructs an empty registry.
func NewWorkspaceLocks() *WorkspaceLocks {
	return &WorkspaceLocks{locks: make(map[string]*workspaceLock)}
}

func (wls *WorkspaceLocks) get(continuityID string) *workspaceLock {
	wls.mu.Lock()
	defer wls.mu.Unlock()
	l, ok := wls.locks[continuityID]
	if !ok {
		l = newWorkspaceLock()
		wls.locks[continuityID] = l
	}
	return l
}

// WithWorkspaceLock runs fn while holding the per-continuity workspace
// mutation lock, releasing it (even on panic unwinding through fn's error
// return) before returning.
func (wls *WorkspaceLocks) WithWorkspaceLock(ctx context.Context, continuityID string, fn func() error) error {
	l := wls.get(continuityID)
	if err := l.LockWithContext(ctx); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}
