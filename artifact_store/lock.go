package artifact_store

import (
	"context"
	"sync"
)

var (
	workspaceLocksMu sync.Mutex
	workspaceLocks   = make(map[string]chan struct{})
)

func workspaceLock(root string) chan struct{} {
	workspaceLocksMu.Lock()
	defer workspaceLocksMu.Unlock()

	lock, ok := workspaceLocks[root]
	if !ok {
		lock = make(chan struct{}, 1)
		workspaceLocks[root] = lock
	}
	return lock
}

// Lock acquires the in-process mutual-exclusion guard for this workspace. It blocks
// until the guard is free or ctx is done. The returned func releases the guard.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	lock := workspaceLock(evalExisting(s.root))

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, nil
}

// TryLock acquires the guard only if it is free right now.
func (s *Store) TryLock() (func(), bool) {
	lock := workspaceLock(evalExisting(s.root))

	select {
	case lock <- struct{}{}:
	default:
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, true
}
