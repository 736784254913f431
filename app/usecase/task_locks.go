package usecase

import "sync"

// taskLocks serialises rounds of the same task; they share a working
// directory and a remote branch.
type taskLocks struct {
	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[string]*taskLock)}
}

// Lock blocks until task is free and returns the unlock function.
func (l *taskLocks) Lock(task string) func() {
	l.mu.Lock()
	tl, ok := l.locks[task]
	if !ok {
		tl = &taskLock{}
		l.locks[task] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, task)
		}
		l.mu.Unlock()
	}
}
