package verification

import "sync"

// lockTable hands out one mutex per payment id so concurrent checks of
// the same payment serialize while distinct payments run in parallel.
// Entries are refcounted and dropped once the last holder releases.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*refLock)}
}

func (t *lockTable) acquire(id string) *refLock {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &refLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return l
}

func (t *lockTable) release(id string, l *refLock) {
	l.Unlock()

	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()
}
