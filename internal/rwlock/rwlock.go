package rwlock

import "sync"

// Lock is a reader/writer lock arbitrating access to one process-wide
// resource: the cluster's network state as seen by the tool under test.
//
// Any number of readers may hold the lock at once; a writer holds it alone.
// A pending writer waits until every extant reader has released, then takes
// an exclusive slot; new readers queue behind it. The lock is the only
// cross-configuration coordination device in the suite, so its semantics are
// deliberately minimal: no upgrades, no try-lock, no fairness guarantees
// beyond eventual writer acquisition.
//
// Unlocking without a matching lock is a programming defect and panics.
type Lock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	readers int
	writer  bool
}

// New returns an unlocked Lock.
func New() *Lock {
	l := &Lock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// LockRead blocks until no writer holds the lock, then registers a reader.
func (l *Lock) LockRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer {
		l.cond.Wait()
	}
	l.readers++
}

// UnlockRead releases one reader registration.
func (l *Lock) UnlockRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers == 0 {
		panic("rwlock: UnlockRead without matching LockRead")
	}
	l.readers--
	if l.readers == 0 {
		l.cond.Broadcast()
	}
}

// LockWrite blocks until the lock is completely free, then takes it
// exclusively.
func (l *Lock) LockWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.readers > 0 || l.writer {
		l.cond.Wait()
	}
	l.writer = true
}

// UnlockWrite releases exclusive ownership.
func (l *Lock) UnlockWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writer {
		panic("rwlock: UnlockWrite without matching LockWrite")
	}
	l.writer = false
	l.cond.Broadcast()
}
