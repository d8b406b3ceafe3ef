package core

import (
	"sync"
)

// tokenLocks serializes all mutations for a given token number. Every entry
// point that touches a token's jobs (single or batch) holds the token's lock
// from the initial read through the status commit, so at most one mutation
// per token is ever in flight.
type tokenLocks struct {
	mu    sync.Mutex
	locks map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

func newTokenLocks() *tokenLocks {
	return &tokenLocks{locks: make(map[string]*tokenLock)}
}

// Lock acquires the lock for token and returns the unlock function. Entries
// are refcounted and removed once the last holder releases, so the table does
// not grow with token churn.
func (t *tokenLocks) Lock(token string) func() {
	t.mu.Lock()
	l, ok := t.locks[token]
	if !ok {
		l = &tokenLock{}
		t.locks[token] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, token)
		}
		t.mu.Unlock()
	}
}
