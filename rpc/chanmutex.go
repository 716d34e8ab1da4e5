package rpc

import "context"

// chanMutex is a mutex implemented as a buffered channel holding at
// most one token, so that acquiring it can be combined with other
// select cases (ctx.Done, a shutdown signal) the way a sync.Mutex
// cannot.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	mu := make(chanMutex, 1)
	mu <- struct{}{}
	return mu
}

func (mu chanMutex) Lock() { <-mu }

func (mu chanMutex) Unlock() {
	select {
	case mu <- struct{}{}:
	default:
		panic("rpc: unlock of unlocked mutex")
	}
}

// TryLock attempts to acquire mu, returning false if ctx is done
// first.
func (mu chanMutex) TryLock(ctx context.Context) bool {
	select {
	case <-mu:
		return true
	case <-ctx.Done():
		return false
	}
}
