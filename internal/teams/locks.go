package teams

import (
	"context"
	"sync"
)

// lockMap hands out one lock per key. Entries are reference counted and
// dropped once nobody holds or waits on them, so the map only grows with
// the number of keys in use.
type lockMap[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refLock
}

// refLock is held while its one-slot channel is full.
type refLock struct {
	held chan struct{}
	refs int
}

func newLockMap[K comparable]() *lockMap[K] {
	return &lockMap[K]{locks: make(map[K]*refLock)}
}

// lock blocks until key is free or ctx is done. On success it returns the
// matching unlock; a caller whose context ends while waiting gets ctx.Err()
// and holds nothing.
func (l *lockMap[K]) lock(ctx context.Context, key K) (unlock func(), err error) {
	l.mu.Lock()
	rl, ok := l.locks[key]
	if !ok {
		rl = &refLock{held: make(chan struct{}, 1)}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, rl)
		return nil, ctx.Err()
	}
	return func() {
		<-rl.held
		l.release(key, rl)
	}, nil
}

func (l *lockMap[K]) release(key K, rl *refLock) {
	l.mu.Lock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func (l *lockMap[K]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
