package engine

import (
	"context"
	"sync"
)

// MutexLocker serializes lots within one process. Lots are independent:
// locking one never blocks another.
//
// Waiting honors ctx. Entries are dropped once no holder or waiter remains,
// so the map only grows with the number of lots in flight.
//
// Thread-safety: MutexLocker is safe for concurrent use. The zero value is
// ready to use.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[int64]*lotLock
}

type lotLock struct {
	sem  chan struct{}
	refs int
}

// NewMutexLocker creates an empty in-process locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{}
}

// LockLot blocks until lotID is free or ctx is done.
func (l *MutexLocker) LockLot(ctx context.Context, lotID int64) (func(), error) {
	ll := l.acquireRef(lotID)

	select {
	case ll.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(lotID, ll)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ll.sem
			l.releaseRef(lotID, ll)
		})
	}, nil
}

func (l *MutexLocker) acquireRef(lotID int64) *lotLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[int64]*lotLock)
	}
	ll, ok := l.locks[lotID]
	if !ok {
		ll = &lotLock{sem: make(chan struct{}, 1)}
		l.locks[lotID] = ll
	}
	ll.refs++
	return ll
}

func (l *MutexLocker) releaseRef(lotID int64, ll *lotLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ll.refs--
	if ll.refs == 0 {
		delete(l.locks, lotID)
	}
}

// inFlight returns how many lots have a holder or waiter. Used for testing.
func (l *MutexLocker) inFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
