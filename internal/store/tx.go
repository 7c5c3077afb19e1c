package store

import (
	"context"
	"database/sql"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// Observer is notified of every child-stream mutation, inside the
// transaction that applies it. Returning an error aborts the unit of work.
type Observer interface {
	ObserveMutation(ctx context.Context, tx *Tx, m lot.Mutation) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, tx *Tx, m lot.Mutation) error

// ObserveMutation calls f.
func (f ObserverFunc) ObserveMutation(ctx context.Context, tx *Tx, m lot.Mutation) error {
	return f(ctx, tx, m)
}

// LotLocker grants exclusive access to one lot. The returned unlock func
// must be safe to call once.
type LotLocker interface {
	LockLot(ctx context.Context, lotID int64) (unlock func(), err error)
}

// Tx is one unit of work. All writes made through it commit or roll back
// together, including whatever the observer writes in response.
//
// A Tx is not safe for concurrent use.
type Tx struct {
	tx       *sql.Tx
	store    *Store
	observer Observer
	unitID   string

	held     map[int64]struct{}
	onFinish []func()
}

// Update runs fn inside a new unit of work and commits if fn returns nil.
// Any error from fn, including observer errors, rolls everything back.
//
// Lot locks taken with LockLot are released after commit or rollback.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin unit of work", err)
	}

	tx := &Tx{
		tx:       sqlTx,
		store:    s,
		observer: s.currentObserver(),
		unitID:   s.unitIDs.Generate(),
		held:     make(map[int64]struct{}),
	}
	// Deferred in this order so locks are released only after rollback.
	defer tx.finish()
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify("commit unit of work", err)
	}
	return nil
}

// UnitID returns the id shared by all mutations of this unit of work.
func (tx *Tx) UnitID() string {
	return tx.unitID
}

// OnFinish registers fn to run after the unit of work commits or rolls back.
// Callbacks run in reverse registration order.
func (tx *Tx) OnFinish(fn func()) {
	tx.onFinish = append(tx.onFinish, fn)
}

// LockLot takes the lot lock from l for the rest of the unit of work.
// Locking a lot this unit of work already holds is a no-op.
func (tx *Tx) LockLot(ctx context.Context, lotID int64, l LotLocker) error {
	if _, ok := tx.held[lotID]; ok {
		return nil
	}
	unlock, err := l.LockLot(ctx, lotID)
	if err != nil {
		return err
	}
	tx.held[lotID] = struct{}{}
	tx.OnFinish(unlock)
	return nil
}

// HoldsLot reports whether this unit of work holds the lock for lotID.
func (tx *Tx) HoldsLot(lotID int64) bool {
	_, ok := tx.held[lotID]
	return ok
}

func (tx *Tx) finish() {
	for i := len(tx.onFinish) - 1; i >= 0; i-- {
		tx.onFinish[i]()
	}
	tx.onFinish = nil
}

func (tx *Tx) emit(ctx context.Context, m lot.Mutation) error {
	m.UnitID = tx.unitID
	if err := tx.observer.ObserveMutation(ctx, tx, m); err != nil {
		return err
	}
	return nil
}

func (tx *Tx) requireObserver(stream lot.Stream) error {
	if tx.observer == nil {
		return &Error{
			Code:    ErrCodeNoObserver,
			Message: "child writes need a registered observer",
			Stream:  stream,
		}
	}
	return nil
}
