package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tejasri1920/Steelworks/internal/engine"
	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// Summary counts what Apply committed.
type Summary struct {
	LotsCreated int        `json:"lots_created"`
	Inserted    []Inserted `json:"inserted"`
	Updated     int        `json:"updated"`
	Deleted     int        `json:"deleted"`
	LotsDeleted int        `json:"lots_deleted"`
}

// Inserted identifies a record created by the batch.
type Inserted struct {
	Stream lot.Stream `json:"stream"`
	ID     int64      `json:"id"`
	LotID  int64      `json:"lot_id"`
}

// ItemError identifies the batch item that failed.
type ItemError struct {
	// Section is "lots", "mutations" or "delete_lots".
	Section string
	Index   int
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s[%d]: %v", e.Section, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Apply writes f through the engine's store, so the engine keeps
// completeness in step. Lot deletions take the engine's lot lock first, the
// same lock a recompute of that lot holds.
//
// With atomic (or f.Atomic) the whole batch is one unit of work and the
// returned summary is empty on failure. Otherwise each item commits on its
// own and the summary covers the items before the failing one.
func Apply(ctx context.Context, e *engine.Engine, f *File, atomic bool) (Summary, error) {
	s := e.Store()
	locker := e.Locker()
	sum := Summary{Inserted: []Inserted{}}

	if atomic || f.Atomic {
		err := s.Update(ctx, func(tx *store.Tx) error {
			return forEachItem(f, locker, func(it item) error {
				return it.apply(ctx, tx, &sum)
			})
		})
		if err != nil {
			return Summary{Inserted: []Inserted{}}, err
		}
		slog.Info("batch applied", "atomic", true, "lots", sum.LotsCreated, "mutations", len(f.Mutations))
		return sum, nil
	}

	err := forEachItem(f, locker, func(it item) error {
		// Apply to a copy so a rolled back item leaves no trace.
		next := sum
		next.Inserted = append([]Inserted(nil), sum.Inserted...)
		if err := s.Update(ctx, func(tx *store.Tx) error {
			return it.apply(ctx, tx, &next)
		}); err != nil {
			return err
		}
		sum = next
		return nil
	})
	if err != nil {
		return sum, err
	}
	slog.Info("batch applied", "atomic", false, "lots", sum.LotsCreated, "mutations", len(f.Mutations))
	return sum, nil
}

type item struct {
	section string
	index   int
	fn      func(ctx context.Context, tx *store.Tx, sum *Summary) error
}

func (it item) apply(ctx context.Context, tx *store.Tx, sum *Summary) error {
	if err := it.fn(ctx, tx, sum); err != nil {
		return &ItemError{Section: it.section, Index: it.index, Err: err}
	}
	return nil
}

// forEachItem visits lots, then mutations, then lot deletions.
func forEachItem(f *File, locker store.LotLocker, visit func(item) error) error {
	for i, spec := range f.Lots {
		err := visit(item{section: "lots", index: i, fn: func(ctx context.Context, tx *store.Tx, sum *Summary) error {
			l, err := spec.Lot()
			if err != nil {
				return err
			}
			if _, err := tx.CreateLot(ctx, l); err != nil {
				return err
			}
			sum.LotsCreated++
			return nil
		}})
		if err != nil {
			return err
		}
	}

	for i, m := range f.Mutations {
		if err := visit(item{section: "mutations", index: i, fn: m.apply}); err != nil {
			return err
		}
	}

	for i, id := range f.DeleteLots {
		err := visit(item{section: "delete_lots", index: i, fn: func(ctx context.Context, tx *store.Tx, sum *Summary) error {
			if err := tx.LockLot(ctx, id, locker); err != nil {
				return engine.NewLockError(id, tx.UnitID(), err)
			}
			if err := tx.DeleteLot(ctx, id); err != nil {
				return err
			}
			sum.LotsDeleted++
			return nil
		}})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m Mutation) apply(ctx context.Context, tx *store.Tx, sum *Summary) error {
	switch m.Op {
	case lot.OpInsert:
		r, err := tx.InsertRecord(ctx, m.Row())
		if err != nil {
			return err
		}
		sum.Inserted = append(sum.Inserted, Inserted{Stream: m.Stream, ID: r.RecordID(), LotID: r.RecordLot()})
	case lot.OpUpdate:
		if _, err := tx.UpdateRecord(ctx, m.Row()); err != nil {
			return err
		}
		sum.Updated++
	case lot.OpDelete:
		if _, err := tx.DeleteRecord(ctx, m.Stream, m.ID); err != nil {
			return err
		}
		sum.Deleted++
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	return nil
}
