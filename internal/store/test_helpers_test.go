package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("unit-%03d", g.n)
}

// recordingObserver keeps every mutation it sees and optionally fails.
type recordingObserver struct {
	mu        sync.Mutex
	mutations []lot.Mutation
	err       error
}

func (o *recordingObserver) ObserveMutation(_ context.Context, _ *Tx, m lot.Mutation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mutations = append(o.mutations, m)
	return o.err
}

func (o *recordingObserver) seen() []lot.Mutation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]lot.Mutation(nil), o.mutations...)
}

// createTestStore creates a new file-backed store with a fixed clock,
// sequential unit ids and a recording observer.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createObservedStore(t)
	return s
}

func createObservedStore(t *testing.T) (*Store, *recordingObserver) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(func() time.Time { return testNow }),
		WithUnitIDGenerator(&sequenceIDs{}),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	obs := &recordingObserver{}
	s.SetObserver(obs)
	return s, obs
}

func testLot(id int64) lot.Lot {
	return lot.Lot{
		ID:        id,
		Code:      fmt.Sprintf("LOT-%d", id),
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
}

func mustCreateLot(t *testing.T, s *Store, id int64) lot.Lot {
	t.Helper()
	var created lot.Lot
	err := s.Update(context.Background(), func(tx *Tx) error {
		var err error
		created, err = tx.CreateLot(context.Background(), testLot(id))
		return err
	})
	if err != nil {
		t.Fatalf("CreateLot(%d) failed: %v", id, err)
	}
	return created
}

func mustInsert(t *testing.T, s *Store, r lot.Row) lot.Row {
	t.Helper()
	var out lot.Row
	err := s.Update(context.Background(), func(tx *Tx) error {
		var err error
		out, err = tx.InsertRecord(context.Background(), r)
		return err
	})
	if err != nil {
		t.Fatalf("InsertRecord(%v) failed: %v", r, err)
	}
	return out
}

func production(lotID int64) lot.ProductionRecord {
	return lot.ProductionRecord{LotID: lotID, Line: "L1", Quantity: decimal.RequireFromString("12.5")}
}

func inspection(lotID int64) lot.InspectionRecord {
	return lot.InspectionRecord{LotID: lotID, Result: "pass", Inspector: "qa"}
}

func shipping(lotID int64) lot.ShippingRecord {
	return lot.ShippingRecord{LotID: lotID, Status: "shipped", Carrier: "rail"}
}
