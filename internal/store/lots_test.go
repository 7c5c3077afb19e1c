package store

import (
	"context"
	"testing"
	"time"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

func TestCreateLot_ExplicitID(t *testing.T) {
	s := createTestStore(t)

	got := mustCreateLot(t, s, 42)
	want := testLot(42)
	if got.ID != 42 || got.Code != want.Code {
		t.Errorf("CreateLot = %+v, want id 42 code %q", got, want.Code)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) {
		t.Errorf("dates = %v..%v, want %v..%v", got.StartDate, got.EndDate, want.StartDate, want.EndDate)
	}
}

func TestCreateLot_AllocatesID(t *testing.T) {
	s := createTestStore(t)

	got := mustCreateLot(t, s, 0)
	if got.ID == 0 {
		t.Error("CreateLot did not allocate an id")
	}
}

func TestCreateLot_Duplicate(t *testing.T) {
	s := createTestStore(t)
	mustCreateLot(t, s, 1)

	err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.CreateLot(context.Background(), testLot(1))
		return err
	})
	if CodeOf(err) != ErrCodeLotExists {
		t.Errorf("error = %v, want LOT_EXISTS", err)
	}
}

func TestCreateLot_EndBeforeStart(t *testing.T) {
	s := createTestStore(t)

	l := testLot(1)
	l.EndDate = l.StartDate.Add(-24 * time.Hour)
	err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.CreateLot(context.Background(), l)
		return err
	})
	if CodeOf(err) != ErrCodeInvalidLot {
		t.Errorf("error = %v, want INVALID_LOT", err)
	}
}

func TestGetLot_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetLot(context.Background(), 5)
	if CodeOf(err) != ErrCodeLotNotFound {
		t.Errorf("error = %v, want LOT_NOT_FOUND", err)
	}
}

func TestDeleteLot_WithChildren(t *testing.T) {
	s := createTestStore(t)
	mustCreateLot(t, s, 1)
	mustInsert(t, s, inspection(1))

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.DeleteLot(context.Background(), 1)
	})
	if !IsDependentRecordsExist(err) {
		t.Fatalf("error = %v, want DEPENDENT_RECORDS_EXIST", err)
	}

	ok, err := s.LotExists(context.Background(), 1)
	if err != nil || !ok {
		t.Errorf("LotExists after refused delete = %v, %v; want true", ok, err)
	}
	rows, err := s.ListRecords(context.Background(), lot.StreamInspection, 1)
	if err != nil || len(rows) != 1 {
		t.Errorf("inspection rows = %d, %v; want 1", len(rows), err)
	}
}

func TestDeleteLot_CompletenessClaimsPresence(t *testing.T) {
	s := createTestStore(t)
	mustCreateLot(t, s, 1)

	// A stale record claiming presence keeps the lot alive until repaired.
	if err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.UpsertCompleteness(context.Background(),
			lot.NewCompleteness(1, lot.Flags{Shipping: true}))
	}); err != nil {
		t.Fatalf("UpsertCompleteness failed: %v", err)
	}

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.DeleteLot(context.Background(), 1)
	})
	if !IsDependentRecordsExist(err) {
		t.Errorf("error = %v, want DEPENDENT_RECORDS_EXIST", err)
	}
}

func TestDeleteLot_RemovesZeroCompleteness(t *testing.T) {
	s := createTestStore(t)
	mustCreateLot(t, s, 1)

	err := s.Update(context.Background(), func(tx *Tx) error {
		if err := tx.UpsertCompleteness(context.Background(), lot.NewCompleteness(1, lot.Flags{})); err != nil {
			return err
		}
		return tx.DeleteLot(context.Background(), 1)
	})
	if err != nil {
		t.Fatalf("DeleteLot failed: %v", err)
	}

	if ok, _ := s.LotExists(context.Background(), 1); ok {
		t.Error("lot still exists")
	}
	if _, found, _ := s.GetCompleteness(context.Background(), 1); found {
		t.Error("completeness record outlived its lot")
	}
}

func TestDeleteLot_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.DeleteLot(context.Background(), 8)
	})
	if CodeOf(err) != ErrCodeLotNotFound {
		t.Errorf("error = %v, want LOT_NOT_FOUND", err)
	}
}

func TestListLotIDs(t *testing.T) {
	s := createTestStore(t)
	for _, id := range []int64{9, 2, 5} {
		mustCreateLot(t, s, id)
	}

	ids, err := s.ListLotIDs(context.Background())
	if err != nil {
		t.Fatalf("ListLotIDs failed: %v", err)
	}
	want := []int64{2, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}
