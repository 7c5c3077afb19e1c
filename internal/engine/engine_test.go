package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
	"github.com/tejasri1920/Steelworks/internal/testutil"
)

func setupEngine(t *testing.T, opts ...EngineOption) (*Engine, *store.Store) {
	t.Helper()
	s := testutil.OpenStore(t)
	return New(s, opts...), s
}

func createLot(t *testing.T, s *store.Store, id int64) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.CreateLot(context.Background(), lot.Lot{
			ID:        id,
			Code:      "LOT",
			StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	require.NoError(t, err)
}

func insert(t *testing.T, s *store.Store, r lot.Row) lot.Row {
	t.Helper()
	var out lot.Row
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		var err error
		out, err = tx.InsertRecord(context.Background(), r)
		return err
	})
	require.NoError(t, err)
	return out
}

func deleteRecord(t *testing.T, s *store.Store, stream lot.Stream, id int64) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.DeleteRecord(context.Background(), stream, id)
		return err
	})
	require.NoError(t, err)
}

func completeness(t *testing.T, s *store.Store, lotID int64) lot.Completeness {
	t.Helper()
	rec, found, err := s.GetCompleteness(context.Background(), lotID)
	require.NoError(t, err)
	require.True(t, found, "lot %d has no completeness record", lotID)
	return rec
}

func prod(lotID int64) lot.ProductionRecord {
	return lot.ProductionRecord{LotID: lotID, Line: "L2", Quantity: decimal.NewFromInt(40)}
}

func insp(lotID int64) lot.InspectionRecord {
	return lot.InspectionRecord{LotID: lotID, Result: "pass", Inspector: "kim"}
}

func ship(lotID int64) lot.ShippingRecord {
	return lot.ShippingRecord{LotID: lotID, Status: "shipped", Carrier: "truck"}
}

func TestEngine_New(t *testing.T) {
	e, s := setupEngine(t)

	assert.NotNil(t, e.clock)
	assert.NotNil(t, e.locker)
	assert.Equal(t, e.locker, e.Locker())
	assert.Same(t, s, e.Store())
	assert.Equal(t, int64(0), e.Recomputations())
}

func TestEngine_LotWithoutRecords(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)

	_, found, err := s.GetCompleteness(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, found, "no mutation, no record")
}

func TestEngine_ScoreIgnoresRowCount(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)

	err := s.Update(context.Background(), func(tx *store.Tx) error {
		for i := 0; i < 500; i++ {
			if _, err := tx.InsertRecord(context.Background(), prod(1)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	rec := completeness(t, s, 1)
	assert.Equal(t, lot.Flags{Production: true}, rec.Flags)
	assert.Equal(t, 33, rec.Overall)
}

func TestEngine_ScoreProgression(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)

	insert(t, s, prod(1))
	assert.Equal(t, 33, completeness(t, s, 1).Overall)

	insert(t, s, insp(1))
	assert.Equal(t, 66, completeness(t, s, 1).Overall)

	insert(t, s, ship(1))
	assert.Equal(t, 100, completeness(t, s, 1).Overall)
}

func TestEngine_DeleteLastRecordDropsFlag(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)
	p := insert(t, s, prod(1))
	insert(t, s, insp(1))
	insert(t, s, ship(1))
	require.Equal(t, 100, completeness(t, s, 1).Overall)

	deleteRecord(t, s, lot.StreamProduction, p.RecordID())

	rec := completeness(t, s, 1)
	assert.False(t, rec.Production)
	assert.True(t, rec.Inspection)
	assert.True(t, rec.Shipping)
	assert.Equal(t, 66, rec.Overall)
}

func TestEngine_DeleteNonLastRecordKeepsFlag(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)
	p1 := insert(t, s, prod(1))
	insert(t, s, prod(1))

	deleteRecord(t, s, lot.StreamProduction, p1.RecordID())

	rec := completeness(t, s, 1)
	assert.True(t, rec.Production)
	assert.Equal(t, 33, rec.Overall)
}

func TestEngine_Lot42Scenario(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 42)
	for i := 0; i < 3; i++ {
		insert(t, s, prod(42))
	}
	sh := insert(t, s, ship(42))

	rec := completeness(t, s, 42)
	assert.Equal(t, lot.Flags{Production: true, Shipping: true}, rec.Flags)
	assert.Equal(t, 66, rec.Overall)

	deleteRecord(t, s, lot.StreamShipping, sh.RecordID())

	rec = completeness(t, s, 42)
	assert.Equal(t, lot.Flags{Production: true}, rec.Flags)
	assert.Equal(t, 33, rec.Overall)
}

func TestEngine_DeleteAcrossStreamsInOneUnit(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)
	p := insert(t, s, prod(1))
	i := insert(t, s, insp(1))
	sh := insert(t, s, ship(1))

	err := s.Update(context.Background(), func(tx *store.Tx) error {
		for _, del := range []struct {
			stream lot.Stream
			id     int64
		}{
			{lot.StreamProduction, p.RecordID()},
			{lot.StreamInspection, i.RecordID()},
			{lot.StreamShipping, sh.RecordID()},
		} {
			if _, err := tx.DeleteRecord(context.Background(), del.stream, del.id); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	rec := completeness(t, s, 1)
	assert.False(t, rec.Any())
	assert.Equal(t, 0, rec.Overall)
}

func TestEngine_UpdateMovesPresence(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)
	createLot(t, s, 2)
	r := insert(t, s, insp(1)).(lot.InspectionRecord)

	r.LotID = 2
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.UpdateRecord(context.Background(), r)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 0, completeness(t, s, 1).Overall, "old lot loses the stream")
	assert.Equal(t, 33, completeness(t, s, 2).Overall, "new lot gains the stream")
}

func TestEngine_RecomputeIdempotent(t *testing.T) {
	e, s := setupEngine(t)
	createLot(t, s, 1)
	insert(t, s, prod(1))
	insert(t, s, ship(1))

	first, err := e.Recompute(context.Background(), 1)
	require.NoError(t, err)
	second, err := e.Recompute(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, completeness(t, s, 1))
}

func TestEngine_RecomputeUnknownLot(t *testing.T) {
	e, _ := setupEngine(t)

	_, err := e.Recompute(context.Background(), 99)
	assert.Equal(t, store.ErrCodeLotNotFound, store.CodeOf(err))
}

func TestEngine_RecomputeOncePerAffectedLot(t *testing.T) {
	e, s := setupEngine(t)
	createLot(t, s, 1)
	createLot(t, s, 2)

	insert(t, s, prod(1))
	assert.Equal(t, int64(1), e.Recomputations())

	r := insert(t, s, ship(1)).(lot.ShippingRecord)
	assert.Equal(t, int64(2), e.Recomputations())

	r.LotID = 2
	require.NoError(t, s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.UpdateRecord(context.Background(), r)
		return err
	}))
	assert.Equal(t, int64(4), e.Recomputations(), "moving a record recomputes both lots")
}

func TestEngine_ConcurrentStreamsSameLot(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 7)

	const perStream = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*perStream)
	for _, mk := range []func() lot.Row{
		func() lot.Row { return prod(7) },
		func() lot.Row { return insp(7) },
	} {
		wg.Add(1)
		go func(mk func() lot.Row) {
			defer wg.Done()
			for i := 0; i < perStream; i++ {
				errs <- s.Update(context.Background(), func(tx *store.Tx) error {
					_, err := tx.InsertRecord(context.Background(), mk())
					return err
				})
			}
		}(mk)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec := completeness(t, s, 7)
	assert.True(t, rec.Production)
	assert.True(t, rec.Inspection)
	assert.False(t, rec.Shipping)
	assert.Equal(t, 66, rec.Overall)
}

func TestEngine_ConcurrentLots(t *testing.T) {
	_, s := setupEngine(t)
	const lots = 10
	for id := int64(1); id <= lots; id++ {
		createLot(t, s, id)
	}

	var wg sync.WaitGroup
	for id := int64(1); id <= lots; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, s.Update(context.Background(), func(tx *store.Tx) error {
				if _, err := tx.InsertRecord(context.Background(), ship(id)); err != nil {
					return err
				}
				_, err := tx.InsertRecord(context.Background(), insp(id))
				return err
			}))
		}(id)
	}
	wg.Wait()

	for id := int64(1); id <= lots; id++ {
		assert.Equal(t, 66, completeness(t, s, id).Overall, "lot %d", id)
	}
}

func TestEngine_DeleteLotWithChildren(t *testing.T) {
	e, s := setupEngine(t)
	createLot(t, s, 1)
	insert(t, s, prod(1))
	before := completeness(t, s, 1)

	err := e.DeleteLot(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, store.IsDependentRecordsExist(err))

	ok, err := s.LotExists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, before, completeness(t, s, 1))
	rows, err := s.ListRecords(context.Background(), lot.StreamProduction, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEngine_DeleteLotAfterChildrenGone(t *testing.T) {
	e, s := setupEngine(t)
	createLot(t, s, 1)
	p := insert(t, s, prod(1))
	deleteRecord(t, s, lot.StreamProduction, p.RecordID())

	require.NoError(t, e.DeleteLot(context.Background(), 1))

	ok, err := s.LotExists(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_InsertUnknownLotNoRecompute(t *testing.T) {
	e, s := setupEngine(t)

	err := s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.InsertRecord(context.Background(), prod(404))
		return err
	})
	assert.True(t, store.IsReferentialIntegrity(err))
	assert.Equal(t, int64(0), e.Recomputations())
}

func TestEngine_RecomputeFailureRollsBack(t *testing.T) {
	_, s := setupEngine(t)
	createLot(t, s, 1)

	_, err := s.DB().Exec("DROP TABLE lot_completeness")
	require.NoError(t, err)

	err = s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.InsertRecord(context.Background(), prod(1))
		return err
	})
	require.Error(t, err)
	assert.True(t, IsRecomputeError(err))

	rows, err := s.ListRecords(context.Background(), lot.StreamProduction, 1)
	require.NoError(t, err)
	assert.Empty(t, rows, "child write must roll back with its recompute")
}

func TestEngine_StoreUnavailable(t *testing.T) {
	e, s := setupEngine(t)
	createLot(t, s, 1)
	require.NoError(t, s.Close())

	_, err := e.Recompute(context.Background(), 1)
	assert.True(t, store.IsStoreUnavailable(err))

	err = s.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.InsertRecord(context.Background(), prod(1))
		return err
	})
	assert.True(t, store.IsStoreUnavailable(err))
}

func TestEngine_ObserveUnresolvableMutation(t *testing.T) {
	e, s := setupEngine(t)

	err := s.Update(context.Background(), func(tx *store.Tx) error {
		return e.ObserveMutation(context.Background(), tx, lot.Mutation{
			Stream: lot.StreamShipping,
			Op:     lot.OpDelete,
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.Recomputations())
}

func TestEngine_ObserveVanishedLot(t *testing.T) {
	e, s := setupEngine(t)

	// A mutation naming a lot that no longer exists is a no-op.
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		return e.ObserveMutation(context.Background(), tx, lot.Mutation{
			Stream: lot.StreamShipping,
			Op:     lot.OpDelete,
			Before: ship(5),
		})
	})
	require.NoError(t, err)

	_, found, err := s.GetCompleteness(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngine_LockFailureAborts(t *testing.T) {
	locker := NewMutexLocker()
	_, s := setupEngine(t, WithLocker(locker))
	createLot(t, s, 1)

	// Hold lot 1 so the unit of work waits for it until its deadline.
	unlock, err := locker.LockLot(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.InsertRecord(ctx, prod(1))
		return err
	})
	require.Error(t, err)
	assert.True(t, IsLockError(err))

	rows, err := s.ListRecords(context.Background(), lot.StreamProduction, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
