package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

const lotColumns = "lot_id, code, start_date, end_date"

func scanLot(sc rowScanner) (lot.Lot, error) {
	var (
		l          lot.Lot
		start, end string
	)
	if err := sc.Scan(&l.ID, &l.Code, &start, &end); err != nil {
		return lot.Lot{}, err
	}
	var err error
	if l.StartDate, err = lot.ParseDate(start); err != nil {
		return lot.Lot{}, fmt.Errorf("lot %d start_date: %w", l.ID, err)
	}
	if l.EndDate, err = lot.ParseDate(end); err != nil {
		return lot.Lot{}, fmt.Errorf("lot %d end_date: %w", l.ID, err)
	}
	return l, nil
}

func lotExists(ctx context.Context, q queryer, lotID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM lots WHERE lot_id = ?)", lotID).Scan(&exists)
	if err != nil {
		return false, classify("check lot existence", err)
	}
	return exists, nil
}

func getLot(ctx context.Context, q queryer, lotID int64) (lot.Lot, error) {
	l, err := scanLot(q.QueryRowContext(ctx,
		"SELECT "+lotColumns+" FROM lots WHERE lot_id = ?", lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return lot.Lot{}, lotNotFound(lotID)
	}
	if err != nil {
		return lot.Lot{}, classify("read lot", err)
	}
	return l, nil
}

// LotExists reports whether the lot exists.
func (tx *Tx) LotExists(ctx context.Context, lotID int64) (bool, error) {
	return lotExists(ctx, tx.tx, lotID)
}

// GetLot reads a lot within the unit of work.
func (tx *Tx) GetLot(ctx context.Context, lotID int64) (lot.Lot, error) {
	return getLot(ctx, tx.tx, lotID)
}

// CreateLot inserts a lot. A zero ID lets SQLite allocate one; the stored
// lot is returned either way.
func (tx *Tx) CreateLot(ctx context.Context, l lot.Lot) (lot.Lot, error) {
	l = l.Normalize()
	if err := l.Validate(); err != nil {
		return lot.Lot{}, &Error{Code: ErrCodeInvalidLot, Message: "lot failed validation", LotID: l.ID, Err: err}
	}

	var id any
	if l.ID != 0 {
		id = l.ID
	}
	res, err := tx.tx.ExecContext(ctx,
		"INSERT INTO lots (lot_id, code, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?)",
		id, l.Code, lot.FormatDate(l.StartDate), lot.FormatDate(l.EndDate),
		formatTimestamp(tx.store.timestamp()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return lot.Lot{}, &Error{Code: ErrCodeLotExists, Message: "lot already exists", LotID: l.ID, Err: err}
		}
		return lot.Lot{}, classify("insert lot", err)
	}
	if l.ID == 0 {
		if l.ID, err = res.LastInsertId(); err != nil {
			return lot.Lot{}, classify("insert lot: last insert id", err)
		}
	}
	return getLot(ctx, tx.tx, l.ID)
}

// DeleteLot removes a lot. It is refused with DEPENDENT_RECORDS_EXIST while
// any child record references the lot, or while its completeness record
// claims any presence.
//
// A completeness record that claims nothing (all flags false, score 0) does
// not block the delete. It is derived state whose lifetime is the lot's, so
// it is removed in the same unit of work instead of being treated as a
// dependent record. Only a record that still reports data, which can only
// happen when the database was written around the engine, refuses the
// delete.
func (tx *Tx) DeleteLot(ctx context.Context, lotID int64) error {
	ok, err := lotExists(ctx, tx.tx, lotID)
	if err != nil {
		return err
	}
	if !ok {
		return lotNotFound(lotID)
	}

	for _, stream := range lot.Streams {
		present, err := streamExists(ctx, tx.tx, stream, lotID)
		if err != nil {
			return err
		}
		if present {
			return &Error{
				Code:    ErrCodeDependentRecordsExist,
				Message: "lot still has child records",
				LotID:   lotID,
				Stream:  stream,
			}
		}
	}

	rec, found, err := getCompleteness(ctx, tx.tx, lotID)
	if err != nil {
		return err
	}
	if found && rec.Any() {
		return &Error{
			Code:    ErrCodeDependentRecordsExist,
			Message: "lot completeness still reports data",
			LotID:   lotID,
			Details: map[string]string{"overall_completeness": fmt.Sprint(rec.Overall)},
		}
	}

	// Zero record: goes with the lot.
	if _, err := tx.tx.ExecContext(ctx, "DELETE FROM lot_completeness WHERE lot_id = ?", lotID); err != nil {
		return classify("delete lot completeness", err)
	}
	if _, err := tx.tx.ExecContext(ctx, "DELETE FROM lots WHERE lot_id = ?", lotID); err != nil {
		return classifyFK("delete lot", err, ErrCodeDependentRecordsExist)
	}
	return nil
}

// LotExists reports whether the lot exists.
func (s *Store) LotExists(ctx context.Context, lotID int64) (bool, error) {
	return lotExists(ctx, s.db, lotID)
}

// GetLot reads a lot.
func (s *Store) GetLot(ctx context.Context, lotID int64) (lot.Lot, error) {
	return getLot(ctx, s.db, lotID)
}

// ListLotIDs returns every lot id in ascending order.
func (s *Store) ListLotIDs(ctx context.Context) ([]int64, error) {
	return listLotIDs(ctx, s.db)
}

// ListLotIDs returns every lot id in ascending order within the unit of work.
func (tx *Tx) ListLotIDs(ctx context.Context) ([]int64, error) {
	return listLotIDs(ctx, tx.tx)
}

func listLotIDs(ctx context.Context, q queryer) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT lot_id FROM lots ORDER BY lot_id ASC")
	if err != nil {
		return nil, classify("query lot ids", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify("scan lot id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate lot ids", err)
	}
	return ids, nil
}

// dateArg renders a filter bound, or nil when unset.
func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return lot.FormatDate(t)
}
