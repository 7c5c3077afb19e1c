package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// streamTable describes the table behind one stream. Every stream carries
// two stream-specific columns after the shared id, lot_id and created_at.
type streamTable struct {
	name    string
	columns [2]string
}

var streamTables = map[lot.Stream]streamTable{
	lot.StreamProduction: {name: "production_records", columns: [2]string{"line", "quantity"}},
	lot.StreamInspection: {name: "inspection_records", columns: [2]string{"result", "inspector"}},
	lot.StreamShipping:   {name: "shipping_records", columns: [2]string{"status", "carrier"}},
}

func tableFor(stream lot.Stream) (streamTable, error) {
	t, ok := streamTables[stream]
	if !ok {
		return streamTable{}, &Error{Code: ErrCodeInvalidRecord, Message: fmt.Sprintf("unknown stream %q", stream)}
	}
	return t, nil
}

// selectList returns the column list in scan order.
func (t streamTable) selectList() string {
	return strings.Join([]string{"id", "lot_id", "created_at", t.columns[0], t.columns[1]}, ", ")
}

// rowValues returns the stream-specific column values of r.
func rowValues(r lot.Row) ([2]any, error) {
	switch v := r.(type) {
	case lot.ProductionRecord:
		return [2]any{v.Line, v.Quantity.String()}, nil
	case lot.InspectionRecord:
		return [2]any{v.Result, v.Inspector}, nil
	case lot.ShippingRecord:
		return [2]any{v.Status, v.Carrier}, nil
	}
	return [2]any{}, &Error{Code: ErrCodeInvalidRecord, Message: fmt.Sprintf("unsupported row type %T", r)}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(stream lot.Stream, sc rowScanner) (lot.Row, error) {
	var (
		id, lotID  int64
		createdRaw string
		a, b       string
	)
	if err := sc.Scan(&id, &lotID, &createdRaw, &a, &b); err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdRaw, err)
	}

	switch stream {
	case lot.StreamProduction:
		qty, err := decimal.NewFromString(b)
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", b, err)
		}
		return lot.ProductionRecord{ID: id, LotID: lotID, Line: a, Quantity: qty, CreatedAt: createdAt}, nil
	case lot.StreamInspection:
		return lot.InspectionRecord{ID: id, LotID: lotID, Result: a, Inspector: b, CreatedAt: createdAt}, nil
	case lot.StreamShipping:
		return lot.ShippingRecord{ID: id, LotID: lotID, Status: a, Carrier: b, CreatedAt: createdAt}, nil
	}
	return nil, fmt.Errorf("unknown stream %q", stream)
}

func getRecord(ctx context.Context, q queryer, stream lot.Stream, id int64) (lot.Row, error) {
	t, err := tableFor(stream)
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectList(), t.name), id)
	r, err := scanRow(stream, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recordNotFound(stream, id)
	}
	if err != nil {
		return nil, classify("read record", err)
	}
	return r, nil
}

func streamExists(ctx context.Context, q queryer, stream lot.Stream, lotID int64) (bool, error) {
	t, err := tableFor(stream)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE lot_id = ? LIMIT 1)", t.name), lotID).Scan(&exists)
	if err != nil {
		return false, classify("check stream existence", err)
	}
	return exists, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// StreamExists reports whether lotID has at least one record in stream.
// Short-circuits on the first matching row.
func (tx *Tx) StreamExists(ctx context.Context, stream lot.Stream, lotID int64) (bool, error) {
	return streamExists(ctx, tx.tx, stream, lotID)
}

// GetRecord reads one child record within the unit of work.
func (tx *Tx) GetRecord(ctx context.Context, stream lot.Stream, id int64) (lot.Row, error) {
	return getRecord(ctx, tx.tx, stream, id)
}

// InsertRecord inserts a new child record and returns it with its id and
// created_at assigned. The observer sees an insert with the stored row as
// its after image.
//
// Returns REFERENTIAL_INTEGRITY, without writing or notifying the observer,
// when the referenced lot does not exist.
func (tx *Tx) InsertRecord(ctx context.Context, r lot.Row) (lot.Row, error) {
	if r == nil {
		return nil, &Error{Code: ErrCodeInvalidRecord, Message: "nil record"}
	}
	stream := r.Stream()
	if err := tx.requireObserver(stream); err != nil {
		return nil, err
	}
	if r.RecordID() != 0 {
		return nil, &Error{Code: ErrCodeInvalidRecord, Message: "record id is assigned by the store", Stream: stream, RecordID: r.RecordID()}
	}
	r = lot.NormalizeRow(r)
	if err := lot.ValidateRow(r); err != nil {
		return nil, &Error{Code: ErrCodeInvalidRecord, Message: "record failed validation", Stream: stream, Err: err}
	}

	ok, err := lotExists(ctx, tx.tx, r.RecordLot())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingParent(stream, r.RecordLot())
	}

	t, err := tableFor(stream)
	if err != nil {
		return nil, err
	}
	vals, err := rowValues(r)
	if err != nil {
		return nil, err
	}

	res, err := tx.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (lot_id, created_at, %s, %s) VALUES (?, ?, ?, ?)",
			t.name, t.columns[0], t.columns[1]),
		r.RecordLot(), formatTimestamp(tx.store.timestamp()), vals[0], vals[1],
	)
	if err != nil {
		return nil, classifyFK("insert record", err, ErrCodeReferentialIntegrity)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("insert record: last insert id", err)
	}

	after, err := getRecord(ctx, tx.tx, stream, id)
	if err != nil {
		return nil, err
	}

	if err := tx.emit(ctx, lot.Mutation{
		Stream: stream,
		Op:     lot.OpInsert,
		LotID:  after.RecordLot(),
		After:  after,
	}); err != nil {
		return nil, err
	}
	return after, nil
}

// UpdateRecord overwrites the stream-specific fields and lot of an existing
// record, keeping its created_at. The observer sees both row images; a
// record moved to another lot therefore affects both lots.
func (tx *Tx) UpdateRecord(ctx context.Context, r lot.Row) (lot.Row, error) {
	if r == nil {
		return nil, &Error{Code: ErrCodeInvalidRecord, Message: "nil record"}
	}
	stream := r.Stream()
	if err := tx.requireObserver(stream); err != nil {
		return nil, err
	}
	r = lot.NormalizeRow(r)
	if err := lot.ValidateRow(r); err != nil {
		return nil, &Error{Code: ErrCodeInvalidRecord, Message: "record failed validation", Stream: stream, RecordID: r.RecordID(), Err: err}
	}

	before, err := getRecord(ctx, tx.tx, stream, r.RecordID())
	if err != nil {
		return nil, err
	}

	ok, err := lotExists(ctx, tx.tx, r.RecordLot())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingParent(stream, r.RecordLot())
	}

	t, err := tableFor(stream)
	if err != nil {
		return nil, err
	}
	vals, err := rowValues(r)
	if err != nil {
		return nil, err
	}

	_, err = tx.tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET lot_id = ?, %s = ?, %s = ? WHERE id = ?",
			t.name, t.columns[0], t.columns[1]),
		r.RecordLot(), vals[0], vals[1], r.RecordID(),
	)
	if err != nil {
		return nil, classifyFK("update record", err, ErrCodeReferentialIntegrity)
	}

	after, err := getRecord(ctx, tx.tx, stream, r.RecordID())
	if err != nil {
		return nil, err
	}

	if err := tx.emit(ctx, lot.Mutation{
		Stream: stream,
		Op:     lot.OpUpdate,
		LotID:  after.RecordLot(),
		Before: before,
		After:  after,
	}); err != nil {
		return nil, err
	}
	return after, nil
}

// DeleteRecord removes a child record and returns the removed image. The
// observer resolves the lot from that before image.
func (tx *Tx) DeleteRecord(ctx context.Context, stream lot.Stream, id int64) (lot.Row, error) {
	if err := tx.requireObserver(stream); err != nil {
		return nil, err
	}
	t, err := tableFor(stream)
	if err != nil {
		return nil, err
	}

	before, err := getRecord(ctx, tx.tx, stream, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name), id); err != nil {
		return nil, classify("delete record", err)
	}

	if err := tx.emit(ctx, lot.Mutation{
		Stream: stream,
		Op:     lot.OpDelete,
		LotID:  before.RecordLot(),
		Before: before,
	}); err != nil {
		return nil, err
	}
	return before, nil
}

// GetRecord reads one child record outside any unit of work.
func (s *Store) GetRecord(ctx context.Context, stream lot.Stream, id int64) (lot.Row, error) {
	return getRecord(ctx, s.db, stream, id)
}

// ListRecords returns every record of stream for lotID ordered by id.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRecords(ctx context.Context, stream lot.Stream, lotID int64) ([]lot.Row, error) {
	return listRecords(ctx, s.db, stream, lotID)
}

func listRecords(ctx context.Context, q queryer, stream lot.Stream, lotID int64) ([]lot.Row, error) {
	t, err := tableFor(stream)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE lot_id = ? ORDER BY id ASC", t.selectList(), t.name), lotID)
	if err != nil {
		return nil, classify("query records", err)
	}
	defer rows.Close()

	out := []lot.Row{}
	for rows.Next() {
		r, err := scanRow(stream, rows)
		if err != nil {
			return nil, classify("scan record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate records", err)
	}
	return out, nil
}
