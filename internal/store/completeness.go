package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

const completenessColumns = "lot_id, has_production_data, has_inspection_data, has_shipping_data, overall_completeness"

func scanCompleteness(sc rowScanner) (lot.Completeness, error) {
	var c lot.Completeness
	err := sc.Scan(&c.LotID, &c.Production, &c.Inspection, &c.Shipping, &c.Overall)
	return c, err
}

func getCompleteness(ctx context.Context, q queryer, lotID int64) (lot.Completeness, bool, error) {
	c, err := scanCompleteness(q.QueryRowContext(ctx,
		"SELECT "+completenessColumns+" FROM lot_completeness WHERE lot_id = ?", lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return lot.Completeness{}, false, nil
	}
	if err != nil {
		return lot.Completeness{}, false, classify("read completeness", err)
	}
	return c, true, nil
}

// UpsertCompleteness inserts the completeness record for rec.LotID or
// overwrites every field of the existing one. Overwrites are unconditional,
// so writing the same record twice leaves the row unchanged.
func (tx *Tx) UpsertCompleteness(ctx context.Context, rec lot.Completeness) error {
	if !rec.Consistent() {
		return fmt.Errorf("upsert completeness for lot %d: score %d does not match flags (want %d)",
			rec.LotID, rec.Overall, lot.Score(rec.Flags))
	}

	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO lot_completeness (`+completenessColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lot_id) DO UPDATE SET
			has_production_data  = excluded.has_production_data,
			has_inspection_data  = excluded.has_inspection_data,
			has_shipping_data    = excluded.has_shipping_data,
			overall_completeness = excluded.overall_completeness
	`, rec.LotID, rec.Production, rec.Inspection, rec.Shipping, rec.Overall)
	if err != nil {
		return classifyFK("upsert completeness", err, ErrCodeReferentialIntegrity)
	}
	return nil
}

// GetCompleteness reads the completeness record within the unit of work.
// The bool is false when the lot has no record yet.
func (tx *Tx) GetCompleteness(ctx context.Context, lotID int64) (lot.Completeness, bool, error) {
	return getCompleteness(ctx, tx.tx, lotID)
}

// GetCompleteness reads the committed completeness record for lotID.
// The bool is false when the lot has no record yet.
func (s *Store) GetCompleteness(ctx context.Context, lotID int64) (lot.Completeness, bool, error) {
	return getCompleteness(ctx, s.db, lotID)
}

// ListIncomplete returns one record per lot whose completeness is below
// threshold, ordered by completeness then lot id. Lots without a stored
// record are reported at zero so lots with no data at all stay visible.
//
// threshold must be in 1..100.
func (s *Store) ListIncomplete(ctx context.Context, threshold int) ([]lot.Completeness, error) {
	if threshold < 1 || threshold > 100 {
		return nil, fmt.Errorf("threshold %d out of range 1..100", threshold)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.lot_id,
		       COALESCE(c.has_production_data, 0),
		       COALESCE(c.has_inspection_data, 0),
		       COALESCE(c.has_shipping_data, 0),
		       COALESCE(c.overall_completeness, 0) AS score
		FROM lots l
		LEFT JOIN lot_completeness c ON c.lot_id = l.lot_id
		WHERE COALESCE(c.overall_completeness, 0) < ?
		ORDER BY score ASC, l.lot_id ASC
	`, threshold)
	if err != nil {
		return nil, classify("query incomplete lots", err)
	}
	defer rows.Close()

	out := []lot.Completeness{}
	for rows.Next() {
		c, err := scanCompleteness(rows)
		if err != nil {
			return nil, classify("scan completeness", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate completeness", err)
	}
	return out, nil
}
