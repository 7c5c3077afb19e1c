package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// ReportFilter narrows a report. Zero fields do not filter. From and To
// bound the lot start date inclusively.
type ReportFilter struct {
	LotID int64
	From  time.Time
	To    time.Time
}

// LotReport is one lot with its completeness and child records.
// Completeness is nil when the lot has no stored record yet. The record
// slices are empty, never nil.
type LotReport struct {
	Lot          lot.Lot                `json:"lot"`
	Completeness *lot.Completeness      `json:"completeness"`
	Production   []lot.ProductionRecord `json:"production"`
	Inspection   []lot.InspectionRecord `json:"inspection"`
	Shipping     []lot.ShippingRecord   `json:"shipping"`
}

// Report returns the lots matching f in ascending lot id order. Lots with no
// child rows still appear. The lot query and every record list run in one
// read transaction, so each row pairs a completeness record with the child
// records of the same commit.
func (s *Store) Report(ctx context.Context, f ReportFilter) ([]LotReport, error) {
	var (
		where []string
		args  []any
	)
	if f.LotID != 0 {
		where = append(where, "l.lot_id = ?")
		args = append(args, f.LotID)
	}
	if from := dateArg(f.From); from != nil {
		where = append(where, "l.start_date >= ?")
		args = append(args, from)
	}
	if to := dateArg(f.To); to != nil {
		where = append(where, "l.start_date <= ?")
		args = append(args, to)
	}

	query := `
		SELECT l.lot_id, l.code, l.start_date, l.end_date,
		       c.has_production_data, c.has_inspection_data, c.has_shipping_data, c.overall_completeness
		FROM lots l
		LEFT JOIN lot_completeness c ON c.lot_id = l.lot_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY l.lot_id ASC"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, classify("begin report", err)
	}
	defer tx.Rollback()

	reports, err := queryReportLots(ctx, tx, query, args)
	if err != nil {
		return nil, err
	}

	// The lot cursor is closed by now; the store has a single connection.
	for i := range reports {
		if err := fillReport(ctx, tx, &reports[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("end report", err)
	}
	return reports, nil
}

func queryReportLots(ctx context.Context, q queryer, query string, args []any) ([]LotReport, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query report", err)
	}
	defer rows.Close()

	out := []LotReport{}
	for rows.Next() {
		var (
			l          lot.Lot
			start, end string
			prod, insp sql.NullBool
			ship       sql.NullBool
			score      sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.Code, &start, &end, &prod, &insp, &ship, &score); err != nil {
			return nil, classify("scan report", err)
		}
		if l.StartDate, err = lot.ParseDate(start); err != nil {
			return nil, fmt.Errorf("lot %d start_date: %w", l.ID, err)
		}
		if l.EndDate, err = lot.ParseDate(end); err != nil {
			return nil, fmt.Errorf("lot %d end_date: %w", l.ID, err)
		}

		r := LotReport{Lot: l}
		if score.Valid {
			r.Completeness = &lot.Completeness{
				LotID:   l.ID,
				Flags:   lot.Flags{Production: prod.Bool, Inspection: insp.Bool, Shipping: ship.Bool},
				Overall: int(score.Int64),
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate report", err)
	}
	return out, nil
}

func fillReport(ctx context.Context, q queryer, r *LotReport) error {
	r.Production = []lot.ProductionRecord{}
	r.Inspection = []lot.InspectionRecord{}
	r.Shipping = []lot.ShippingRecord{}

	for _, stream := range lot.Streams {
		rows, err := listRecords(ctx, q, stream, r.Lot.ID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			switch v := row.(type) {
			case lot.ProductionRecord:
				r.Production = append(r.Production, v)
			case lot.InspectionRecord:
				r.Inspection = append(r.Inspection, v)
			case lot.ShippingRecord:
				r.Shipping = append(r.Shipping, v)
			}
		}
	}
	return nil
}
