// Package report renders lot completeness reports for people: an xlsx
// workbook for sharing and an aligned text table for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// Sheet names of the xlsx workbook.
const (
	SheetCompleteness = "Completeness"
	SheetIncomplete   = "Incomplete"
)

var headings = []any{
	"Lot", "Code", "Start", "End",
	"Production", "Inspection", "Shipping", "Completeness",
	"Production Rows", "Inspection Rows", "Shipping Rows",
}

// WriteXLSX writes rows as a workbook to w. The "Completeness" sheet has
// one row per lot; "Incomplete" repeats the lots scoring below 100.
func WriteXLSX(w io.Writer, rows []store.LotReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCompleteness); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetIncomplete); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	var incomplete []store.LotReport
	for _, r := range rows {
		if score(r) < 100 {
			incomplete = append(incomplete, r)
		}
	}

	if err := writeSheet(f, SheetCompleteness, rows); err != nil {
		return err
	}
	if err := writeSheet(f, SheetIncomplete, incomplete); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows []store.LotReport) error {
	header := headings
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		flags := flagsOf(r)
		values := []any{
			r.Lot.ID,
			r.Lot.Code,
			lot.FormatDate(r.Lot.StartDate),
			lot.FormatDate(r.Lot.EndDate),
			yesNo(flags.Production),
			yesNo(flags.Inspection),
			yesNo(flags.Shipping),
			score(r),
			len(r.Production),
			len(r.Inspection),
			len(r.Shipping),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// WriteText writes rows as an aligned table. A lot with no stored
// completeness record shows "-" in the flag and score columns.
func WriteText(w io.Writer, rows []store.LotReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOT\tCODE\tSTART\tEND\tPROD\tINSP\tSHIP\tSCORE\tROWS")
	for _, r := range rows {
		prod, insp, ship, sc := "-", "-", "-", "-"
		if c := r.Completeness; c != nil {
			prod, insp, ship = yesNo(c.Production), yesNo(c.Inspection), yesNo(c.Shipping)
			sc = strconv.Itoa(c.Overall)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d/%d/%d\n",
			r.Lot.ID, dash(r.Lot.Code),
			lot.FormatDate(r.Lot.StartDate), lot.FormatDate(r.Lot.EndDate),
			prod, insp, ship, sc,
			len(r.Production), len(r.Inspection), len(r.Shipping))
	}
	return tw.Flush()
}

// WriteCompleteness writes completeness records as an aligned table.
func WriteCompleteness(w io.Writer, recs []lot.Completeness) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOT\tPROD\tINSP\tSHIP\tSCORE")
	for _, c := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			c.LotID, yesNo(c.Production), yesNo(c.Inspection), yesNo(c.Shipping), c.Overall)
	}
	return tw.Flush()
}

func flagsOf(r store.LotReport) lot.Flags {
	if r.Completeness == nil {
		return lot.Flags{}
	}
	return r.Completeness.Flags
}

func score(r store.LotReport) int {
	if r.Completeness == nil {
		return 0
	}
	return r.Completeness.Overall
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
