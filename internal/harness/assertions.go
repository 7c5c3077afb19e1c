package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions checks every assertion against the final state and
// returns one message per failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertCompleteness:
		return h.assertCompleteness(ctx, a)
	case AssertIncomplete:
		return h.assertIncomplete(ctx, a)
	case AssertRecomputeCount:
		if got := h.engine.Recomputations(); got != int64(a.Count) {
			return &AssertionError{
				Type:     AssertRecomputeCount,
				Expected: fmt.Sprintf("%d recomputes", a.Count),
				Actual:   fmt.Sprintf("%d recomputes", got),
			}
		}
		return nil
	case AssertRecordCount:
		return h.assertRecordCount(ctx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertCompleteness compares the whole stored record of a.Lot.
func (h *Harness) assertCompleteness(ctx context.Context, a Assertion) error {
	got, err := h.snapshot(ctx, a.Lot)
	if err != nil {
		return err
	}
	if want := a.Expect.snapshot(a.Lot); got != want {
		return &AssertionError{
			Type:     AssertCompleteness,
			Expected: fmt.Sprintf("%+v", want),
			Actual:   fmt.Sprintf("%+v", got),
		}
	}
	return nil
}

// assertIncomplete checks ListIncomplete returns exactly a.Lots, in order.
func (h *Harness) assertIncomplete(ctx context.Context, a Assertion) error {
	recs, err := h.store.ListIncomplete(ctx, a.Threshold)
	if err != nil {
		return err
	}
	got := make([]int64, len(recs))
	for i, r := range recs {
		got[i] = r.LotID
	}
	want := a.Lots
	if want == nil {
		want = []int64{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertIncomplete,
			Expected: fmt.Sprintf("lots %v below %d", want, a.Threshold),
			Actual:   fmt.Sprintf("lots %v", got),
		}
	}
	return nil
}

func (h *Harness) assertRecordCount(ctx context.Context, a Assertion) error {
	rows, err := h.store.ListRecords(ctx, lot.Stream(a.Stream), a.Lot)
	if err != nil {
		return err
	}
	if len(rows) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s records in lot %d", a.Count, a.Stream, a.Lot),
			Actual:   fmt.Sprintf("%d records", len(rows)),
		}
	}
	return nil
}
