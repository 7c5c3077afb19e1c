package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tejasri1920/Steelworks/internal/engine"
	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
	"github.com/tejasri1920/Steelworks/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and unit ids.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger

	// refs maps scenario record names to stored records.
	refs map[string]recordRef
}

type recordRef struct {
	stream lot.Stream
	id     int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Create the setup lots
// 3. Execute steps with expect validation
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewStepClock(testutil.Epoch, 0).Now),
		store.WithUnitIDGenerator(testutil.NewSequenceGenerator("unit")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		store:  st,
		engine: engine.New(st, engine.WithLogger(logger)),
		logger: logger,
		refs:   map[string]recordRef{},
	}

	ctx := context.Background()

	if err := h.executeSetup(ctx, scenario.Lots); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	final, err := h.finalState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.Final = final

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup creates the setup lots in one unit of work.
func (h *Harness) executeSetup(ctx context.Context, lots []LotSpec) error {
	return h.store.Update(ctx, func(tx *store.Tx) error {
		for i, spec := range lots {
			l, err := spec.Lot()
			if err != nil {
				return fmt.Errorf("lots[%d]: %w", i, err)
			}
			if _, err := tx.CreateLot(ctx, l); err != nil {
				return fmt.Errorf("lots[%d]: %w", i, err)
			}
		}
		return nil
	})
}

// executeStep runs one step and validates its expect clauses. A step error
// that the scenario does not expect fails the result; only harness faults
// are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	touched, stepErr := h.apply(ctx, step)

	ev := TraceEvent{
		Step:   i,
		Op:     step.Op,
		Stream: step.Stream,
		Ref:    step.Ref,
		Error:  ErrorCode(stepErr),
	}
	if ev.Stream == "" && step.Ref != "" {
		ev.Stream = string(h.refs[step.Ref].stream)
	}

	switch {
	case step.ExpectError != "" && stepErr == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", i, step.Op, step.ExpectError))
	case step.ExpectError != "" && ev.Error != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s: %v", i, step.Op, step.ExpectError, ev.Error, stepErr))
	case step.ExpectError == "" && stepErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Op, stepErr))
	}

	if step.Expect != nil && step.Expect.Lot != 0 {
		touched = appendLot(touched, step.Expect.Lot)
	}
	for _, lotID := range touched {
		snap, err := h.snapshot(ctx, lotID)
		if err != nil {
			return err
		}
		ev.State = append(ev.State, snap)
	}
	if ev.State == nil {
		ev.State = []Snapshot{}
	}
	ev.Seq = h.engine.Recomputations()
	result.AddTrace(ev)

	if step.Expect != nil {
		lotID := step.Expect.Lot
		if lotID == 0 && len(touched) > 0 {
			lotID = touched[len(touched)-1]
		}
		got, err := h.snapshot(ctx, lotID)
		if err != nil {
			return err
		}
		if want := step.Expect.snapshot(lotID); got != want {
			result.AddError(fmt.Sprintf("step %d (%s): lot %d completeness = %+v, expected %+v", i, step.Op, lotID, got, want))
		}
	}

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"error", ev.Error,
		"seq", ev.Seq,
	)
	return nil
}

// apply executes one step and returns the lots it touched, ascending. For a
// moved record the target lot sorts wherever its id falls; expect clauses
// default to the last touched lot.
func (h *Harness) apply(ctx context.Context, step Step) ([]int64, error) {
	switch step.Op {
	case OpInsert:
		return []int64{step.LotID}, h.insert(ctx, step)

	case OpUpdate:
		ref := h.refs[step.Ref]
		before, err := h.store.GetRecord(ctx, ref.stream, ref.id)
		if err != nil {
			return nil, err
		}
		lotID := step.LotID
		if lotID == 0 {
			lotID = before.RecordLot()
		}
		row, err := buildRow(ref.stream, ref.id, lotID, step.Fields, before)
		if err != nil {
			return nil, err
		}
		touched := appendLot([]int64{before.RecordLot()}, lotID)
		return touched, h.store.Update(ctx, func(tx *store.Tx) error {
			_, err := tx.UpdateRecord(ctx, row)
			return err
		})

	case OpDelete:
		ref := h.refs[step.Ref]
		before, err := h.store.GetRecord(ctx, ref.stream, ref.id)
		if err != nil {
			return nil, err
		}
		return []int64{before.RecordLot()}, h.store.Update(ctx, func(tx *store.Tx) error {
			_, err := tx.DeleteRecord(ctx, ref.stream, ref.id)
			return err
		})

	case OpDeleteLot:
		return []int64{step.LotID}, h.engine.DeleteLot(ctx, step.LotID)

	case OpRecompute:
		_, err := h.engine.Recompute(ctx, step.LotID)
		return []int64{step.LotID}, err

	case OpCreateLot:
		l, err := step.Lot.Lot()
		if err != nil {
			return nil, err
		}
		return []int64{l.ID}, h.store.Update(ctx, func(tx *store.Tx) error {
			_, err := tx.CreateLot(ctx, l)
			return err
		})
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) insert(ctx context.Context, step Step) error {
	stream := lot.Stream(step.Stream)
	row, err := buildRow(stream, 0, step.LotID, step.Fields, nil)
	if err != nil {
		return err
	}
	n := step.Count
	if n == 0 {
		n = 1
	}
	return h.store.Update(ctx, func(tx *store.Tx) error {
		var last lot.Row
		for range n {
			if last, err = tx.InsertRecord(ctx, row); err != nil {
				return err
			}
		}
		if step.Ref != "" {
			h.refs[step.Ref] = recordRef{stream: stream, id: last.RecordID()}
		}
		return nil
	})
}

// buildRow builds a record image from fields laid over base.
func buildRow(stream lot.Stream, id, lotID int64, fields map[string]string, base lot.Row) (lot.Row, error) {
	switch stream {
	case lot.StreamProduction:
		r, _ := base.(lot.ProductionRecord)
		r.ID, r.LotID = id, lotID
		if v, ok := fields["line"]; ok {
			r.Line = v
		}
		if v, ok := fields["quantity"]; ok {
			q, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("quantity: %w", err)
			}
			r.Quantity = q
		}
		return r, checkFields(fields, "line", "quantity")
	case lot.StreamInspection:
		r, _ := base.(lot.InspectionRecord)
		r.ID, r.LotID = id, lotID
		if v, ok := fields["result"]; ok {
			r.Result = v
		}
		if v, ok := fields["inspector"]; ok {
			r.Inspector = v
		}
		return r, checkFields(fields, "result", "inspector")
	case lot.StreamShipping:
		r, _ := base.(lot.ShippingRecord)
		r.ID, r.LotID = id, lotID
		if v, ok := fields["status"]; ok {
			r.Status = v
		}
		if v, ok := fields["carrier"]; ok {
			r.Carrier = v
		}
		return r, checkFields(fields, "status", "carrier")
	}
	return nil, fmt.Errorf("unknown stream %q", stream)
}

func checkFields(fields map[string]string, allowed ...string) error {
	for k := range fields {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unknown field %q", k)
		}
	}
	return nil
}

func (h *Harness) snapshot(ctx context.Context, lotID int64) (Snapshot, error) {
	rec, found, err := h.store.GetCompleteness(ctx, lotID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(lotID, rec, found), nil
}

func (h *Harness) finalState(ctx context.Context) ([]Snapshot, error) {
	ids, err := h.store.ListLotIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := h.snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// ErrorCode returns the store or engine code carried by err, "ERROR" for an
// uncoded error and "" for nil. Store codes win because engine errors wrap
// them.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := store.CodeOf(err); code != "" {
		return string(code)
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "ERROR"
}

// appendLot adds lotID to an ascending list unless present.
func appendLot(lots []int64, lotID int64) []int64 {
	for _, id := range lots {
		if id == lotID {
			return lots
		}
	}
	lots = append(lots, lotID)
	sort.Slice(lots, func(i, j int) bool { return lots[i] < lots[j] })
	return lots
}
