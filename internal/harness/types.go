package harness

import "github.com/tejasri1920/Steelworks/internal/lot"

// Snapshot is the stored completeness of one lot at a point in the run.
type Snapshot struct {
	Lot        int64 `json:"lot"`
	Production bool  `json:"production"`
	Inspection bool  `json:"inspection"`
	Shipping   bool  `json:"shipping"`
	Overall    int   `json:"overall"`
	Absent     bool  `json:"absent,omitempty"`
}

func snapshotOf(lotID int64, rec lot.Completeness, found bool) Snapshot {
	if !found {
		return Snapshot{Lot: lotID, Absent: true}
	}
	return Snapshot{
		Lot:        lotID,
		Production: rec.Production,
		Inspection: rec.Inspection,
		Shipping:   rec.Shipping,
		Overall:    rec.Overall,
	}
}

func (e Expect) snapshot(lotID int64) Snapshot {
	if e.Absent {
		return Snapshot{Lot: lotID, Absent: true}
	}
	return Snapshot{
		Lot:        lotID,
		Production: e.Production,
		Inspection: e.Inspection,
		Shipping:   e.Shipping,
		Overall:    e.Overall,
	}
}

// TraceEvent records one executed step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Stream string `json:"stream,omitempty"`
	Ref    string `json:"ref,omitempty"`

	// Error is the error code the step failed with, if any.
	Error string `json:"error,omitempty"`

	// Seq is the engine's recompute count after the step.
	Seq int64 `json:"seq"`

	// State holds the completeness of every lot the step touched.
	State []Snapshot `json:"state"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the completeness of every lot after the last step, ascending
	// by lot id.
	Final []Snapshot `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  []Snapshot{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
