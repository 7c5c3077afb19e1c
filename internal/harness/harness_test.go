package harness

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejasri1920/Steelworks/internal/engine"
	"github.com/tejasri1920/Steelworks/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"lot_progression", "move_between_lots"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_BulkRows(t *testing.T) {
	result, err := Run(loadTestScenario(t, "bulk_rows"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, int64(500), result.Trace[0].Seq)
	assert.Equal(t, []Snapshot{
		{Lot: 1, Production: true, Overall: 33},
		{Lot: 2},
		{Lot: 3, Absent: true},
	}, result.Final)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "move_between_lots")
	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_ReportsMismatches(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: every expectation here is wrong
lots:
  - {lot_id: 1, start_date: "2024-05-01", end_date: "2024-05-01"}
steps:
  - op: insert
    stream: production
    lot_id: 1
    expect: {production: true, overall: 34}
  - op: insert
    stream: shipping
    lot_id: 1
    expect_error: REFERENTIAL_INTEGRITY
  - op: insert
    stream: shipping
    lot_id: 9
assertions:
  - type: recompute_count
    count: 7
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected {Lot:1 Production:true")
	assert.Contains(t, result.Errors[1], "expected error REFERENTIAL_INTEGRITY, got success")
	assert.Contains(t, result.Errors[2], "unexpected error")
	assert.Contains(t, result.Errors[3], "recompute_count")
	assert.Equal(t, "REFERENTIAL_INTEGRITY", result.Trace[2].Error)
}

func TestRun_SetupFailure(t *testing.T) {
	s := &Scenario{
		Name:        "bad_setup",
		Description: "end before start",
		Lots:        []LotSpec{{LotID: 1, StartDate: "2024-05-02", EndDate: "2024-05-01"}},
		Steps:       []Step{{Op: OpRecompute, LotID: 1}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"missing name", "description: d\nsteps: [{op: recompute, lot_id: 1}]\n", "name is required"},
		{"missing steps", "name: n\ndescription: d\n", "steps list is required"},
		{"unknown field", "name: n\ndescription: d\nstep: []\n", "field step not found"},
		{"unknown op", "name: n\ndescription: d\nsteps: [{op: upsert}]\n", `unknown op "upsert"`},
		{"unknown stream", "name: n\ndescription: d\nsteps: [{op: insert, stream: paint, lot_id: 1}]\n", "unknown stream"},
		{"undefined ref", "name: n\ndescription: d\nsteps: [{op: delete, ref: x}]\n", `unknown ref "x"`},
		{"expect and error", "name: n\ndescription: d\nsteps: [{op: recompute, lot_id: 1, expect: {}, expect_error: X}]\n", "mutually exclusive"},
		{"bad threshold", "name: n\ndescription: d\nsteps: [{op: recompute, lot_id: 1}]\nassertions: [{type: incomplete, threshold: 0}]\n", "threshold"},
		{"unknown assertion", "name: n\ndescription: d\nsteps: [{op: recompute, lot_id: 1}]\nassertions: [{type: trace_order}]\n", "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestErrorCode(t *testing.T) {
	storeErr := &store.Error{Code: store.ErrCodeLotNotFound, Message: "lot does not exist"}

	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "ERROR", ErrorCode(errors.New("boom")))
	assert.Equal(t, "LOT_NOT_FOUND", ErrorCode(storeErr))
	assert.Equal(t, "LOT_NOT_FOUND", ErrorCode(engine.NewRecomputeError(1, "", storeErr)))
	assert.Equal(t, "LOCK_FAILED", ErrorCode(engine.NewLockError(1, "", errors.New("timeout"))))
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: AssertIncomplete, Expected: "lots [1]", Actual: "lots []"}
	assert.Equal(t, "Assertion failed: incomplete\n  Expected: lots [1]\n  Actual: lots []", err.Error())
}
