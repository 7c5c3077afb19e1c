// Package harness runs conformance scenarios against the completeness
// engine.
//
// A scenario creates lots, drives child-stream writes through the real store
// and engine, and checks the stored completeness after each step. Every run
// uses a fresh in-memory database, a StepClock and sequential unit ids, so
// the same scenario always produces the same trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lot_progression
//	description: "Score climbs one stream at a time"
//	lots:
//	  - { lot_id: 42, start_date: "2024-05-01", end_date: "2024-05-03" }
//	steps:
//	  - op: insert
//	    stream: production
//	    lot_id: 42
//	    ref: p1
//	    fields: { line: L1, quantity: "120" }
//	    expect: { production: true, overall: 33 }
//	  - op: delete
//	    ref: p1
//	    expect: { overall: 0 }
//	  - op: insert
//	    stream: shipping
//	    lot_id: 7
//	    expect_error: REFERENTIAL_INTEGRITY
//	assertions:
//	  - type: completeness
//	    lot: 42
//	    expect: { overall: 0 }
//	  - type: recompute_count
//	    count: 2
//
// Step ops are insert, update, delete, delete_lot, recompute and create_lot.
// An insert names its record with ref; update and delete address records by
// ref. An expect clause is compared with the whole stored record of the lot
// the step touched (the highest id when a record moves) unless expect.lot is
// set. expect_error names the store or engine error code the step must fail
// with.
//
// # Golden Traces
//
// RunWithGolden compares the JSON trace of a run with
// testdata/golden/{name}.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
