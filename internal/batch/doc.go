// Package batch loads a file of lot and record changes and applies it
// through the store.
//
// A batch file is YAML, JSON or CUE:
//
//	atomic: true
//	lots:
//	  - {lot_id: 42, code: "HR-42", start_date: "2024-05-01", end_date: "2024-05-03"}
//	mutations:
//	  - {op: insert, stream: production, lot_id: 42, line: "L1", quantity: 120}
//	  - {op: delete, stream: shipping, id: 7}
//	delete_lots: [13]
//
// The file is validated against a closed CUE schema before anything is
// written: unknown fields, a missing lot_id on insert or a missing id on
// update and delete are rejected with their source position.
//
// Lots are created first, then mutations run in file order, then lots are
// deleted. Without atomic each item is its own unit of work and Apply stops
// at the first failure; with atomic the whole file commits or nothing does.
package batch
