// Package store provides SQLite-backed durable storage for lots, their three
// child record streams, and the derived completeness records.
//
// The store owns the unit-of-work boundary. Every child-stream write made
// through a Tx is reported to the registered Observer synchronously, inside
// the same SQL transaction, so the completeness update commits or rolls back
// together with the mutation that caused it.
//
// # Critical Patterns
//
// Observed Writes
//   - InsertRecord, UpdateRecord and DeleteRecord emit a lot.Mutation
//   - Child writes fail with NO_OBSERVER when nothing is registered
//
// Existence, Not Counts
//   - StreamExists uses SELECT EXISTS(... LIMIT 1) over the (lot_id, id) index
//
// Dependents Guard
//   - DeleteLot refuses while any child record remains
//   - lot_completeness and child tables reference lots ON DELETE RESTRICT
//
// Deterministic Query Results
//   - List queries order by score or date, then lot_id, then id
//
// # Database Configuration
//
//   - Single connection: SQLite has one writer, and a unit of work holds it
//     for its whole duration, so readers never see half a unit of work
//   - WAL mode, synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks held by other processes
//   - foreign_keys=ON: Enforce referential integrity
package store
