// Package engine keeps each lot's completeness record in step with its
// three child streams.
//
// The engine registers itself as the store's observer. Every child-stream
// write made through a store.Tx reaches ObserveMutation synchronously,
// inside the same SQL transaction, so the write and its completeness update
// commit or roll back together.
//
// ARCHITECTURE:
//
// Mutation Flow:
// 1. Caller writes a record through store.Tx (insert, update or delete)
// 2. The store hands the mutation, with its row images, to ObserveMutation
// 3. The engine resolves the affected lot ids from the images
// 4. Each lot is locked for the rest of the unit of work, ascending by id
// 5. recompute runs three existence checks and upserts the record
//
// recompute is stateless and parameterized only by the lot id. Running it
// twice leaves the stored record unchanged.
//
// CRITICAL PATTERNS:
//
// Presence Scoring
// overall_completeness = present_streams * 100 / 3, truncated.
// Row counts never affect the score.
//
// Sequenced Recomputes
// Every recompute is stamped with a monotonic seq from Clock.Next() for
// logs and traces. NEVER use wall-clock timestamps for ordering.
//
// Per-Lot Serialization
// Recomputes of the same lot never interleave. The lot lock is held from
// the first recompute until the unit of work commits or rolls back.
package engine
