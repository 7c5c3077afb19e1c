// Package lot defines the domain model shared by the store and the engine.
//
// A Lot owns three independent child streams (production, inspection,
// shipping) and at most one Completeness record. Completeness is derived
// purely from presence: a stream counts once it has at least one record for
// the lot, no matter how many.
//
// # Scoring
//
// The completeness score is count_true * 100 / 3 with integer truncation, so
// the only values ever produced are 0, 33, 66 and 100. Two of three streams
// score 66, not 67.
//
// # Row images
//
// Child records implement Row. A Mutation carries the row images that are
// meaningful for its operation: After for insert, Before and After for
// update, Before for delete.
package lot
