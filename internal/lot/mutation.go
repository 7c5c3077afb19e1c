package lot

// Mutation describes one committed-to-be change to a child stream.
//
// Before is nil for inserts, After is nil for deletes. LotID is the lot the
// write path addressed; when the images disagree with it the images win.
type Mutation struct {
	// UnitID correlates every mutation applied in the same unit of work.
	UnitID string

	Stream Stream
	Op     Operation
	LotID  int64
	Before Row
	After  Row
}

// AffectedLots returns the distinct lot ids touched by the mutation in
// ascending order.
//
// Insert and update take the lot from the after image, delete from the
// before image. An update that moves a record between lots affects both.
// LotID is the fallback when the relevant image is missing. Zero ids are
// dropped, so an unresolvable mutation yields an empty slice.
func (m Mutation) AffectedLots() []int64 {
	var ids []int64
	switch m.Op {
	case OpInsert:
		ids = append(ids, imageLot(m.After, m.LotID))
	case OpUpdate:
		ids = append(ids, imageLot(m.After, m.LotID))
		if m.Before != nil {
			ids = append(ids, m.Before.RecordLot())
		}
	case OpDelete:
		ids = append(ids, imageLot(m.Before, m.LotID))
	}

	out := ids[:0]
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	if len(out) == 2 && out[0] > out[1] {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func imageLot(r Row, fallback int64) int64 {
	if r != nil && r.RecordLot() > 0 {
		return r.RecordLot()
	}
	return fallback
}
