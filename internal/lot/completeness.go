package lot

// Flags is the presence vector of a lot: one flag per stream.
type Flags struct {
	Production bool `json:"has_production_data"`
	Inspection bool `json:"has_inspection_data"`
	Shipping   bool `json:"has_shipping_data"`
}

// Has returns the flag for s.
func (f Flags) Has(s Stream) bool {
	switch s {
	case StreamProduction:
		return f.Production
	case StreamInspection:
		return f.Inspection
	case StreamShipping:
		return f.Shipping
	}
	return false
}

// Set assigns the flag for s. Unknown streams are ignored.
func (f *Flags) Set(s Stream, present bool) {
	switch s {
	case StreamProduction:
		f.Production = present
	case StreamInspection:
		f.Inspection = present
	case StreamShipping:
		f.Shipping = present
	}
}

// Count returns how many streams are present.
func (f Flags) Count() int {
	n := 0
	for _, s := range Streams {
		if f.Has(s) {
			n++
		}
	}
	return n
}

// Any reports whether at least one stream is present.
func (f Flags) Any() bool {
	return f.Count() > 0
}

// Score is the completeness percentage for f: count * 100 / 3, truncated.
func Score(f Flags) int {
	return f.Count() * 100 / len(Streams)
}

// Completeness is the derived per-lot record owned by the engine.
type Completeness struct {
	LotID int64 `json:"lot_id"`
	Flags
	Overall int `json:"overall_completeness"`
}

// NewCompleteness builds the record for lotID with the score derived from f.
func NewCompleteness(lotID int64, f Flags) Completeness {
	return Completeness{LotID: lotID, Flags: f, Overall: Score(f)}
}

// Consistent reports whether Overall matches the flags.
func (c Completeness) Consistent() bool {
	return c.Overall == Score(c.Flags)
}
