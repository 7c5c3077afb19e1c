package batch

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/shopspring/decimal"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

//go:embed schema.cue
var schemaCUE string

// File is a decoded, schema-checked batch.
type File struct {
	Atomic     bool       `json:"atomic"`
	Lots       []LotSpec  `json:"lots"`
	Mutations  []Mutation `json:"mutations"`
	DeleteLots []int64    `json:"delete_lots"`
}

// LotSpec is one lot to create.
type LotSpec struct {
	LotID     int64  `json:"lot_id"`
	Code      string `json:"code"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Lot converts the spec into a lot.Lot.
func (s LotSpec) Lot() (lot.Lot, error) {
	start, err := lot.ParseDate(s.StartDate)
	if err != nil {
		return lot.Lot{}, fmt.Errorf("lot %d: %w", s.LotID, err)
	}
	end, err := lot.ParseDate(s.EndDate)
	if err != nil {
		return lot.Lot{}, fmt.Errorf("lot %d: %w", s.LotID, err)
	}
	return lot.Lot{ID: s.LotID, Code: s.Code, StartDate: start, EndDate: end}, nil
}

// Mutation is one child-stream write. Only the fields of its stream are set.
type Mutation struct {
	Op     lot.Operation `json:"op"`
	Stream lot.Stream    `json:"stream"`
	LotID  int64         `json:"lot_id"`
	ID     int64         `json:"id"`

	Line     string          `json:"line"`
	Quantity decimal.Decimal `json:"quantity"`

	Result    string `json:"result"`
	Inspector string `json:"inspector"`

	Status  string `json:"status"`
	Carrier string `json:"carrier"`
}

// Row builds the record image the mutation writes.
func (m Mutation) Row() lot.Row {
	switch m.Stream {
	case lot.StreamProduction:
		return lot.ProductionRecord{ID: m.ID, LotID: m.LotID, Line: m.Line, Quantity: m.Quantity}
	case lot.StreamInspection:
		return lot.InspectionRecord{ID: m.ID, LotID: m.LotID, Result: m.Result, Inspector: m.Inspector}
	case lot.StreamShipping:
		return lot.ShippingRecord{ID: m.ID, LotID: m.LotID, Status: m.Status, Carrier: m.Carrier}
	}
	return nil
}

// SchemaError reports a batch file that does not match the schema.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and parses the batch file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes a batch from data. The extension of filename selects CUE
// for ".cue"; anything else is read as YAML, which includes JSON.
func Parse(filename string, data []byte) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("batch/schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}

	var doc cue.Value
	if strings.EqualFold(filepath.Ext(filename), ".cue") {
		doc = ctx.CompileBytes(data, cue.Filename(filename))
	} else {
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc = ctx.BuildFile(f)
	}
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Batch")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	// decimal.Decimal accepts both quoted and bare JSON numbers.
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out File
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	se := &SchemaError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
