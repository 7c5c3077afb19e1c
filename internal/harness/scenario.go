package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tejasri1920/Steelworks/internal/lot"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Lots are created before the first step and are assumed to succeed.
	Lots []LotSpec `yaml:"lots,omitempty"`

	// Steps run in order, each in its own unit of work.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// LotSpec is a lot created during setup or by a create_lot step.
type LotSpec struct {
	LotID     int64  `yaml:"lot_id"`
	Code      string `yaml:"code,omitempty"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

// Lot converts the spec into a lot.Lot.
func (s LotSpec) Lot() (lot.Lot, error) {
	start, err := lot.ParseDate(s.StartDate)
	if err != nil {
		return lot.Lot{}, err
	}
	end, err := lot.ParseDate(s.EndDate)
	if err != nil {
		return lot.Lot{}, err
	}
	return lot.Lot{ID: s.LotID, Code: s.Code, StartDate: start, EndDate: end}, nil
}

// Step is one operation of the flow.
type Step struct {
	// Op is insert, update, delete, delete_lot, recompute or create_lot.
	Op string `yaml:"op"`

	// Stream is required for insert.
	Stream string `yaml:"stream,omitempty"`

	// LotID is the target lot. For update it moves the record; zero keeps
	// the record's current lot.
	LotID int64 `yaml:"lot_id,omitempty"`

	// Ref names the record an insert creates, and addresses the record for
	// update and delete.
	Ref string `yaml:"ref,omitempty"`

	// Count repeats an insert; the whole batch is one unit of work and ref
	// names the last record. Default 1.
	Count int `yaml:"count,omitempty"`

	// Fields are the stream columns: line, quantity, result, inspector,
	// status and carrier.
	Fields map[string]string `yaml:"fields,omitempty"`

	// Lot is the lot a create_lot step creates.
	Lot *LotSpec `yaml:"lot,omitempty"`

	// Expect is compared with the stored completeness after the step.
	Expect *Expect `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expect is an expected completeness record. All fields are compared.
type Expect struct {
	// Lot overrides the step's lot.
	Lot int64 `yaml:"lot,omitempty"`

	Production bool `yaml:"production"`
	Inspection bool `yaml:"inspection"`
	Shipping   bool `yaml:"shipping"`
	Overall    int  `yaml:"overall"`

	// Absent expects no stored record at all.
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "completeness": the stored record of Lot equals Expect
	// - "incomplete": ListIncomplete(Threshold) returns exactly Lots
	// - "recompute_count": the engine ran exactly Count recomputes
	// - "record_count": Lot has exactly Count records in Stream
	Type string `yaml:"type"`

	Lot       int64   `yaml:"lot,omitempty"`
	Expect    *Expect `yaml:"expect,omitempty"`
	Threshold int     `yaml:"threshold,omitempty"`
	Lots      []int64 `yaml:"lots,omitempty"`
	Stream    string  `yaml:"stream,omitempty"`
	Count     int     `yaml:"count,omitempty"`
}

// Step op constants.
const (
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDeleteLot = "delete_lot"
	OpRecompute = "recompute"
	OpCreateLot = "create_lot"
)

// Assertion type constants.
const (
	AssertCompleteness   = "completeness"
	AssertIncomplete     = "incomplete"
	AssertRecomputeCount = "recompute_count"
	AssertRecordCount    = "record_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, l := range s.Lots {
		if l.LotID <= 0 {
			return fmt.Errorf("lots[%d]: lot_id must be positive", i)
		}
	}

	refs := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(i, step, refs); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step. refs accumulates the refs defined
// by earlier inserts.
func validateStep(i int, step Step, refs map[string]bool) error {
	if step.Expect != nil && step.ExpectError != "" {
		return fmt.Errorf("steps[%d]: expect and expect_error are mutually exclusive", i)
	}
	if step.Count < 0 {
		return fmt.Errorf("steps[%d]: count must be non-negative", i)
	}

	switch step.Op {
	case OpInsert:
		if _, err := lot.ParseStream(step.Stream); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.LotID <= 0 {
			return fmt.Errorf("steps[%d]: lot_id is required for insert", i)
		}
		if step.Ref != "" {
			refs[step.Ref] = true
		}
	case OpUpdate, OpDelete:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", i, step.Op)
		}
		if !refs[step.Ref] {
			return fmt.Errorf("steps[%d]: unknown ref %q", i, step.Ref)
		}
	case OpDeleteLot, OpRecompute:
		if step.LotID <= 0 {
			return fmt.Errorf("steps[%d]: lot_id is required for %s", i, step.Op)
		}
	case OpCreateLot:
		if step.Lot == nil {
			return fmt.Errorf("steps[%d]: lot is required for create_lot", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCompleteness:
		if a.Lot <= 0 {
			return fmt.Errorf("assertions[%d]: lot is required for completeness", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for completeness", index)
		}
	case AssertIncomplete:
		if a.Threshold < 1 || a.Threshold > 100 {
			return fmt.Errorf("assertions[%d]: threshold must be between 1 and 100", index)
		}
	case AssertRecomputeCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for recompute_count", index)
		}
	case AssertRecordCount:
		if a.Lot <= 0 {
			return fmt.Errorf("assertions[%d]: lot is required for record_count", index)
		}
		if _, err := lot.ParseStream(a.Stream); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
