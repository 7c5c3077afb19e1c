package lot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a child record image as seen by the mutation observer.
type Row interface {
	Stream() Stream
	// RecordID is the record's own id; zero before insertion.
	RecordID() int64
	// RecordLot is the lot the record belongs to.
	RecordLot() int64
}

// ProductionRecord is one production report for a lot.
type ProductionRecord struct {
	ID        int64           `json:"id"`
	LotID     int64           `json:"lot_id" validate:"gt=0"`
	Line      string          `json:"line,omitempty" validate:"max=64"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r ProductionRecord) Stream() Stream   { return StreamProduction }
func (r ProductionRecord) RecordID() int64  { return r.ID }
func (r ProductionRecord) RecordLot() int64 { return r.LotID }

// Validate checks field constraints. Quantity may be zero but not negative.
func (r ProductionRecord) Validate() error {
	if err := validateStruct("production record", r); err != nil {
		return err
	}
	if r.Quantity.IsNegative() {
		return &ValidationError{Entity: "production record", Fields: map[string]string{"Quantity": "gte"}}
	}
	return nil
}

// InspectionRecord is one quality inspection result for a lot.
type InspectionRecord struct {
	ID        int64     `json:"id"`
	LotID     int64     `json:"lot_id" validate:"gt=0"`
	Result    string    `json:"result,omitempty" validate:"max=64"`
	Inspector string    `json:"inspector,omitempty" validate:"max=64"`
	CreatedAt time.Time `json:"created_at"`
}

func (r InspectionRecord) Stream() Stream   { return StreamInspection }
func (r InspectionRecord) RecordID() int64  { return r.ID }
func (r InspectionRecord) RecordLot() int64 { return r.LotID }

func (r InspectionRecord) Validate() error {
	return validateStruct("inspection record", r)
}

// ShippingRecord is one shipment entry for a lot.
type ShippingRecord struct {
	ID        int64     `json:"id"`
	LotID     int64     `json:"lot_id" validate:"gt=0"`
	Status    string    `json:"status,omitempty" validate:"max=64"`
	Carrier   string    `json:"carrier,omitempty" validate:"max=64"`
	CreatedAt time.Time `json:"created_at"`
}

func (r ShippingRecord) Stream() Stream   { return StreamShipping }
func (r ShippingRecord) RecordID() int64  { return r.ID }
func (r ShippingRecord) RecordLot() int64 { return r.LotID }

func (r ShippingRecord) Validate() error {
	return validateStruct("shipping record", r)
}

// ValidateRow validates any of the three record types.
func ValidateRow(r Row) error {
	switch v := r.(type) {
	case ProductionRecord:
		return v.Validate()
	case InspectionRecord:
		return v.Validate()
	case ShippingRecord:
		return v.Validate()
	case nil:
		return fmt.Errorf("nil row")
	}
	return fmt.Errorf("unsupported row type %T", r)
}

// NormalizeRow returns r with its free-text fields normalized.
func NormalizeRow(r Row) Row {
	switch v := r.(type) {
	case ProductionRecord:
		v.Line = NormalizeText(v.Line)
		return v
	case InspectionRecord:
		v.Result = NormalizeText(v.Result)
		v.Inspector = NormalizeText(v.Inspector)
		return v
	case ShippingRecord:
		v.Status = NormalizeText(v.Status)
		v.Carrier = NormalizeText(v.Carrier)
		return v
	}
	return r
}
