package lot

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestLot_ValidateDates(t *testing.T) {
	l := Lot{ID: 42, StartDate: mustDate(t, "2026-03-01"), EndDate: mustDate(t, "2026-03-01")}
	assert.NoError(t, l.Validate())

	l.EndDate = mustDate(t, "2026-02-28")
	err := l.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "gtefield", verr.Fields["EndDate"])
}

func TestLot_ValidateRequiresDates(t *testing.T) {
	err := Lot{ID: 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StartDate(required)")
}

func TestLot_Normalize(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	l := Lot{
		Code:      "  Lote\u0301-7 ",
		StartDate: time.Date(2026, 3, 1, 17, 30, 0, 0, time.FixedZone("x", 3600)),
		EndDate:   time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC),
	}.Normalize()

	assert.Equal(t, "Lot\u00e9-7", l.Code)
	assert.Equal(t, "2026-03-01", FormatDate(l.StartDate))
	assert.Equal(t, 0, l.StartDate.Hour())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("03/01/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), DateLayout)
}

func TestProductionRecord_RejectsNegativeQuantity(t *testing.T) {
	r := ProductionRecord{LotID: 1, Quantity: decimal.NewFromInt(-1)}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quantity(gte)")

	r.Quantity = decimal.Zero
	assert.NoError(t, r.Validate())
}

func TestValidateRow(t *testing.T) {
	assert.NoError(t, ValidateRow(ShippingRecord{LotID: 3, Status: "dispatched"}))
	assert.Error(t, ValidateRow(InspectionRecord{}))
	assert.Error(t, ValidateRow(nil))
}

func TestNormalizeRow(t *testing.T) {
	r := NormalizeRow(InspectionRecord{LotID: 1, Result: " pass ", Inspector: "Jose\u0301"})
	ins, ok := r.(InspectionRecord)
	require.True(t, ok)
	assert.Equal(t, "pass", ins.Result)
	assert.Equal(t, "Jos\u00e9", ins.Inspector)
}
