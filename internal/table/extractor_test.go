package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExtractor() *Extractor {
	return NewExtractor(zap.NewNop())
}

func TestExtract_EndToEnd(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION QTY UNIT PRICE AMOUNT DATE",
		"1 1234 Consultation 1 500.00 26/01/2026",
		"TOTAL 500.00",
	}, "\n")

	result := newTestExtractor().Extract(text)

	assert.True(t, result.TableDetected)
	require.Len(t, result.LineItems, 1)

	item := result.LineItems[0]
	require.NotNil(t, item.TariffCode)
	assert.Equal(t, "1234", *item.TariffCode)
	require.NotNil(t, item.Quantity)
	assert.Equal(t, 1.0, *item.Quantity)
	require.NotNil(t, item.UnitPrice)
	assert.Equal(t, 500.00, *item.UnitPrice)
	require.NotNil(t, item.Amount)
	assert.Equal(t, 500.00, *item.Amount)
	require.NotNil(t, item.Date)
	assert.Equal(t, "26/01/2026", *item.Date)
	require.NotNil(t, item.Description)
	assert.Equal(t, "Consultation", *item.Description)

	require.NotNil(t, result.ClaimedTotal)
	assert.Equal(t, 500.00, *result.ClaimedTotal)
	require.NotNil(t, result.ComputedTotal)
	assert.Equal(t, 500.00, *result.ComputedTotal)
	assert.True(t, result.TotalMatch)
}

func TestExtract_NoTable(t *testing.T) {
	result := newTestExtractor().Extract("Dear patient,\nthank you for your visit.\nRegards")

	assert.False(t, result.TableDetected)
	assert.Empty(t, result.LineItems)
	assert.NotEmpty(t, result.Discrepancies)
	assert.Zero(t, result.Confidence)
	assert.False(t, result.TotalMatch)
}

func TestExtract_ColumnAssignment(t *testing.T) {
	tests := []struct {
		name      string
		row       string
		unitPrice float64
		amount    float64
	}{
		{
			name:      "one amount fills both columns",
			row:       "1 1234 Consult 26/01/2026 100.00",
			unitPrice: 100.00,
			amount:    100.00,
		},
		{
			name:      "two amounts are unit price and amount",
			row:       "1 1234 Consult 26/01/2026 100.00 90.00",
			unitPrice: 100.00,
			amount:    90.00,
		},
		{
			name:      "three amounts pick the award column",
			row:       "1 1234 Consult 26/01/2026 100.00 90.00 80.00",
			unitPrice: 100.00,
			amount:    80.00,
		},
		{
			name:      "five amounts still pick the award column",
			row:       "1 1234 Consult 26/01/2026 100.00 90.00 80.00 10.00 0.00",
			unitPrice: 100.00,
			amount:    80.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "LINE TARIFF DESCRIPTION AMOUNT DATE\n" + tt.row
			result := newTestExtractor().Extract(text)

			require.Len(t, result.LineItems, 1)
			item := result.LineItems[0]
			require.NotNil(t, item.UnitPrice)
			assert.Equal(t, tt.unitPrice, *item.UnitPrice)
			require.NotNil(t, item.Amount)
			assert.Equal(t, tt.amount, *item.Amount)
		})
	}
}

func TestExtract_YearReconstruction(t *testing.T) {
	// OCR split the final year digit off onto the end of the row. The digit
	// must be taken from the very end, not from the leading "6" of the
	// amount right after the date.
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION QTY AMOUNT DATE",
		"2 2101 Scale and polish 26/01/202 6,670.00 7",
	}, "\n")

	result := newTestExtractor().Extract(text)

	require.Len(t, result.LineItems, 1)
	item := result.LineItems[0]
	require.NotNil(t, item.Date)
	assert.Equal(t, "26/01/2027", *item.Date)
	require.NotNil(t, item.Amount)
	assert.Equal(t, 6670.00, *item.Amount)
	require.NotNil(t, item.UnitPrice)
	assert.Equal(t, 6670.00, *item.UnitPrice)
	require.NotNil(t, item.Description)
	assert.Equal(t, "Scale and polish", *item.Description)
}

func TestExtract_ContinuationMerging(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 2101 Full mouth examination 26/01/2026 500.00",
		"and charting",
		"TOTAL 500.00",
	}, "\n")

	result := newTestExtractor().Extract(text)

	require.Len(t, result.LineItems, 1)
	item := result.LineItems[0]
	require.NotNil(t, item.Description)
	assert.Equal(t, "Full mouth examination and charting", *item.Description)
	assert.True(t, result.TotalMatch)
}

func TestExtract_TotalMismatch(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 1234 Consult 26/01/2026 500.00",
		"TOTAL 900.00",
	}, "\n")

	result := newTestExtractor().Extract(text)

	assert.False(t, result.TotalMatch)
	require.NotEmpty(t, result.Discrepancies)
	assert.Contains(t, result.Discrepancies[0], "Total mismatch")
}

func TestExtract_QuantityTimesUnitMismatch(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION QTY AMOUNT DATE",
		"1 1234 Consult 2 26/01/2026 100.00 90.00 300.00",
		"TOTAL 300.00",
	}, "\n")

	result := newTestExtractor().Extract(text)

	// Total matches (300 == 300) but 2 x 100 != 300 flags the line.
	assert.True(t, result.TotalMatch)
	found := false
	for _, d := range result.Discrepancies {
		if strings.Contains(d, "Line 1") {
			found = true
		}
	}
	assert.True(t, found, "expected a line-level discrepancy, got %v", result.Discrepancies)
}

func TestExtract_ArithmeticInvariant(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 1234 Consult 26/01/2026 100.00",
		"2 2101 Cleaning 26/01/2026 150.50",
		"3 3301 X-ray 26/01/2026 249.50",
		"TOTAL 500.00",
	}, "\n")

	result := newTestExtractor().Extract(text)

	require.True(t, result.TotalMatch)
	var sum float64
	for _, item := range result.LineItems {
		require.NotNil(t, item.Amount)
		sum += *item.Amount
	}
	require.NotNil(t, result.ClaimedTotal)
	assert.InDelta(t, *result.ClaimedTotal, sum, 0.02)
}

func TestExtract_Confidence(t *testing.T) {
	// Fully populated items plus a matching total scores 1.0.
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 1234 Consult 26/01/2026 100.00",
		"TOTAL 100.00",
	}, "\n")

	result := newTestExtractor().Extract(text)
	assert.Equal(t, 1.0, result.Confidence)

	// Confidence stays within [0, 1] for sparse tables too.
	sparse := newTestExtractor().Extract("QTY AMOUNT\n1 something\n2 other")
	assert.GreaterOrEqual(t, sparse.Confidence, 0.0)
	assert.LessOrEqual(t, sparse.Confidence, 1.0)
}

func TestExtract_RegionEndsAtTerminalKeyword(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 1234 Consult 26/01/2026 100.00",
		"DIAGNOSIS: gingivitis",
		"2 5678 Should not appear 26/01/2026 999.00",
	}, "\n")

	result := newTestExtractor().Extract(text)
	require.Len(t, result.LineItems, 1)
	require.NotNil(t, result.LineItems[0].TariffCode)
	assert.Equal(t, "1234", *result.LineItems[0].TariffCode)
}

func TestExtract_RegionEndsAfterTwoBlankLines(t *testing.T) {
	text := strings.Join([]string{
		"LINE TARIFF DESCRIPTION AMOUNT DATE",
		"1 1234 Consult 26/01/2026 100.00",
		"",
		"",
		"2 5678 After the gap 26/01/2026 999.00",
	}, "\n")

	result := newTestExtractor().Extract(text)
	require.Len(t, result.LineItems, 1)
}

func TestExtract_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"1",
		"LINE TARIFF",
		"LINE TARIFF DESCRIPTION\n",
		"LINE TARIFF DESCRIPTION\n99 999999999999999999999999 nonsense",
		"QTY AMOUNT\n|||||||",
		"UNIT PRICE\n12 34 56 78 . . . ,,,,",
		strings.Repeat("LINE AMOUNT 1.00 ", 5000),
	}

	for _, input := range inputs {
		assert.NotPanics(t, func() {
			newTestExtractor().Extract(input)
		})
	}
}

func TestStripSection(t *testing.T) {
	text := strings.Join([]string{
		"ACME DENTAL CLINIC",
		"Patient: John Banda",
		"LINE TARIFF DESCRIPTION QTY AMOUNT DATE",
		"1 1234 Consult 26/01/2026 100.00",
		"TOTAL 100.00",
		"ICD CODE: K05.1",
		"Thank you for your visit",
	}, "\n")

	stripped := StripSection(text)

	assert.Contains(t, stripped, "ACME DENTAL CLINIC")
	assert.Contains(t, stripped, "Patient: John Banda")
	assert.NotContains(t, stripped, "1234")
	assert.NotContains(t, stripped, "TOTAL 100.00")
	// The diagnosis line re-emerges from inside the stripped region.
	assert.Contains(t, stripped, "ICD CODE: K05.1")
	assert.Contains(t, stripped, "Thank you for your visit")
}
