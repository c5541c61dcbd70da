package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelResponse_WellFormed(t *testing.T) {
	parsed, ok := parseModelResponse(`{"patient_name": "John Banda", "total_amount": 500}`)
	require.True(t, ok)
	assert.Equal(t, "John Banda", parsed["patient_name"])
	assert.Equal(t, 500.0, parsed["total_amount"])
}

func TestParseModelResponse_FencedWithPreamble(t *testing.T) {
	raw := "Here is the extracted data:\n```json\n{\"patient_name\": \"John Banda\"}\n```"
	parsed, ok := parseModelResponse(raw)
	require.True(t, ok)
	assert.Equal(t, "John Banda", parsed["patient_name"])
}

func TestParseModelResponse_TruncatedMidArray(t *testing.T) {
	truncated := `{"patient_name": "John Banda", "line_items": [{"description": "Consult", "amount": 500.00},`

	parsed, ok := parseModelResponse(truncated)
	require.True(t, ok)

	// The surviving fields carry the same values a well-formed response would.
	assert.Equal(t, "John Banda", parsed["patient_name"])
	items, ok := parsed["line_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Consult", item["description"])
	assert.Equal(t, 500.0, item["amount"])
}

func TestParseModelResponse_TruncatedMidObject(t *testing.T) {
	parsed, ok := parseModelResponse(`{"patient_name": "John Banda", "line_items": [`)
	require.True(t, ok)
	assert.Equal(t, "John Banda", parsed["patient_name"])
	assert.Empty(t, parsed["line_items"])
}

func TestParseModelResponse_LargestObject(t *testing.T) {
	raw := `The record {"a": 1} is less complete than {"patient_name": "John Banda", "icd_code": "K05.1"} overall.`

	parsed, ok := parseModelResponse(raw)
	require.True(t, ok)
	assert.Equal(t, "John Banda", parsed["patient_name"])
	assert.Equal(t, "K05.1", parsed["icd_code"])
}

func TestParseModelResponse_Unrecoverable(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{{{{", "[1, 2, 3]"} {
		parsed, ok := parseModelResponse(raw)
		assert.False(t, ok, "input %q", raw)
		assert.Nil(t, parsed, "input %q", raw)
	}
}

func TestRepairTruncated(t *testing.T) {
	got := repairTruncated("```json\n{\"a\": [1, 2,\n```")
	assert.JSONEq(t, `{"a": [1, 2]}`, got)
}
