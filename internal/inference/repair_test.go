package inference_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunv-ux/getglow/internal/inference"
)

func TestParseReport_ValidDocument(t *testing.T) {
	raw := []byte(`{"overallScore":82,"skinHealth":78,"eyeClarity":80,` +
		`"circulation":75,"facialSymmetry":88,"recommendations":["Sleep more"]}`)

	report, err := inference.ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, 82, report.OverallScore)
	assert.Equal(t, 78, report.SkinScore)
	assert.Equal(t, 80, report.EyeScore)
	assert.Equal(t, 75, report.CirculationScore)
	assert.Equal(t, 88, report.SymmetryScore)
	assert.JSONEq(t, `["Sleep more"]`, string(report.Recommendations))
}

func TestParseReport_ValidDocumentUntouched(t *testing.T) {
	// A document that already parses must come back byte-identical in Raw.
	raw := []byte(`{"overallScore":50}`)

	report, err := inference.ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(report.Raw))
}

func TestParseReport_MarkdownFences(t *testing.T) {
	raw := []byte("```json\n{\"overallScore\": 64}\n```")

	report, err := inference.ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, 64, report.OverallScore)
}

func TestParseReport_MissingFieldsDefaultToZero(t *testing.T) {
	report, err := inference.ParseReport([]byte(`{"overallScore": 70}`))
	require.NoError(t, err)
	assert.Equal(t, 70, report.OverallScore)
	assert.Equal(t, 0, report.SkinScore)
	assert.Equal(t, 0, report.EyeScore)
}

func TestParseReport_TruncatedAfterValue(t *testing.T) {
	// Truncation right after a complete value is recoverable by closing the
	// open braces.
	raw := []byte(`{"overallScore": 80, "skinHealth": 70`)

	report, err := inference.ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, 80, report.OverallScore)
	assert.Equal(t, 70, report.SkinScore)
}

func TestParseReport_TruncatedNestedArray(t *testing.T) {
	raw := []byte(`{"overallScore": 61, "recommendations": ["Drink water"`)

	report, err := inference.ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, 61, report.OverallScore)
	assert.JSONEq(t, `["Drink water"]`, string(report.Recommendations))
}

func TestParseReport_TruncatedAfterKey(t *testing.T) {
	// A dangling key with no value cannot be closed into valid JSON.
	raw := []byte(`{"overallScore": 80, "skinHealth":`)

	_, err := inference.ParseReport(raw)
	assert.ErrorIs(t, err, inference.ErrMalformedResponse)
}

func TestParseReport_NotJSONAtAll(t *testing.T) {
	_, err := inference.ParseReport([]byte("I could not analyze this image."))
	assert.ErrorIs(t, err, inference.ErrMalformedResponse)
}

func TestRepairJSON_ClosesNestedStructures(t *testing.T) {
	repaired, err := inference.RepairJSON([]byte(`{"a": [1, 2, {"b": 3`))
	require.NoError(t, err)
	assert.True(t, json.Valid(repaired), "repaired output should be valid JSON: %s", repaired)
	assert.Equal(t, `{"a": [1, 2, {"b": 3}]}`, string(repaired))
}

func TestRepairJSON_TruncatedInsideString(t *testing.T) {
	_, err := inference.RepairJSON([]byte(`{"note": "unterminated`))
	assert.ErrorIs(t, err, inference.ErrMalformedResponse)
}

func TestRepairJSON_MismatchedCloser(t *testing.T) {
	_, err := inference.RepairJSON([]byte(`{"a": [1, 2}`))
	assert.ErrorIs(t, err, inference.ErrMalformedResponse)
}

func TestRepairJSON_StripsControlChars(t *testing.T) {
	raw := []byte("{\"a\": 1,\x01\x02 \"b\": 2}")

	repaired, err := inference.RepairJSON(raw)
	require.NoError(t, err)
	assert.True(t, json.Valid(repaired))
}

func TestRepairJSON_BracesInsideStringsIgnored(t *testing.T) {
	raw := []byte(`{"note": "contains { and ] and \" chars", "n": 1`)

	repaired, err := inference.RepairJSON(raw)
	require.NoError(t, err)
	assert.True(t, json.Valid(repaired), "repaired: %s", repaired)
}
