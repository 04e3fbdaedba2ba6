package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/varunv-ux/getglow/pkg/models"
)

// ParseReport is the single funnel from raw upstream output (batch body or
// concatenated stream chunks) to a WellnessReport. Valid JSON parses as-is;
// otherwise one best-effort repair pass runs before giving up with
// ErrMalformedResponse. Score fields absent from the document stay zero.
func ParseReport(raw []byte) (*models.WellnessReport, error) {
	doc := extractDocument(raw)

	if report, err := decodeReport(doc); err == nil {
		return report, nil
	}

	repaired, err := RepairJSON(doc)
	if err != nil {
		return nil, err
	}
	report, err := decodeReport(repaired)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return report, nil
}

func decodeReport(doc []byte) (*models.WellnessReport, error) {
	var report models.WellnessReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return nil, err
	}
	report.Raw = doc
	return &report, nil
}

// RepairJSON is a heuristic recovery for truncated model output, not a
// correctness mechanism: it strips stray control characters, then closes
// whatever brackets and braces were left open at the point of truncation.
// Output truncated mid-string is not recoverable.
func RepairJSON(data []byte) ([]byte, error) {
	cleaned := stripControlChars(data)

	var stack []byte
	inString := false
	escaped := false
	for _, c := range cleaned {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, fmt.Errorf("%w: mismatched %q", ErrMalformedResponse, c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return nil, fmt.Errorf("%w: truncated inside string literal", ErrMalformedResponse)
	}

	// Dangling "key": with no value cannot be closed into valid JSON; the
	// re-parse after appending closers surfaces that case.
	repaired := make([]byte, len(cleaned), len(cleaned)+len(stack))
	copy(repaired, cleaned)
	for i := len(stack) - 1; i >= 0; i-- {
		repaired = append(repaired, stack[i])
	}
	return repaired, nil
}

// extractDocument trims markdown code fences around the JSON document.
// Models wrap JSON in ```json fences often enough that the funnel handles
// it rather than each provider.
func extractDocument(raw []byte) []byte {
	doc := bytes.TrimSpace(raw)
	if bytes.HasPrefix(doc, []byte("```")) {
		if i := bytes.IndexByte(doc, '\n'); i >= 0 {
			doc = doc[i+1:]
		}
	}
	doc = bytes.TrimSuffix(bytes.TrimSpace(doc), []byte("```"))
	return bytes.TrimSpace(doc)
}

func stripControlChars(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, c := range data {
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			continue
		}
		out = append(out, c)
	}
	return out
}
