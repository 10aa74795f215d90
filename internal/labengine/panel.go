package labengine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload is returned when an order payload is neither absent,
// a JSON object, nor a JSON string encoding an object.
var ErrMalformedPayload = errors.New("malformed order payload")

// decodePayloadResults returns the raw entries of the payload's "results"
// array. Absent payloads, non-object JSON and a missing or non-array
// "results" all yield no entries without error.
func decodePayloadResults(raw json.RawMessage) ([]json.RawMessage, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		b = bytes.TrimSpace([]byte(s))
		if len(b) == 0 {
			return nil, nil
		}
		if b[0] == '"' {
			// a string nested in a string carries no results
			if !json.Valid(b) {
				return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
			}
			return nil, nil
		}
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	if b[0] != '{' {
		return nil, nil
	}

	var doc struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	res := bytes.TrimSpace(doc.Results)
	if len(res) == 0 || res[0] != '[' {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(res, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return entries, nil
}

// subResult is one entry of a payload "results" array after field
// normalization.
type subResult struct {
	label          string
	value          string
	unit           string
	referenceRange string
	flag           string
}

// parseSubResult normalizes an entry. ok is false when the entry is not an
// object or lacks a label or a value.
func parseSubResult(raw json.RawMessage) (subResult, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return subResult{}, false
	}
	sr := subResult{
		label:          firstString(fields, "test", "name", "testName"),
		value:          firstValue(fields, "value", "result"),
		unit:           firstString(fields, "unit"),
		referenceRange: firstString(fields, "referenceRange", "reference_range"),
		flag:           firstString(fields, "flag"),
	}
	if sr.label == "" || sr.value == "" {
		return subResult{}, false
	}
	return sr, true
}

// firstString returns the first non-empty string among names.
func firstString(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// firstValue is firstString that also accepts numbers, keeping their literal
// text so 0 counts as present.
func firstValue(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			return n.String()
		}
	}
	return ""
}

// InterpretLabPanel classifies every value carried by a lab order: the flat
// test_name/result_value pair first, then each entry of the payload
// "results" array. A malformed payload fails the whole record.
func (e *Engine) InterpretLabPanel(rec RawLabRecord) ([]ClassifiedResult, error) {
	entries, err := decodePayloadResults(rec.OrderPayload)
	if err != nil {
		return nil, err
	}

	results := make([]ClassifiedResult, 0, 1+len(entries))
	if rec.TestName != "" && rec.ResultValue != "" {
		results = append(results, e.interpretFlat(rec))
	}
	for _, raw := range entries {
		sr, ok := parseSubResult(raw)
		if !ok {
			continue
		}
		results = append(results, e.interpretSub(sr))
	}
	return results, nil
}

func (e *Engine) interpretFlat(rec RawLabRecord) ClassifiedResult {
	value := string(rec.ResultValue)
	if key, ok := e.ResolveTestKey(rec.TestName); ok {
		r := e.InterpretValue(key, value)
		r.RawTestName = rec.TestName
		return r
	}

	r := unmatchedResult(rec.TestName, value, rec.ResultUnits, rec.ReferenceRange)
	r.Status = StatusUnmatched
	r.Severity = SeverityUnknown
	r.Message = fmt.Sprintf("No guideline match for %q", rec.TestName)
	return r
}

func (e *Engine) interpretSub(sr subResult) ClassifiedResult {
	if key, ok := e.ResolveTestKey(sr.label); ok {
		r := e.InterpretValue(key, sr.value)
		r.RawTestName = sr.label
		return r
	}

	r := unmatchedResult(sr.label, sr.value, sr.unit, sr.referenceRange)
	switch flag := strings.TrimSpace(sr.flag); {
	case flag == "":
		r.Status = StatusUnmatched
		r.Severity = SeverityUnknown
		r.Message = strings.TrimSpace("Result: " + sr.value + " " + sr.unit)
	case strings.EqualFold(flag, "normal"):
		r.Status = StatusNormal
		r.Severity = SeverityNormal
		r.Message = "Flag: " + flag
	default:
		r.Status = StatusAbnormal
		r.Severity = severityFor(StatusAbnormal)
		r.Message = "Flag: " + flag
	}
	return r
}

// unmatchedResult carries the source fields verbatim. Value is set when the
// raw value parses so the result can still join a trend.
func unmatchedResult(name, value, unit, referenceRange string) ClassifiedResult {
	r := ClassifiedResult{
		RawTestName: name,
		RawValue:    value,
		Unit:        unit,
		NormalRange: referenceRange,
		FollowUp:    []string{},
	}
	if r.NormalRange == "" {
		r.NormalRange = notAvailable
	}
	if v, ok := ParseNumeric(value); ok {
		r.Value = &v
	}
	return r
}
