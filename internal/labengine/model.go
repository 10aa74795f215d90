package labengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ClassifiedResult is one interpreted lab value.
type ClassifiedResult struct {
	RawTestName string     `json:"raw_test_name,omitempty"`
	TestKey     string     `json:"test_key,omitempty"`
	TestName    string     `json:"test_name,omitempty"`
	Value       *float64   `json:"value"`
	RawValue    string     `json:"raw_value"`
	Unit        string     `json:"unit"`
	Status      Status     `json:"status"`
	Severity    Severity   `json:"severity"`
	Message     string     `json:"message"`
	NormalRange string     `json:"normal_range"`
	FollowUp    []string   `json:"follow_up"`
	OrderID     string     `json:"order_id,omitempty"`
	OrderDate   *time.Time `json:"order_date,omitempty"`
}

// groupKey is the label results are grouped under for trend detection.
func (r *ClassifiedResult) groupKey() string {
	if r.TestName != "" {
		return r.TestName
	}
	return r.RawTestName
}

func (r *ClassifiedResult) orderTime() time.Time {
	if r.OrderDate == nil {
		return time.Time{}
	}
	return *r.OrderDate
}

// RawLabRecord is a lab order row as stored by the EHR.
type RawLabRecord struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	TestName       string          `json:"test_name"`
	ResultValue    RawValue        `json:"result_value"`
	ResultUnits    string          `json:"result_units"`
	ReferenceRange string          `json:"reference_range"`
	OrderPayload   json.RawMessage `json:"order_payload,omitempty"`
}

// RawValue is a result value as text. It decodes from a JSON string or
// number; null decodes to "".
type RawValue string

func (v *RawValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*v = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("result value must be a string or number: %w", err)
	}
	*v = RawValue(n.String())
	return nil
}

// numericPrefix matches the longest leading decimal literal, so "7.2 mEq/L"
// parses as 7.2 while "<0.5" and "positive" do not parse.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseNumeric extracts a finite number from the start of s.
func ParseNumeric(s string) (float64, bool) {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
