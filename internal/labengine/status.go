package labengine

import "fmt"

// Status is the classification assigned to a single result value.
type Status int

const (
	StatusUnknown Status = iota
	StatusNormal
	StatusBorderlineLow
	StatusBorderlineHigh
	StatusLow
	StatusHigh
	StatusCriticalLow
	StatusCriticalHigh
	// StatusAbnormal is only produced for unmatched results that carry a
	// vendor flag other than "normal".
	StatusAbnormal
	StatusUnmatched
	StatusNonNumeric
)

var statusNames = [...]string{
	StatusUnknown:        "unknown",
	StatusNormal:         "normal",
	StatusBorderlineLow:  "borderline_low",
	StatusBorderlineHigh: "borderline_high",
	StatusLow:            "low",
	StatusHigh:           "high",
	StatusCriticalLow:    "critical_low",
	StatusCriticalHigh:   "critical_high",
	StatusAbnormal:       "abnormal",
	StatusUnmatched:      "unmatched",
	StatusNonNumeric:     "non_numeric",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// IsCritical reports whether the status crossed a critical threshold.
func (s Status) IsCritical() bool {
	return s == StatusCriticalLow || s == StatusCriticalHigh
}

// NeedsReview reports whether the result could not be interpreted against a
// guideline and has to be looked at by a person.
func (s Status) NeedsReview() bool {
	switch s {
	case StatusUnknown, StatusUnmatched, StatusNonNumeric:
		return true
	}
	return false
}

// Severity ranks how urgently a result needs attention. The ordering of the
// constants is significant: SeverityNormal < SeverityModerate < SeverityHigh
// < SeverityCritical. SeverityUnknown sits outside the ranking.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityNormal
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{
	SeverityUnknown:  "unknown",
	SeverityNormal:   "normal",
	SeverityModerate: "moderate",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(severityNames) {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(severityNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if name == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

// Abnormal reports whether the severity puts a result in the abnormal bucket.
func (s Severity) Abnormal() bool {
	return s == SeverityModerate || s == SeverityHigh
}

// severityFor maps a guideline-derived status to its severity tier.
func severityFor(s Status) Severity {
	switch s {
	case StatusNormal:
		return SeverityNormal
	case StatusBorderlineLow, StatusBorderlineHigh, StatusAbnormal:
		return SeverityModerate
	case StatusLow, StatusHigh:
		return SeverityHigh
	case StatusCriticalLow, StatusCriticalHigh:
		return SeverityCritical
	case StatusUnknown, StatusUnmatched, StatusNonNumeric:
		return SeverityUnknown
	}
	return SeverityUnknown
}
