package labengine

import (
	"strconv"
	"strings"
)

// Range is a closed numeric interval. A nil bound is unbounded on that side.
type Range struct {
	Min *float64 `yaml:"min" json:"min,omitempty"`
	Max *float64 `yaml:"max" json:"max,omitempty"`
}

// Below reports whether v is strictly below the lower bound.
func (r Range) Below(v float64) bool { return r.Min != nil && v < *r.Min }

// Above reports whether v is strictly above the upper bound.
func (r Range) Above(v float64) bool { return r.Max != nil && v > *r.Max }

// AtLeastMin reports whether v is at or above the lower bound.
func (r Range) AtLeastMin(v float64) bool { return r.Min == nil || v >= *r.Min }

// AtMostMax reports whether v is at or below the upper bound.
func (r Range) AtMostMax(v float64) bool { return r.Max == nil || v <= *r.Max }

// Display renders the interval as "{min}–{max} {unit}".
func (r Range) Display(unit string) string {
	var s string
	switch {
	case r.Min != nil && r.Max != nil:
		s = formatNumber(*r.Min) + "–" + formatNumber(*r.Max)
	case r.Min != nil:
		s = "≥" + formatNumber(*r.Min)
	case r.Max != nil:
		s = "≤" + formatNumber(*r.Max)
	default:
		s = "any"
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

func (r Range) clone() Range {
	return Range{Min: cloneFloat(r.Min), Max: cloneFloat(r.Max)}
}

// Critical holds the thresholds that override every other classification.
type Critical struct {
	Low  *float64 `yaml:"low" json:"low,omitempty"`
	High *float64 `yaml:"high" json:"high,omitempty"`
}

// Interpretation is the narrative text per status. Both borderline
// statuses share Borderline.
type Interpretation struct {
	Low          string `yaml:"low" json:"low,omitempty"`
	Normal       string `yaml:"normal" json:"normal"`
	Borderline   string `yaml:"borderline" json:"borderline,omitempty"`
	High         string `yaml:"high" json:"high,omitempty"`
	CriticalLow  string `yaml:"critical_low" json:"critical_low,omitempty"`
	CriticalHigh string `yaml:"critical_high" json:"critical_high,omitempty"`
}

// For returns the configured text for s, or "" when none is configured.
func (i Interpretation) For(s Status) string {
	switch s {
	case StatusLow:
		return i.Low
	case StatusNormal:
		return i.Normal
	case StatusBorderlineLow, StatusBorderlineHigh:
		return i.Borderline
	case StatusHigh:
		return i.High
	case StatusCriticalLow:
		return i.CriticalLow
	case StatusCriticalHigh:
		return i.CriticalHigh
	}
	return ""
}

// Guideline is the reference data for one canonical test.
type Guideline struct {
	Key            string         `yaml:"key" json:"key"`
	Name           string         `yaml:"name" json:"name"`
	Unit           string         `yaml:"unit" json:"unit"`
	Normal         *Range         `yaml:"normal" json:"normal"`
	Borderline     *Range         `yaml:"borderline" json:"borderline,omitempty"`
	Critical       *Critical      `yaml:"critical" json:"critical,omitempty"`
	Interpretation Interpretation `yaml:"interpretation" json:"interpretation"`
	FollowUp       []string       `yaml:"follow_up" json:"follow_up"`
}

// NormalRange renders the normal interval for display.
func (g *Guideline) NormalRange() string {
	if g.Normal == nil {
		return notAvailable
	}
	return g.Normal.Display(g.Unit)
}

// message returns the narrative for s, falling back to a generated default.
func (g *Guideline) message(s Status) string {
	if msg := g.Interpretation.For(s); msg != "" {
		return msg
	}
	switch s {
	case StatusNormal:
		return "Within normal limits"
	case StatusCriticalLow:
		return "Critically low " + g.Name
	case StatusCriticalHigh:
		return "Critically high " + g.Name
	case StatusBorderlineLow:
		return "Borderline low " + g.Name
	case StatusBorderlineHigh:
		return "Borderline high " + g.Name
	case StatusLow:
		return "Low " + g.Name
	case StatusHigh:
		return "Elevated " + g.Name
	}
	return g.Name
}

func (g Guideline) clone() Guideline {
	c := g
	if g.Normal != nil {
		n := g.Normal.clone()
		c.Normal = &n
	}
	if g.Borderline != nil {
		b := g.Borderline.clone()
		c.Borderline = &b
	}
	if g.Critical != nil {
		c.Critical = &Critical{Low: cloneFloat(g.Critical.Low), High: cloneFloat(g.Critical.High)}
	}
	c.FollowUp = cloneStrings(g.FollowUp)
	return c
}

// Alias maps a lowercase free-text label to a canonical guideline key.
type Alias struct {
	Alias string `yaml:"alias" json:"alias"`
	Key   string `yaml:"key" json:"key"`
}

const notAvailable = "N/A"

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
