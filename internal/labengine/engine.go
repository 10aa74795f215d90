// Package labengine interprets laboratory results against clinical reference
// ranges, ranks them by severity and detects trends across repeated
// measurements.
//
// The engine is a pure function of its inputs: it performs no I/O, keeps no
// state between calls and is safe for concurrent use once constructed. The
// only shared data is the immutable Table passed to New.
package labengine

import (
	"fmt"
	"strings"
)

// Engine evaluates lab results against a guideline table.
type Engine struct {
	table *Table
}

// New returns an Engine backed by table. It panics if table is nil because
// that is a wiring bug, not a data problem.
func New(table *Table) *Engine {
	if table == nil {
		panic("labengine: nil guideline table")
	}
	return &Engine{table: table}
}

// Table returns the guideline table the engine was built with.
func (e *Engine) Table() *Table { return e.table }

// ResolveTestKey maps a free-text test name to a canonical guideline key.
//
// Resolution is first match wins: exact key, exact alias, then a substring
// match in either direction against aliases and finally keys, both in
// declared order. The substring pass is deliberately loose and depends on
// table order; adding an alias that overlaps an existing one can change
// which key wins.
func (e *Engine) ResolveTestKey(testName string) (string, bool) {
	lower := normalizeName(testName)
	if lower == "" {
		return "", false
	}
	if _, ok := e.table.byKey[lower]; ok {
		return lower, true
	}
	if key, ok := e.table.aliasIndex[lower]; ok {
		return key, true
	}
	for _, a := range e.table.aliases {
		if strings.Contains(lower, a.Alias) || strings.Contains(a.Alias, lower) {
			return a.Key, true
		}
	}
	for i := range e.table.guidelines {
		key := e.table.guidelines[i].Key
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			return key, true
		}
	}
	return "", false
}

// InterpretValue classifies value against the guideline for testKey.
// It never fails: unparseable values yield StatusNonNumeric and unknown keys
// yield StatusUnknown.
func (e *Engine) InterpretValue(testKey, value string) ClassifiedResult {
	r := ClassifiedResult{
		TestKey:     testKey,
		RawValue:    value,
		NormalRange: notAvailable,
		FollowUp:    []string{},
	}
	g := e.table.lookup(testKey)
	if g != nil {
		r.TestName = g.Name
		r.Unit = g.Unit
		r.NormalRange = g.NormalRange()
	}

	num, ok := ParseNumeric(value)
	if !ok {
		r.Status = StatusNonNumeric
		r.Severity = SeverityUnknown
		r.Message = fmt.Sprintf("Value %q cannot be interpreted numerically", value)
		return r
	}
	r.Value = &num

	if g == nil {
		r.Status = StatusUnknown
		r.Severity = SeverityUnknown
		r.Message = "No reference range available for this test"
		return r
	}

	r.Status = classify(g, num)
	r.Severity = severityFor(r.Status)
	r.Message = g.message(r.Status)
	r.FollowUp = cloneStrings(g.FollowUp)
	return r
}

// classify applies the critical thresholds first, then the normal range,
// softening to borderline when the value falls inside the borderline range.
// Boundaries are inclusive on the side that defines them.
func classify(g *Guideline, v float64) Status {
	if c := g.Critical; c != nil {
		if c.Low != nil && v <= *c.Low {
			return StatusCriticalLow
		}
		if c.High != nil && v >= *c.High {
			return StatusCriticalHigh
		}
	}
	switch {
	case g.Normal.Below(v):
		if g.Borderline != nil && g.Borderline.AtLeastMin(v) {
			return StatusBorderlineLow
		}
		return StatusLow
	case g.Normal.Above(v):
		if g.Borderline != nil && g.Borderline.AtMostMax(v) {
			return StatusBorderlineHigh
		}
		return StatusHigh
	}
	return StatusNormal
}

// SpecificTestResult is the outcome of an ad hoc single-value lookup.
type SpecificTestResult struct {
	Success bool `json:"success"`
	ClassifiedResult
}

// suggestedKeys is how many canonical keys a failed lookup lists.
const suggestedKeys = 10

// InterpretSpecificTest resolves testName and classifies value in one step.
func (e *Engine) InterpretSpecificTest(testName, value string) SpecificTestResult {
	key, ok := e.ResolveTestKey(testName)
	if !ok {
		keys := e.table.Keys()
		if len(keys) > suggestedKeys {
			keys = keys[:suggestedKeys]
		}
		return SpecificTestResult{
			Success: false,
			ClassifiedResult: ClassifiedResult{
				RawTestName: testName,
				RawValue:    value,
				Status:      StatusUnmatched,
				Severity:    SeverityUnknown,
				Message: fmt.Sprintf("No reference guidelines found for %q. Available tests include: %s...",
					testName, strings.Join(keys, ", ")),
				NormalRange: notAvailable,
				FollowUp:    []string{},
			},
		}
	}

	r := e.InterpretValue(key, value)
	r.RawTestName = testName
	return SpecificTestResult{Success: true, ClassifiedResult: r}
}
