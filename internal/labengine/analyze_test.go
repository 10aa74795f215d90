package labengine

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func e2eRecords() []RawLabRecord {
	day := func(m int) time.Time { return time.Date(2024, time.Month(m), 15, 9, 0, 0, 0, time.UTC) }
	return []RawLabRecord{
		{ID: "k1", CreatedAt: day(6), TestName: "Potassium", ResultValue: "7.2", ResultUnits: "mEq/L"},
		{ID: "a3", CreatedAt: day(9), TestName: "HbA1c", ResultValue: "6.5"},
		{ID: "a1", CreatedAt: day(1), TestName: "Hemoglobin A1c", ResultValue: "5.4"},
		{ID: "a2", CreatedAt: day(5), OrderPayload: json.RawMessage(`{"results":[{"test":"A1C","value":"5.9","unit":"%"}]}`)},
	}
}

func TestAnalyzePatientLabs_EndToEnd(t *testing.T) {
	a := newTestEngine(t).AnalyzePatientLabs(e2eRecords())

	if a.TotalResults != 4 || len(a.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", a.TotalResults)
	}
	if len(a.Criticals) != 1 || a.Criticals[0].TestKey != "potassium" || a.Criticals[0].Status != StatusCriticalHigh {
		t.Errorf("unexpected criticals %+v", a.Criticals)
	}
	if len(a.Abnormals) != 2 {
		t.Errorf("expected 2 abnormals, got %d", len(a.Abnormals))
	}

	if len(a.Trends) != 1 {
		t.Fatalf("expected 1 trend, got %+v", a.Trends)
	}
	tr := a.Trends[0]
	if tr.TestName != "Hemoglobin A1c" || tr.Direction != DirectionRising {
		t.Errorf("unexpected trend %+v", tr)
	}
	if tr.FirstValue != 5.4 || tr.LastValue != 6.5 || tr.PercentChange != 20.4 || tr.DataPoints != 3 {
		t.Errorf("unexpected trend values %+v", tr)
	}
	if tr.Period != "2024-01-15 → 2024-09-15" {
		t.Errorf("unexpected period %q", tr.Period)
	}

	levels := make([]SummaryLevel, len(a.SummaryLines))
	for i, l := range a.SummaryLines {
		levels[i] = l.Level
	}
	want := []SummaryLevel{LevelCritical, LevelWarning, LevelOK, LevelTrend}
	if strings.Join(toStrings(levels), ",") != strings.Join(toStrings(want), ",") {
		t.Errorf("summary levels %v, want %v", levels, want)
	}
	if !strings.Contains(a.Summary, "1 CRITICAL result(s)") || !strings.Contains(a.Summary, "1 trend(s) detected") {
		t.Errorf("unexpected summary %q", a.Summary)
	}
	if len(a.Skipped) != 0 {
		t.Errorf("unexpected skipped %+v", a.Skipped)
	}
}

func toStrings(levels []SummaryLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

func TestAnalyzePatientLabs_StampsOrder(t *testing.T) {
	a := newTestEngine(t).AnalyzePatientLabs(e2eRecords())
	for _, r := range a.Results {
		if r.OrderID == "" || r.OrderDate == nil {
			t.Errorf("result not stamped: %+v", r)
		}
	}
	if a.Results[0].OrderID != "k1" || !a.Results[0].OrderDate.Equal(e2eRecords()[0].CreatedAt) {
		t.Errorf("unexpected stamp on first result %+v", a.Results[0])
	}
}

func TestAnalyzePatientLabs_Empty(t *testing.T) {
	e := newTestEngine(t)
	for _, records := range [][]RawLabRecord{nil, {}, {{ID: "x"}}} {
		a := e.AnalyzePatientLabs(records)
		if a.TotalResults != 0 || a.Summary != NoResultsSummary {
			t.Errorf("unexpected report %+v", a)
		}
		if a.Results == nil || a.Abnormals == nil || a.Criticals == nil || a.Trends == nil || a.SummaryLines == nil {
			t.Error("expected non-nil empty slices")
		}
	}
}

func TestAnalyzePatientLabs_MalformedSibling(t *testing.T) {
	records := []RawLabRecord{
		{ID: "bad", TestName: "Sodium", ResultValue: "140", OrderPayload: json.RawMessage(`"{\"results\": ["`)},
		{ID: "good", TestName: "Sodium", ResultValue: "128"},
	}
	a := newTestEngine(t).AnalyzePatientLabs(records)
	if a.TotalResults != 1 || a.Results[0].OrderID != "good" {
		t.Fatalf("expected only the good record, got %+v", a.Results)
	}
	if len(a.Skipped) != 1 || a.Skipped[0].OrderID != "bad" {
		t.Errorf("expected bad record to be skipped, got %+v", a.Skipped)
	}
}

func TestAnalyzePatientLabs_ReviewLine(t *testing.T) {
	records := []RawLabRecord{
		{ID: "1", TestName: "Sodium", ResultValue: "140"},
		{ID: "2", TestName: "Zinc level", ResultValue: "90"},
		{ID: "3", TestName: "Glucose", ResultValue: "hemolyzed"},
	}
	a := newTestEngine(t).AnalyzePatientLabs(records)
	if len(a.Abnormals) != 0 || len(a.Criticals) != 0 {
		t.Errorf("review results must not be bucketed: %+v %+v", a.Abnormals, a.Criticals)
	}
	if len(a.SummaryLines) != 2 {
		t.Fatalf("expected 2 summary lines, got %+v", a.SummaryLines)
	}
	if a.SummaryLines[0].Level != LevelOK || a.SummaryLines[0].Count != 1 {
		t.Errorf("unexpected ok line %+v", a.SummaryLines[0])
	}
	if a.SummaryLines[1].Level != LevelReview || a.SummaryLines[1].Count != 2 {
		t.Errorf("unexpected review line %+v", a.SummaryLines[1])
	}
}

func TestAnalyzePatientLabs_StableTrendNotCounted(t *testing.T) {
	records := []RawLabRecord{
		{ID: "1", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TestName: "Sodium", ResultValue: "140"},
		{ID: "2", CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), TestName: "Sodium", ResultValue: "141"},
	}
	a := newTestEngine(t).AnalyzePatientLabs(records)
	if len(a.Trends) != 1 || a.Trends[0].Direction != DirectionStable {
		t.Fatalf("expected one stable trend, got %+v", a.Trends)
	}
	if strings.Contains(a.Summary, "trend") {
		t.Errorf("stable trends should not be summarized: %q", a.Summary)
	}
}
