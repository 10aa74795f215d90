package labengine

import (
	"fmt"
	"strings"
)

// SummaryLevel tags a summary line for quick scanning.
type SummaryLevel string

const (
	LevelCritical SummaryLevel = "critical"
	LevelWarning  SummaryLevel = "warning"
	LevelOK       SummaryLevel = "ok"
	LevelTrend    SummaryLevel = "trend"
	LevelReview   SummaryLevel = "review"
)

var levelGlyphs = map[SummaryLevel]string{
	LevelCritical: "🔴",
	LevelWarning:  "🟡",
	LevelOK:       "🟢",
	LevelTrend:    "📈",
	LevelReview:   "⚪",
}

// SummaryLine is one line of the narrative summary.
type SummaryLine struct {
	Level SummaryLevel `json:"level"`
	Count int          `json:"count"`
	Text  string       `json:"text"`
}

func (l SummaryLine) String() string {
	return levelGlyphs[l.Level] + " " + l.Text
}

// SkippedRecord identifies an order whose payload could not be read.
type SkippedRecord struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// PatientAnalysis is the report for one patient's lab history. Abnormals and
// Criticals are subsets of Results.
type PatientAnalysis struct {
	Summary      string             `json:"summary"`
	SummaryLines []SummaryLine      `json:"summary_lines"`
	TotalResults int                `json:"total_results"`
	Results      []ClassifiedResult `json:"results"`
	Abnormals    []ClassifiedResult `json:"abnormals"`
	Criticals    []ClassifiedResult `json:"criticals"`
	Trends       []Trend            `json:"trends"`
	Skipped      []SkippedRecord    `json:"skipped"`
}

// NoResultsSummary is the summary of a report with nothing in it.
const NoResultsSummary = "No lab results found."

// AnalyzePatientLabs interprets every record, buckets the results by
// severity, detects trends and composes the summary. A record with a
// malformed payload contributes no results and is listed in Skipped.
func (e *Engine) AnalyzePatientLabs(records []RawLabRecord) PatientAnalysis {
	a := PatientAnalysis{
		SummaryLines: []SummaryLine{},
		Results:      []ClassifiedResult{},
		Abnormals:    []ClassifiedResult{},
		Criticals:    []ClassifiedResult{},
		Trends:       []Trend{},
		Skipped:      []SkippedRecord{},
	}

	for _, rec := range records {
		results, err := e.InterpretLabPanel(rec)
		if err != nil {
			a.Skipped = append(a.Skipped, SkippedRecord{OrderID: rec.ID, Reason: err.Error()})
			continue
		}
		created := rec.CreatedAt
		for i := range results {
			results[i].OrderID = rec.ID
			if !created.IsZero() {
				results[i].OrderDate = &created
			}
		}
		a.Results = append(a.Results, results...)
	}

	a.TotalResults = len(a.Results)
	if a.TotalResults == 0 {
		a.Summary = NoResultsSummary
		return a
	}

	var normal, review int
	for _, r := range a.Results {
		switch {
		case r.Severity == SeverityCritical:
			a.Criticals = append(a.Criticals, r)
		case r.Severity.Abnormal():
			a.Abnormals = append(a.Abnormals, r)
		case r.Severity == SeverityNormal:
			normal++
		default:
			review++
		}
	}

	a.Trends = AnalyzeTrends(a.Results)
	moving := 0
	for _, t := range a.Trends {
		if t.Direction != DirectionStable {
			moving++
		}
	}

	add := func(level SummaryLevel, n int, format string) {
		if n > 0 {
			a.SummaryLines = append(a.SummaryLines, SummaryLine{Level: level, Count: n, Text: fmt.Sprintf(format, n)})
		}
	}
	add(LevelCritical, len(a.Criticals), "%d CRITICAL result(s) requiring immediate attention")
	add(LevelWarning, len(a.Abnormals), "%d abnormal result(s) flagged")
	add(LevelOK, normal, "%d result(s) within normal limits")
	add(LevelTrend, moving, "%d trend(s) detected")
	add(LevelReview, review, "%d result(s) need manual review")

	lines := make([]string, len(a.SummaryLines))
	for i, l := range a.SummaryLines {
		lines[i] = l.String()
	}
	a.Summary = strings.Join(lines, "\n")
	return a
}
