package labs

import (
	"github.com/ehr/labengine/internal/labengine"
)

type InterpretRequest struct {
	TestName string             `json:"test_name" validate:"required,max=200"`
	Value    labengine.RawValue `json:"value" validate:"required,max=100"`
}

type AnalyzeRequest struct {
	Records []labengine.RawLabRecord `json:"records" validate:"required,max=1000"`
}

type ResolveResponse struct {
	Name    string `json:"name"`
	Key     string `json:"key,omitempty"`
	Matched bool   `json:"matched"`
}

// GuidelineSummary is the list view of a reference guideline.
type GuidelineSummary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normal_range"`
}

// GuidelineDetail is the full guideline plus its rendered normal range.
type GuidelineDetail struct {
	labengine.Guideline
	NormalRange string `json:"normal_range"`
}

func summarize(g labengine.Guideline) GuidelineSummary {
	return GuidelineSummary{Key: g.Key, Name: g.Name, Unit: g.Unit, NormalRange: g.NormalRange()}
}
