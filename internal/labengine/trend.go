package labengine

import (
	"math"
	"sort"
	"time"
)

// Direction is the movement between the first and last value of a series.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

// TrendThresholdPercent is the change beyond which a series is no longer
// stable.
const TrendThresholdPercent = 5.0

// Trend summarizes one test measured more than once.
type Trend struct {
	TestName      string    `json:"test_name"`
	Direction     Direction `json:"direction"`
	PercentChange float64   `json:"percent_change"`
	FirstValue    float64   `json:"first_value"`
	LastValue     float64   `json:"last_value"`
	DataPoints    int       `json:"data_points"`
	Period        string    `json:"period"`
}

const periodLayout = "2006-01-02"

// AnalyzeTrend orders group by order date and compares the first and last
// numeric values. It returns false when fewer than two values are numeric or
// the first value is zero, since a percentage change is undefined then.
func AnalyzeTrend(testName string, group []ClassifiedResult) (Trend, bool) {
	points := make([]*ClassifiedResult, 0, len(group))
	for i := range group {
		if group[i].Value != nil {
			points = append(points, &group[i])
		}
	}
	if len(points) < 2 {
		return Trend{}, false
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].orderTime().Before(points[j].orderTime())
	})

	first, last := points[0], points[len(points)-1]
	if *first.Value == 0 {
		return Trend{}, false
	}
	change := (*last.Value - *first.Value) / *first.Value * 100

	dir := DirectionStable
	switch {
	case change > TrendThresholdPercent:
		dir = DirectionRising
	case change < -TrendThresholdPercent:
		dir = DirectionFalling
	}

	return Trend{
		TestName:      testName,
		Direction:     dir,
		PercentChange: math.Round(change*10) / 10,
		FirstValue:    *first.Value,
		LastValue:     *last.Value,
		DataPoints:    len(points),
		Period:        period(first.OrderDate, last.OrderDate),
	}, true
}

func period(from, to *time.Time) string {
	if from == nil || to == nil {
		return ""
	}
	return from.Format(periodLayout) + " → " + to.Format(periodLayout)
}

// AnalyzeTrends groups results by test name, in order of first appearance,
// and returns the trend of every group that has one.
func AnalyzeTrends(results []ClassifiedResult) []Trend {
	var order []string
	groups := make(map[string][]ClassifiedResult)
	for _, r := range results {
		k := r.groupKey()
		if k == "" {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	trends := make([]Trend, 0, len(order))
	for _, k := range order {
		if t, ok := AnalyzeTrend(k, groups[k]); ok {
			trends = append(trends, t)
		}
	}
	return trends
}
