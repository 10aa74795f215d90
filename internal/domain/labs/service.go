package labs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/labengine/internal/labengine"
	"github.com/ehr/labengine/pkg/pagination"
)

// ErrNoDatabase is returned by patient lookups when no record store is configured.
var ErrNoDatabase = errors.New("lab order store not configured")

// Recorder receives interpretation outcomes. *metrics.Registry satisfies it.
type Recorder interface {
	RecordResult(status, severity string)
	RecordTrend(direction string)
	RecordSkipped(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordResult(string, string) {}
func (nopRecorder) RecordTrend(string)          {}
func (nopRecorder) RecordSkipped(int)           {}

type Service struct {
	engine  *labengine.Engine
	orders  LabOrderRepository
	metrics Recorder
	logger  zerolog.Logger
}

// NewService builds the lab service. orders may be nil when the server runs
// without a database; metrics may be nil.
func NewService(engine *labengine.Engine, orders LabOrderRepository, metrics Recorder, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{engine: engine, orders: orders, metrics: metrics, logger: logger}
}

func (s *Service) Guidelines(p pagination.Params) ([]GuidelineSummary, int) {
	all := s.engine.Table().Guidelines()
	start, end := p.Bounds(len(all))
	out := make([]GuidelineSummary, 0, end-start)
	for _, g := range all[start:end] {
		out = append(out, summarize(g))
	}
	return out, len(all)
}

func (s *Service) Guideline(key string) (GuidelineDetail, bool) {
	g, ok := s.engine.Table().Guideline(key)
	if !ok {
		return GuidelineDetail{}, false
	}
	return GuidelineDetail{Guideline: g, NormalRange: g.NormalRange()}, true
}

func (s *Service) Resolve(name string) ResolveResponse {
	key, ok := s.engine.ResolveTestKey(name)
	return ResolveResponse{Name: name, Key: key, Matched: ok}
}

func (s *Service) Interpret(testName, value string) labengine.SpecificTestResult {
	res := s.engine.InterpretSpecificTest(testName, value)
	s.metrics.RecordResult(res.Status.String(), res.Severity.String())
	return res
}

func (s *Service) Panel(rec labengine.RawLabRecord) ([]labengine.ClassifiedResult, error) {
	results, err := s.engine.InterpretLabPanel(rec)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		s.metrics.RecordResult(r.Status.String(), r.Severity.String())
	}
	return results, nil
}

func (s *Service) Analyze(records []labengine.RawLabRecord) labengine.PatientAnalysis {
	analysis := s.engine.AnalyzePatientLabs(records)
	s.record(analysis)
	return analysis
}

func (s *Service) AnalyzePatient(ctx context.Context, patientID uuid.UUID) (labengine.PatientAnalysis, error) {
	if s.orders == nil {
		return labengine.PatientAnalysis{}, ErrNoDatabase
	}
	records, err := s.orders.ListLabOrders(ctx, patientID)
	if err != nil {
		return labengine.PatientAnalysis{}, fmt.Errorf("fetch lab orders for %s: %w", patientID, err)
	}
	s.logger.Debug().
		Str("patient_id", patientID.String()).
		Int("records", len(records)).
		Msg("analyzing lab history")
	return s.Analyze(records), nil
}

func (s *Service) record(a labengine.PatientAnalysis) {
	for _, r := range a.Results {
		s.metrics.RecordResult(r.Status.String(), r.Severity.String())
	}
	for _, t := range a.Trends {
		s.metrics.RecordTrend(string(t.Direction))
	}
	s.metrics.RecordSkipped(len(a.Skipped))
	for _, sk := range a.Skipped {
		s.logger.Warn().
			Str("order_id", sk.OrderID).
			Str("reason", sk.Reason).
			Msg("lab record skipped")
	}
}
