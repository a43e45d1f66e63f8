package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/internal/forecast"
	"EventCast/pkg/config"
)

var testAsOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeEvents struct {
	byID map[string]*models.Event
}

func (f *fakeEvents) Upsert(ctx context.Context, ev *models.Event) error {
	f.byID[ev.ID] = ev
	return nil
}

func (f *fakeEvents) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, ok := f.byID[id]
	if !ok {
		return nil, domrepo.ErrEventNotFound
	}
	return ev, nil
}

func (f *fakeEvents) LatestBefore(ctx context.Context, target string, before time.Time) (*models.Event, error) {
	var latest *models.Event
	for _, ev := range f.byID {
		if !ev.Timestamp.Before(before) {
			continue
		}
		if target != "" && ev.Target != "" && ev.Target != target {
			continue
		}
		if latest == nil || ev.Timestamp.After(latest.Timestamp) {
			latest = ev
		}
	}
	return latest, nil
}

func (f *fakeEvents) Health(ctx context.Context) error { return nil }

type fakeOutcomes struct {
	rows map[string]models.Outcome
}

func key(targetID string, asOf time.Time, horizon string) string {
	return fmt.Sprintf("%s|%d|%s", targetID, asOf.UnixNano(), horizon)
}

func (f *fakeOutcomes) Upsert(ctx context.Context, o *models.Outcome) error {
	f.rows[key(o.TargetID, o.AsOf, o.Horizon)] = *o
	return nil
}

func (f *fakeOutcomes) GetAt(ctx context.Context, targetID string, asOf time.Time, horizon domrepo.Horizon) (*models.Outcome, error) {
	o, ok := f.rows[key(targetID, asOf, string(horizon))]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeOutcomes) History(ctx context.Context, targetID string, before time.Time, horizon domrepo.Horizon, limit int) ([]models.Outcome, error) {
	var out []models.Outcome
	for _, o := range f.rows {
		if o.TargetID == targetID && o.Horizon == string(horizon) && o.AsOf.Before(before) {
			out = append(out, o)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].AsOf.After(out[i].AsOf) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOutcomes) KnownTarget(ctx context.Context, targetID string) (bool, error) {
	for _, o := range f.rows {
		if o.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOutcomes) Health(ctx context.Context) error { return nil }

type fakeVectorIndex struct {
	neighbors []models.Neighbor
}

func (f *fakeVectorIndex) Insert(ctx context.Context, ev *models.Event) error { return nil }

func (f *fakeVectorIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	out := make([]models.Neighbor, 0, len(f.neighbors))
	for _, n := range f.neighbors {
		if n.EventTimestamp.Before(before) {
			out = append(out, n)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectorIndex) Name() string { return "fake" }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Forecast.KMax = 200
	cfg.Forecast.MinNeighbors = 3
	cfg.Forecast.BaselineLookback = 250
	cfg.Calibration.Scale = 1.0
	cfg.Calibration.HalfSample = 10
	cfg.Calibration.LowSampleSize = 8
	cfg.Calibration.LowConfidence = 0.4
	cfg.Calibration.HighSampleSize = 20
	cfg.Calibration.HighConfidence = 0.6
	cfg.Regime.Window = 20
	cfg.Regime.TrendThreshold = 0.03
	cfg.Regime.VolThreshold = 0.04
	return cfg
}

// newTestForecaster seeds ndays of daily positive outcomes before testAsOf
// plus nn matching neighbors in the index.
func newTestForecaster(ndays, nn int) (*Forecaster, *fakeEvents, *fakeOutcomes) {
	cfg := testConfig()
	events := &fakeEvents{byID: make(map[string]*models.Event)}
	outcomes := &fakeOutcomes{rows: make(map[string]models.Outcome)}
	idx := &fakeVectorIndex{}

	for i := 1; i <= ndays; i++ {
		ts := testAsOf.Add(-time.Duration(i) * 24 * time.Hour)
		outcomes.Upsert(context.Background(), &models.Outcome{
			TargetID: "t1", AsOf: ts, Horizon: "7d", RealizedDelta: 0.01,
		})
		if i <= nn {
			idx.neighbors = append(idx.neighbors, models.Neighbor{
				EventID:        fmt.Sprintf("e%d", i),
				Distance:       0.1 * float64(i),
				EventTimestamp: ts,
			})
		}
	}
	events.Upsert(context.Background(), &models.Event{
		ID: "anchor", Timestamp: testAsOf.Add(-time.Hour), Embedding: []float64{1, 0}, Target: "t1",
	})

	agg := forecast.NewNeighborAggregator(idx, outcomes, 4.0, 1e-6)
	base := forecast.NewBaselineForecaster(outcomes, cfg.Forecast.BaselineLookback)
	cal := forecast.NewCalibrator(cfg)
	reg := forecast.NewRegimeClassifier(cfg)
	fc := NewForecaster(events, outcomes, agg, base, cal, reg, nil, cfg)
	return fc, events, outcomes
}

func TestForecastEventConditioned(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	res, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "anchor", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != models.SourceEventConditioned {
		t.Fatalf("expected event_conditioned, got %v", res.Source)
	}
	if res.AnchorEventID != "anchor" {
		t.Fatalf("anchor id missing from result")
	}
	if res.SampleSize != 10 {
		t.Fatalf("sample size %d, want 10", res.SampleSize)
	}
	if res.Direction != models.DirectionUp {
		t.Fatalf("expected up, got %v", res.Direction)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of bounds: %v", res.Confidence)
	}
}

func TestForecastBaselineWithoutAnchor(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	res, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != models.SourceBaseline {
		t.Fatalf("expected baseline, got %v", res.Source)
	}
	if res.AnchorEventID != "" {
		t.Fatalf("baseline result must not carry an anchor")
	}
}

func TestForecastFallsBackOnSparseNeighbors(t *testing.T) {
	// One neighbor is below the min-neighbors cutoff of 3.
	fc, _, _ := newTestForecaster(30, 1)
	res, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "anchor", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != models.SourceBaseline {
		t.Fatalf("expected fallback to baseline, got %v", res.Source)
	}
}

func TestForecastUnknownTarget(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	_, err := fc.Forecast(context.Background(), "nobody", domrepo.H7d, testAsOf, "", 50)
	if !errors.Is(err, forecast.ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestForecastUnknownAnchor(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	_, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "missing", 50)
	if !errors.Is(err, domrepo.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestForecastRejectsNonUTC(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	local := time.Date(2025, 6, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	if _, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, local, "", 50); err == nil {
		t.Fatalf("expected error for non-UTC as_of")
	}
}

func TestForecastRejectsOversizedK(t *testing.T) {
	fc, _, _ := newTestForecaster(30, 10)
	if _, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "", 500); err == nil {
		t.Fatalf("expected error for k above maximum")
	}
}

func TestForecastNoLookahead(t *testing.T) {
	// All outcomes live at or after as_of: nothing may be visible.
	cfg := testConfig()
	events := &fakeEvents{byID: make(map[string]*models.Event)}
	outcomes := &fakeOutcomes{rows: make(map[string]models.Outcome)}
	for i := 0; i < 10; i++ {
		outcomes.Upsert(context.Background(), &models.Outcome{
			TargetID: "t1", AsOf: testAsOf.Add(time.Duration(i) * 24 * time.Hour), Horizon: "7d", RealizedDelta: 0.01,
		})
	}
	agg := forecast.NewNeighborAggregator(&fakeVectorIndex{}, outcomes, 4.0, 1e-6)
	base := forecast.NewBaselineForecaster(outcomes, cfg.Forecast.BaselineLookback)
	fc := NewForecaster(events, outcomes, agg, base, forecast.NewCalibrator(cfg), forecast.NewRegimeClassifier(cfg), nil, cfg)

	_, err := fc.Forecast(context.Background(), "t1", domrepo.H7d, testAsOf, "", 50)
	if !errors.Is(err, forecast.ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory when all data is in the future, got %v", err)
	}
}
