package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
)

type fakeIndex struct {
	neighbors []models.Neighbor
	err       error
}

func (f *fakeIndex) Insert(ctx context.Context, ev *models.Event) error { return nil }

func (f *fakeIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.neighbors) > k {
		return f.neighbors[:k], nil
	}
	return f.neighbors, nil
}

func (f *fakeIndex) Name() string { return "fake" }

type memOutcomes struct {
	rows map[string]models.Outcome
}

func newMemOutcomes() *memOutcomes { return &memOutcomes{rows: make(map[string]models.Outcome)} }

func outcomeKey(targetID string, asOf time.Time, horizon string) string {
	return fmt.Sprintf("%s|%d|%s", targetID, asOf.UnixNano(), horizon)
}

func (m *memOutcomes) Upsert(ctx context.Context, o *models.Outcome) error {
	m.rows[outcomeKey(o.TargetID, o.AsOf, o.Horizon)] = *o
	return nil
}

func (m *memOutcomes) GetAt(ctx context.Context, targetID string, asOf time.Time, horizon domrepo.Horizon) (*models.Outcome, error) {
	o, ok := m.rows[outcomeKey(targetID, asOf, string(horizon))]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memOutcomes) History(ctx context.Context, targetID string, before time.Time, horizon domrepo.Horizon, limit int) ([]models.Outcome, error) {
	var out []models.Outcome
	for _, o := range m.rows {
		if o.TargetID == targetID && o.Horizon == string(horizon) && o.AsOf.Before(before) {
			out = append(out, o)
		}
	}
	// newest first
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

func (m *memOutcomes) KnownTarget(ctx context.Context, targetID string) (bool, error) {
	for _, o := range m.rows {
		if o.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOutcomes) Health(ctx context.Context) error { return nil }

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestAggregateWeightsByDistance(t *testing.T) {
	near := asOf.Add(-48 * time.Hour)
	far := asOf.Add(-96 * time.Hour)

	idx := &fakeIndex{neighbors: []models.Neighbor{
		{EventID: "e1", Distance: 0.1, EventTimestamp: near},
		{EventID: "e2", Distance: 1.0, EventTimestamp: far},
	}}
	out := newMemOutcomes()
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: near, Horizon: "7d", RealizedDelta: 1})
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: far, Horizon: "7d", RealizedDelta: -1})

	agg := NewNeighborAggregator(idx, out, 4.0, 1e-6)
	est, err := agg.Aggregate(context.Background(), []float64{1, 0}, "t1", domrepo.H7d, asOf, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.SampleSize != 2 {
		t.Fatalf("expected sample size 2, got %d", est.SampleSize)
	}
	// The near positive neighbor dominates the far negative one.
	if est.ExpectedValue <= 0 {
		t.Fatalf("expected positive estimate, got %v", est.ExpectedValue)
	}
	if est.Direction != models.DirectionUp {
		t.Fatalf("expected direction up, got %v", est.Direction)
	}
	w1 := math.Exp(-4.0 * 0.1)
	w2 := math.Exp(-4.0 * 1.0)
	wantProb := w1 / (w1 + w2)
	if math.Abs(est.ProbUp-wantProb) > 1e-9 {
		t.Fatalf("prob_up %v, want %v", est.ProbUp, wantProb)
	}
}

func TestAggregateUniformWeights(t *testing.T) {
	idx := &fakeIndex{}
	out := newMemOutcomes()
	// 30 equidistant neighbors, 20 with positive outcomes.
	for i := 0; i < 30; i++ {
		ts := asOf.Add(-time.Duration(i+1) * 24 * time.Hour)
		idx.neighbors = append(idx.neighbors, models.Neighbor{
			EventID: fmt.Sprintf("e%d", i), Distance: 0.5, EventTimestamp: ts,
		})
		delta := 0.01
		if i >= 20 {
			delta = -0.01
		}
		out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: ts, Horizon: "7d", RealizedDelta: delta})
	}

	agg := NewNeighborAggregator(idx, out, 4.0, 1e-6)
	est, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 30, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.SampleSize != 30 {
		t.Fatalf("sample size %d, want 30", est.SampleSize)
	}
	if math.Abs(est.ProbUp-20.0/30.0) > 1e-9 {
		t.Fatalf("prob_up %v, want 0.667", est.ProbUp)
	}
	if est.Direction != models.DirectionUp {
		t.Fatalf("expected up, got %v", est.Direction)
	}
}

func TestAggregateClampsZeroDistance(t *testing.T) {
	ts := asOf.Add(-24 * time.Hour)
	idx := &fakeIndex{neighbors: []models.Neighbor{
		{EventID: "e1", Distance: 0, EventTimestamp: ts},
	}}
	out := newMemOutcomes()
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: ts, Horizon: "7d", RealizedDelta: 0.5})

	agg := NewNeighborAggregator(idx, out, 4.0, 1e-6)
	est, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := math.Exp(-4.0 * 1e-6)
	if math.Abs(est.Weights[0]-want) > 1e-12 {
		t.Fatalf("weight %v, want epsilon-clamped %v", est.Weights[0], want)
	}
	if math.IsInf(est.ExpectedValue, 0) || math.IsNaN(est.ExpectedValue) {
		t.Fatalf("estimate not finite: %v", est.ExpectedValue)
	}
}

func TestAggregateDropsUnmatchedNeighbors(t *testing.T) {
	t1 := asOf.Add(-24 * time.Hour)
	t2 := asOf.Add(-48 * time.Hour)
	t3 := asOf.Add(-72 * time.Hour)
	idx := &fakeIndex{neighbors: []models.Neighbor{
		{EventID: "e1", Distance: 0.2, EventTimestamp: t1},
		{EventID: "e2", Distance: 0.3, EventTimestamp: t2},
		{EventID: "e3", Distance: 0.4, EventTimestamp: t3},
	}}
	out := newMemOutcomes()
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: t1, Horizon: "7d", RealizedDelta: 0.1})
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: t3, Horizon: "7d", RealizedDelta: 0.2})

	agg := NewNeighborAggregator(idx, out, 4.0, 1e-6)
	est, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.SampleSize != 2 {
		t.Fatalf("expected unmatched neighbor dropped, sample size %d", est.SampleSize)
	}
	if est.Context.NeighborCount != 3 || est.Context.MatchedOutcomes != 2 {
		t.Fatalf("unexpected context: %+v", est.Context)
	}
}

func TestAggregateNoNeighbors(t *testing.T) {
	agg := NewNeighborAggregator(&fakeIndex{}, newMemOutcomes(), 4.0, 1e-6)
	_, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 10, "")
	if !errors.Is(err, ErrNoNeighbors) {
		t.Fatalf("expected ErrNoNeighbors, got %v", err)
	}
}

func TestAggregateRejectsCausalityViolation(t *testing.T) {
	idx := &fakeIndex{neighbors: []models.Neighbor{
		{EventID: "bad", Distance: 0.1, EventTimestamp: asOf},
	}}
	agg := NewNeighborAggregator(idx, newMemOutcomes(), 4.0, 1e-6)
	_, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 10, "")
	if !errors.Is(err, ErrCausalityViolation) {
		t.Fatalf("expected ErrCausalityViolation, got %v", err)
	}
}

func TestAggregateTieGoesUp(t *testing.T) {
	t1 := asOf.Add(-24 * time.Hour)
	t2 := asOf.Add(-48 * time.Hour)
	idx := &fakeIndex{neighbors: []models.Neighbor{
		{EventID: "e1", Distance: 0.5, EventTimestamp: t1},
		{EventID: "e2", Distance: 0.5, EventTimestamp: t2},
	}}
	out := newMemOutcomes()
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: t1, Horizon: "7d", RealizedDelta: 0.1})
	out.Upsert(context.Background(), &models.Outcome{TargetID: "t1", AsOf: t2, Horizon: "7d", RealizedDelta: -0.1})

	agg := NewNeighborAggregator(idx, out, 4.0, 1e-6)
	est, err := agg.Aggregate(context.Background(), []float64{1}, "t1", domrepo.H7d, asOf, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.ProbUp != 0.5 {
		t.Fatalf("expected prob_up 0.5, got %v", est.ProbUp)
	}
	if est.Direction != models.DirectionUp {
		t.Fatalf("expected tie to resolve up, got %v", est.Direction)
	}
}
