package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"EventCast/internal/domain/models"
)

type scriptedIndex struct {
	name    string
	hits    []models.Neighbor
	err     error
	queries int
}

func (s *scriptedIndex) Insert(ctx context.Context, ev *models.Event) error { return s.err }

func (s *scriptedIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	s.queries++
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *scriptedIndex) Name() string { return s.name }

type countingMetrics struct {
	fallbacks int
}

func (m *countingMetrics) RecordForecast(source, horizon string) {}
func (m *countingMetrics) RecordError(kind string)               {}
func (m *countingMetrics) RecordIndexFallback(from, to string)   { m.fallbacks++ }
func (m *countingMetrics) RecordSampleSize(n int)                {}
func (m *countingMetrics) RecordLatency(op string, s float64)    {}

var cutoff = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestFailoverUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &scriptedIndex{name: "ann", hits: []models.Neighbor{{EventID: "e1"}}}
	fallback := &scriptedIndex{name: "exact"}
	m := &countingMetrics{}

	f := NewFailoverIndex(primary, fallback, time.Second, nil, m)
	hits, err := f.QueryKNearest(context.Background(), []float64{1}, 5, cutoff, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].EventID != "e1" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if fallback.queries != 0 {
		t.Fatalf("fallback queried without need")
	}
	if m.fallbacks != 0 {
		t.Fatalf("fallback recorded without degradation")
	}
}

func TestFailoverRetriesThenDegrades(t *testing.T) {
	primary := &scriptedIndex{name: "ann", err: errors.New("connection refused")}
	fallback := &scriptedIndex{name: "exact", hits: []models.Neighbor{{EventID: "e2"}}}
	m := &countingMetrics{}

	f := NewFailoverIndex(primary, fallback, time.Second, nil, m)
	hits, err := f.QueryKNearest(context.Background(), []float64{1}, 5, cutoff, "")
	if err != nil {
		t.Fatalf("degradation must not surface an error: %v", err)
	}
	if len(hits) != 1 || hits[0].EventID != "e2" {
		t.Fatalf("expected fallback hits, got %+v", hits)
	}
	if primary.queries != 2 {
		t.Fatalf("expected one retry against primary, got %d attempts", primary.queries)
	}
	if m.fallbacks != 1 {
		t.Fatalf("degradation not recorded: %d", m.fallbacks)
	}
}

func TestFailoverRespectsCallerCancellation(t *testing.T) {
	primary := &scriptedIndex{name: "ann", err: errors.New("slow")}
	fallback := &scriptedIndex{name: "exact"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFailoverIndex(primary, fallback, time.Second, nil, nil)
	if _, err := f.QueryKNearest(ctx, []float64{1}, 5, cutoff, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fallback.queries != 0 {
		t.Fatalf("must not fall back on caller cancellation")
	}
}
