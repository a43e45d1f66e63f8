package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"EventCast/internal/domain/models"
	"EventCast/pkg/config"
)

func annConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Vector.Backend = "ann"
	cfg.Vector.ANNBaseURL = baseURL
	cfg.Vector.ANNTimeout = time.Second
	cfg.Vector.OverFetch = 4
	cfg.Vector.MaxCandidate = 100
	return cfg
}

func TestANNQueryPostFiltersCutoff(t *testing.T) {
	before := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req annSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Limit != 8 { // k=2, over-fetch 4
			t.Errorf("limit %d, want 8", req.Limit)
		}
		// Remote returns hits on both sides of the cutoff, unsorted.
		resp := annSearchResponse{}
		resp.Results = []struct {
			ID       string    `json:"id"`
			Distance float64   `json:"distance"`
			TS       time.Time `json:"ts"`
		}{
			{ID: "future", Distance: 0.01, TS: before.Add(time.Hour)},
			{ID: "at-cutoff", Distance: 0.02, TS: before},
			{ID: "far", Distance: 0.9, TS: before.Add(-48 * time.Hour)},
			{ID: "near", Distance: 0.1, TS: before.Add(-24 * time.Hour)},
			{ID: "mid", Distance: 0.5, TS: before.Add(-72 * time.Hour)},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	idx := NewANNIndex(annConfig(srv.URL))
	hits, err := idx.QueryKNearest(context.Background(), []float64{1, 0}, 2, before, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].EventID != "near" || hits[1].EventID != "mid" {
		t.Fatalf("wrong ordering after filter: %+v", hits)
	}
	for _, h := range hits {
		if !h.EventTimestamp.Before(before) {
			t.Fatalf("hit at or after cutoff leaked: %+v", h)
		}
	}
}

func TestANNInsertSendsPoint(t *testing.T) {
	var got annPoint
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/points" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := annConfig(srv.URL)
	cfg.Vector.ANNAPIKey = "secret"
	idx := NewANNIndex(cfg)

	ev := &models.Event{
		ID:        "e1",
		Timestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		Embedding: []float64{0.1, 0.2},
		Target:    "t1",
	}
	if err := idx.Insert(context.Background(), ev); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got.ID != "e1" || len(got.Vector) != 2 || got.Target != "t1" {
		t.Fatalf("unexpected point payload: %+v", got)
	}
}

func TestANNInsertRejectsNonUTC(t *testing.T) {
	idx := NewANNIndex(annConfig("http://unused"))
	ev := &models.Event{
		ID:        "e1",
		Timestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)),
		Embedding: []float64{0.1},
	}
	if err := idx.Insert(context.Background(), ev); err == nil {
		t.Fatalf("expected error for non-UTC timestamp")
	}
}
