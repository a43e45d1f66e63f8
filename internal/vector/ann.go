package vector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/pkg/config"
	xhttp "EventCast/pkg/http"
	"EventCast/pkg/util"
)

// ANNIndex is the approximate nearest-neighbor backend: an external
// vector-search service reached over HTTP. The service does not
// guarantee timestamp filtering, so queries over-fetch and post-filter
// against the cutoff rather than trust the remote side with causality.
type ANNIndex struct {
	baseURL   string
	apiKey    string
	client    *xhttp.Client
	overFetch int
	maxCand   int
}

func NewANNIndex(cfg *config.Config) *ANNIndex {
	timeout := cfg.Vector.ANNTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ANNIndex{
		baseURL:   cfg.Vector.ANNBaseURL,
		apiKey:    cfg.Vector.ANNAPIKey,
		client:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		overFetch: cfg.Vector.OverFetch,
		maxCand:   cfg.Vector.MaxCandidate,
	}
}

func (x *ANNIndex) Name() string { return "ann" }

type annPoint struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Target string    `json:"target,omitempty"`
	Vector []float64 `json:"vector"`
	Digest string    `json:"digest,omitempty"`
}

type annSearchRequest struct {
	Vector []float64 `json:"vector"`
	Limit  int       `json:"limit"`
	Target string    `json:"target,omitempty"`
}

type annSearchResponse struct {
	Results []struct {
		ID       string    `json:"id"`
		Distance float64   `json:"distance"`
		TS       time.Time `json:"ts"`
	} `json:"results"`
}

func (x *ANNIndex) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if x.apiKey != "" {
		h["Authorization"] = "Bearer " + x.apiKey
	}
	return h
}

func (x *ANNIndex) Insert(ctx context.Context, ev *models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if err := util.EnsureUTC("event.timestamp", ev.Timestamp); err != nil {
		return err
	}
	err := x.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPut,
		URL:     x.baseURL + "/points",
		Headers: x.headers(),
		Body: annPoint{
			ID:     ev.ID,
			TS:     ev.Timestamp,
			Target: ev.Target,
			Vector: ev.Embedding,
			Digest: ev.TextDigest,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("ann insert: %w", err)
	}
	return nil
}

func (x *ANNIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if err := util.EnsureUTC("before", before); err != nil {
		return nil, err
	}

	limit := k * x.overFetch
	if limit > x.maxCand {
		limit = x.maxCand
	}
	if limit < k {
		limit = k
	}

	var resp annSearchResponse
	err := x.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     x.baseURL + "/search",
		Headers: x.headers(),
		Body:    annSearchRequest{Vector: vec, Limit: limit, Target: target},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ann search: %w", err)
	}

	out := make([]models.Neighbor, 0, k)
	for _, r := range resp.Results {
		ts := r.TS.UTC()
		if !ts.Before(before) {
			continue
		}
		out = append(out, models.Neighbor{
			EventID:        r.ID,
			Distance:       r.Distance,
			EventTimestamp: ts,
		})
	}
	// The service orders by distance, but re-sort after filtering so the
	// contract holds even against a sloppy remote.
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

var _ domrepo.VectorIndex = (*ANNIndex)(nil)
