package repository

import (
	"context"
	"time"

	"EventCast/internal/domain/models"
)

// EventStore holds embedded textual events. Read-only to the forecast
// path; writes come from the ingestion edge only.
type EventStore interface {
	// Upsert inserts an event, idempotent on ID.
	Upsert(ctx context.Context, ev *models.Event) error
	// Get returns the event with the given ID, or ErrEventNotFound.
	Get(ctx context.Context, id string) (*models.Event, error)
	// LatestBefore returns the most recent event strictly before the
	// cutoff, restricted to the target's tag when non-empty, or
	// (nil, nil) when none exists.
	LatestBefore(ctx context.Context, target string, before time.Time) (*models.Event, error)
	Health(ctx context.Context) error
}

// OutcomeStore holds realized metric deltas keyed by
// (target_id, as_of, horizon). Upserts are idempotent with
// last-write-wins semantics. Every temporal query applies the strict
// before-cutoff rule at the store boundary so caller discipline is
// never the line of defense.
type OutcomeStore interface {
	Upsert(ctx context.Context, o *models.Outcome) error
	// GetAt returns the outcome realized for the target at exactly asOf
	// for the horizon, or (nil, nil) when none exists.
	GetAt(ctx context.Context, targetID string, asOf time.Time, horizon Horizon) (*models.Outcome, error)
	// History returns up to limit outcomes for the target and horizon
	// with as_of strictly before the cutoff, newest first.
	History(ctx context.Context, targetID string, before time.Time, horizon Horizon, limit int) ([]models.Outcome, error)
	// KnownTarget reports whether the target has any outcome rows at all.
	KnownTarget(ctx context.Context, targetID string) (bool, error)
	Health(ctx context.Context) error
}

// VectorIndex is the nearest-neighbor abstraction. Implementations must
// guarantee every returned neighbor satisfies event_timestamp < before;
// a backend that cannot filter natively must over-fetch and post-filter
// rather than return causally-invalid hits.
type VectorIndex interface {
	Insert(ctx context.Context, ev *models.Event) error
	// QueryKNearest returns up to k neighbors ordered by ascending
	// distance, all strictly before the cutoff. target restricts the
	// search to events tagged with that target when non-empty.
	QueryKNearest(ctx context.Context, vector []float64, k int, before time.Time, target string) ([]models.Neighbor, error)
	// Name identifies the backend for logs and metrics.
	Name() string
}

// Metrics is the recording surface for the forecast path.
type Metrics interface {
	RecordForecast(source, horizon string)
	RecordError(kind string)
	RecordIndexFallback(from, to string)
	RecordSampleSize(n int)
	RecordLatency(op string, seconds float64)
}
