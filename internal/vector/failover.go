package vector

import (
	"context"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	applogger "EventCast/pkg/logger"
)

// FailoverIndex serves queries from the primary backend with a bounded
// timeout and a single retry, then degrades to the fallback. Degradation
// is recovered locally: it is logged and counted, never surfaced to the
// caller as an error, and never an excuse to return empty results.
type FailoverIndex struct {
	primary  domrepo.VectorIndex
	fallback domrepo.VectorIndex
	timeout  time.Duration
	l        *applogger.Logger
	metrics  domrepo.Metrics
}

func NewFailoverIndex(primary, fallback domrepo.VectorIndex, timeout time.Duration, l *applogger.Logger, m domrepo.Metrics) *FailoverIndex {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &FailoverIndex{primary: primary, fallback: fallback, timeout: timeout, l: l, metrics: m}
}

func (f *FailoverIndex) Name() string { return f.primary.Name() }

// Insert writes to the primary backend. The fallback reads from the
// events table populated by the store layer, so it needs no extra write.
func (f *FailoverIndex) Insert(ctx context.Context, ev *models.Event) error {
	return f.primary.Insert(ctx, ev)
}

func (f *FailoverIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		qctx, cancel := context.WithTimeout(ctx, f.timeout)
		hits, err := f.primary.QueryKNearest(qctx, vec, k, before, target)
		cancel()
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if f.l != nil {
		f.l.Warn("vector index degraded, falling back",
			applogger.String("from", f.primary.Name()),
			applogger.String("to", f.fallback.Name()),
			applogger.Error(lastErr),
		)
	}
	if f.metrics != nil {
		f.metrics.RecordIndexFallback(f.primary.Name(), f.fallback.Name())
	}
	return f.fallback.QueryKNearest(ctx, vec, k, before, target)
}

var _ domrepo.VectorIndex = (*FailoverIndex)(nil)
