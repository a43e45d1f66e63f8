package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	applogger "EventCast/pkg/logger"
	"EventCast/pkg/util"
)

// Estimate is the output of one forecasting path before calibration.
type Estimate struct {
	ExpectedValue float64
	ProbUp        float64
	Direction     models.Direction
	SampleSize    int
	Weights       []float64
	Context       models.EventContext
}

// NeighborAggregator turns an anchor vector into a similarity-weighted
// estimate over causally-valid historical neighbors.
type NeighborAggregator struct {
	index    domrepo.VectorIndex
	outcomes domrepo.OutcomeStore
	alpha    float64
	epsilon  float64
	l        *applogger.Logger
}

func NewNeighborAggregator(index domrepo.VectorIndex, outcomes domrepo.OutcomeStore, alpha, epsilon float64) *NeighborAggregator {
	if alpha <= 0 {
		alpha = 4.0
	}
	if epsilon <= 0 {
		epsilon = 1e-6
	}
	return &NeighborAggregator{index: index, outcomes: outcomes, alpha: alpha, epsilon: epsilon}
}

// SetLogger injects a structured logger.
func (a *NeighborAggregator) SetLogger(l *applogger.Logger) { a.l = l }

// Aggregate retrieves up to k neighbors strictly before asOf, joins each
// to the target's outcome at (neighbor timestamp, horizon), and produces
// the weighted estimate. Neighbors without a matched outcome are dropped
// and do not count toward sample size.
func (a *NeighborAggregator) Aggregate(ctx context.Context, anchor []float64, targetID string, horizon domrepo.Horizon, asOf time.Time, k int, target string) (*Estimate, error) {
	if err := util.EnsureUTC("as_of", asOf); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	neighbors, err := a.index.QueryKNearest(ctx, anchor, k, asOf, target)
	if err != nil {
		return nil, fmt.Errorf("neighbor retrieval: %w", err)
	}

	var (
		weightSum    float64
		weightedSum  float64
		upWeightSum  float64
		distanceSum  float64
		matched      int
		weights      []float64
	)
	for _, n := range neighbors {
		// The index contract already guarantees this. A hit at or after
		// as_of here is a bug in a backend, so refuse to aggregate.
		if !n.EventTimestamp.Before(asOf) {
			return nil, fmt.Errorf("%w: event %s at %s, as_of %s",
				ErrCausalityViolation, n.EventID, n.EventTimestamp, asOf)
		}

		o, err := a.outcomes.GetAt(ctx, targetID, n.EventTimestamp, horizon)
		if err != nil {
			return nil, fmt.Errorf("outcome join: %w", err)
		}
		if o == nil {
			continue
		}

		// Clamp to the epsilon floor so an identical embedding cannot
		// blow up to an infinite-weight degenerate average.
		d := n.Distance
		if d < a.epsilon {
			d = a.epsilon
		}
		w := math.Exp(-a.alpha * d)

		matched++
		weights = append(weights, w)
		weightSum += w
		weightedSum += w * o.RealizedDelta
		distanceSum += n.Distance
		if o.RealizedDelta > 0 {
			upWeightSum += w
		}
	}

	if matched == 0 || weightSum == 0 {
		return nil, ErrNoNeighbors
	}

	probUp := upWeightSum / weightSum
	direction := models.DirectionDown
	if probUp >= 0.5 {
		direction = models.DirectionUp
	}

	est := &Estimate{
		ExpectedValue: weightedSum / weightSum,
		ProbUp:        probUp,
		Direction:     direction,
		SampleSize:    matched,
		Weights:       weights,
		Context: models.EventContext{
			NeighborCount:   len(neighbors),
			MatchedOutcomes: matched,
			MeanDistance:    distanceSum / float64(len(neighbors)),
			WeightSum:       weightSum,
		},
	}
	if a.l != nil {
		a.l.Debug("neighbor aggregate",
			applogger.String("target_id", targetID),
			applogger.String("horizon", string(horizon)),
			applogger.Int("neighbors", len(neighbors)),
			applogger.Int("matched", matched),
			applogger.Float64("prob_up", probUp),
		)
	}
	return est, nil
}
