package forecast

import (
	"context"
	"fmt"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/pkg/util"
)

// BaselineForecaster is the always-available fallback: the arithmetic
// mean of the target's own horizon-matched outcomes inside a bounded
// lookback window, under the same strict before-as-of rule.
type BaselineForecaster struct {
	outcomes domrepo.OutcomeStore
	lookback int
}

func NewBaselineForecaster(outcomes domrepo.OutcomeStore, lookback int) *BaselineForecaster {
	if lookback <= 0 {
		lookback = 250
	}
	return &BaselineForecaster{outcomes: outcomes, lookback: lookback}
}

func (b *BaselineForecaster) Forecast(ctx context.Context, targetID string, horizon domrepo.Horizon, asOf time.Time) (*Estimate, error) {
	if err := util.EnsureUTC("as_of", asOf); err != nil {
		return nil, err
	}
	history, err := b.outcomes.History(ctx, targetID, asOf, horizon, b.lookback)
	if err != nil {
		return nil, fmt.Errorf("baseline history: %w", err)
	}
	if len(history) == 0 {
		return nil, ErrNoHistory
	}

	var sum float64
	var up int
	for _, o := range history {
		if !o.AsOf.Before(asOf) {
			return nil, fmt.Errorf("%w: outcome for %s at %s, as_of %s",
				ErrCausalityViolation, o.TargetID, o.AsOf, asOf)
		}
		sum += o.RealizedDelta
		if o.RealizedDelta > 0 {
			up++
		}
	}

	n := len(history)
	probUp := float64(up) / float64(n)
	direction := models.DirectionDown
	if probUp >= 0.5 {
		direction = models.DirectionUp
	}

	// Uniform weights: the baseline has no similarity signal, so the
	// calibrator's dispersion penalty should be neutral.
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	return &Estimate{
		ExpectedValue: sum / float64(n),
		ProbUp:        probUp,
		Direction:     direction,
		SampleSize:    n,
		Weights:       weights,
	}, nil
}
