package forecast

import (
	"math"

	"EventCast/internal/domain/models"
	"EventCast/pkg/config"
)

// RegimeClassifier is a pure, deterministic labeler over a target's own
// recent outcome history. The label is context metadata only: it never
// feeds back into expected value or confidence.
type RegimeClassifier struct {
	window         int
	trendThreshold float64
	volThreshold   float64
}

func NewRegimeClassifier(cfg *config.Config) *RegimeClassifier {
	return &RegimeClassifier{
		window:         cfg.Regime.Window,
		trendThreshold: cfg.Regime.TrendThreshold,
		volThreshold:   cfg.Regime.VolThreshold,
	}
}

// Classify labels recent behavior from outcomes ordered newest first
// (the OutcomeStore history order). With fewer than two points the
// context is not ready and the label defaults to choppy.
func (r *RegimeClassifier) Classify(history []models.Outcome) (models.RegimeLabel, models.PriceContext) {
	n := len(history)
	if n > r.window {
		n = r.window
	}
	if n < 2 {
		return models.RegimeChoppy, models.PriceContext{WindowSize: n}
	}

	var sum, sumSq float64
	for _, o := range history[:n] {
		sum += o.RealizedDelta
		sumSq += o.RealizedDelta * o.RealizedDelta
	}
	mean := sum / float64(n)
	variance := (sumSq - float64(n)*mean*mean) / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	vol := math.Sqrt(variance)

	ctx := models.PriceContext{
		CumulativeReturn: sum,
		Volatility:       vol,
		WindowSize:       n,
		Ready:            true,
	}

	switch {
	case vol > r.volThreshold:
		return models.RegimeHighVol, ctx
	case sum > r.trendThreshold:
		return models.RegimeUptrend, ctx
	case sum < -r.trendThreshold:
		return models.RegimeDowntrend, ctx
	default:
		return models.RegimeChoppy, ctx
	}
}
