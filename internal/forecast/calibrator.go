package forecast

import (
	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/pkg/config"
)

// Calibrator converts raw sample size and weight dispersion into a
// bounded confidence score. Reporting p_up directly overstates
// low-sample forecasts, so confidence is the product of a saturating
// sample-size factor, a per-horizon normalization, and a dispersion
// penalty, clamped to [0,1]. The single Scale knob tunes the whole
// curve; tier thresholds are policy carried in config and validated by
// the backtest harness, not assumed.
type Calibrator struct {
	scale       float64
	halfSample  float64
	horizonNorm map[string]float64

	lowSampleSize  int
	lowConfidence  float64
	highSampleSize int
	highConfidence float64
}

func NewCalibrator(cfg *config.Config) *Calibrator {
	return &Calibrator{
		scale:          cfg.Calibration.Scale,
		halfSample:     cfg.Calibration.HalfSample,
		horizonNorm:    cfg.Calibration.HorizonNorm,
		lowSampleSize:  cfg.Calibration.LowSampleSize,
		lowConfidence:  cfg.Calibration.LowConfidence,
		highSampleSize: cfg.Calibration.HighSampleSize,
		highConfidence: cfg.Calibration.HighConfidence,
	}
}

// Confidence scores an estimate. Monotonically non-decreasing in
// sampleSize when dispersion is held fixed.
func (c *Calibrator) Confidence(sampleSize int, horizon domrepo.Horizon, weights []float64) float64 {
	if sampleSize <= 0 {
		return 0
	}
	n := float64(sampleSize)
	sizeFactor := n / (n + c.halfSample)

	norm := 1.0
	if v, ok := c.horizonNorm[string(horizon)]; ok && v > 0 {
		norm = v
	}
	if norm > 1 {
		norm = 1
	}

	conf := c.scale * sizeFactor * norm * dispersionPenalty(weights)
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// Tier derives the coarse low/medium/high classification for consumers.
func (c *Calibrator) Tier(sampleSize int, confidence float64) models.ConfidenceTier {
	if sampleSize < c.lowSampleSize || confidence < c.lowConfidence {
		return models.TierLow
	}
	if sampleSize >= c.highSampleSize && confidence > c.highConfidence {
		return models.TierHigh
	}
	return models.TierMedium
}

// dispersionPenalty is the effective-sample-size ratio
// (Σw)² / (n·Σw²), in (0,1]. Uniform weights score 1; a single
// dominant weight collapses toward 1/n.
func dispersionPenalty(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, w := range weights {
		sum += w
		sumSq += w * w
	}
	if sumSq == 0 {
		return 0
	}
	return (sum * sum) / (float64(len(weights)) * sumSq)
}
