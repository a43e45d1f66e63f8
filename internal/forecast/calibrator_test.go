package forecast

import (
	"testing"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/pkg/config"
)

func testCalibrator() *Calibrator {
	cfg := &config.Config{}
	cfg.Calibration.Scale = 1.0
	cfg.Calibration.HalfSample = 10
	cfg.Calibration.HorizonNorm = map[string]float64{"1d": 1.0, "30d": 0.7}
	cfg.Calibration.LowSampleSize = 8
	cfg.Calibration.LowConfidence = 0.4
	cfg.Calibration.HighSampleSize = 20
	cfg.Calibration.HighConfidence = 0.6
	return NewCalibrator(cfg)
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestConfidenceMonotoneInSampleSize(t *testing.T) {
	c := testCalibrator()
	prev := -1.0
	for _, n := range []int{1, 2, 5, 10, 20, 50, 100} {
		conf := c.Confidence(n, domrepo.H1d, uniformWeights(n))
		if conf < prev {
			t.Fatalf("confidence decreased at n=%d: %v < %v", n, conf, prev)
		}
		prev = conf
	}
}

func TestConfidenceBounds(t *testing.T) {
	c := testCalibrator()
	if got := c.Confidence(0, domrepo.H1d, nil); got != 0 {
		t.Fatalf("zero sample confidence %v, want 0", got)
	}
	for _, n := range []int{1, 10, 1000} {
		conf := c.Confidence(n, domrepo.H1d, uniformWeights(n))
		if conf < 0 || conf > 1 {
			t.Fatalf("confidence out of bounds at n=%d: %v", n, conf)
		}
	}
}

func TestConfidenceHorizonNorm(t *testing.T) {
	c := testCalibrator()
	short := c.Confidence(20, domrepo.H1d, uniformWeights(20))
	long := c.Confidence(20, domrepo.H30d, uniformWeights(20))
	if long >= short {
		t.Fatalf("long horizon should score lower: %v >= %v", long, short)
	}
}

func TestConfidenceDispersionPenalty(t *testing.T) {
	c := testCalibrator()
	uniform := c.Confidence(4, domrepo.H1d, []float64{1, 1, 1, 1})
	skewed := c.Confidence(4, domrepo.H1d, []float64{1, 0.001, 0.001, 0.001})
	if skewed >= uniform {
		t.Fatalf("dominant weight should be penalized: %v >= %v", skewed, uniform)
	}
}

func TestTierThresholds(t *testing.T) {
	c := testCalibrator()
	cases := []struct {
		n    int
		conf float64
		want models.ConfidenceTier
	}{
		{5, 0.9, models.TierLow},   // n below low cutoff
		{10, 0.3, models.TierLow},  // confidence below low cutoff
		{10, 0.5, models.TierMedium},
		{25, 0.55, models.TierMedium}, // confidence not high enough
		{25, 0.65, models.TierHigh},
	}
	for _, tc := range cases {
		if got := c.Tier(tc.n, tc.conf); got != tc.want {
			t.Fatalf("Tier(%d, %v) = %v, want %v", tc.n, tc.conf, got, tc.want)
		}
	}
}
