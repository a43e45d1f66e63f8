package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/internal/forecast"
	"EventCast/pkg/config"
	applogger "EventCast/pkg/logger"
	"EventCast/pkg/util"
)

// Forecaster is the synchronous, stateless read path: it validates the
// request, runs the event-conditioned path when an anchor is given, and
// degrades to the baseline when retrieval comes up short. Every accepted
// request produces a ForecastResult; only validation errors reject.
type Forecaster struct {
	events     domrepo.EventStore
	outcomes   domrepo.OutcomeStore
	aggregator *forecast.NeighborAggregator
	baseline   *forecast.BaselineForecaster
	calibrator *forecast.Calibrator
	regime     *forecast.RegimeClassifier
	metrics    domrepo.Metrics

	kMax         int
	minNeighbors int
	regimeWindow int

	l *applogger.Logger
}

func NewForecaster(
	events domrepo.EventStore,
	outcomes domrepo.OutcomeStore,
	aggregator *forecast.NeighborAggregator,
	baseline *forecast.BaselineForecaster,
	calibrator *forecast.Calibrator,
	regime *forecast.RegimeClassifier,
	metrics domrepo.Metrics,
	cfg *config.Config,
) *Forecaster {
	return &Forecaster{
		events:       events,
		outcomes:     outcomes,
		aggregator:   aggregator,
		baseline:     baseline,
		calibrator:   calibrator,
		regime:       regime,
		metrics:      metrics,
		kMax:         cfg.Forecast.KMax,
		minNeighbors: cfg.Forecast.MinNeighbors,
		regimeWindow: cfg.Regime.Window,
	}
}

// SetLogger injects a structured logger.
func (f *Forecaster) SetLogger(l *applogger.Logger) { f.l = l }

// Forecast produces a prediction for (targetID, horizon) at asOf,
// conditioned on anchorEventID when non-empty.
func (f *Forecaster) Forecast(ctx context.Context, targetID string, horizon domrepo.Horizon, asOf time.Time, anchorEventID string, k int) (*models.ForecastResult, error) {
	start := time.Now()
	if err := f.validate(ctx, targetID, horizon, asOf, &k); err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("forecast_validation")
		}
		return nil, err
	}

	history, err := f.outcomes.History(ctx, targetID, asOf, horizon, f.regimeWindow)
	if err != nil {
		return nil, fmt.Errorf("regime history: %w", err)
	}
	regimeLabel, _ := f.regime.Classify(history)

	var (
		est    *forecast.Estimate
		source models.ForecastSource
		anchor string
	)

	if anchorEventID != "" {
		ev, err := f.events.Get(ctx, anchorEventID)
		if err != nil {
			if errors.Is(err, domrepo.ErrEventNotFound) {
				return nil, fmt.Errorf("anchor_event_id: %w", err)
			}
			return nil, fmt.Errorf("anchor lookup: %w", err)
		}
		est, err = f.aggregator.Aggregate(ctx, ev.Embedding, targetID, horizon, asOf, k, ev.Target)
		switch {
		case err == nil && est.SampleSize >= f.minNeighbors:
			source = models.SourceEventConditioned
			anchor = anchorEventID
		case err == nil || errors.Is(err, forecast.ErrNoNeighbors):
			// Too sparse to trust; recover locally with the baseline.
			if f.l != nil {
				f.l.Info("falling back to baseline",
					applogger.String("target_id", targetID),
					applogger.String("anchor_event_id", anchorEventID),
				)
			}
			est = nil
		default:
			return nil, err
		}
	}

	if est == nil {
		est, err = f.baseline.Forecast(ctx, targetID, horizon, asOf)
		if err != nil {
			return nil, err
		}
		source = models.SourceBaseline
	}

	confidence := f.calibrator.Confidence(est.SampleSize, horizon, est.Weights)
	res := &models.ForecastResult{
		TargetID:      targetID,
		Horizon:       string(horizon),
		AsOf:          asOf,
		ExpectedValue: est.ExpectedValue,
		Direction:     est.Direction,
		ProbUp:        est.ProbUp,
		Confidence:    confidence,
		Tier:          f.calibrator.Tier(est.SampleSize, confidence),
		SampleSize:    est.SampleSize,
		Regime:        regimeLabel,
		Source:        source,
		AnchorEventID: anchor,
	}

	if f.metrics != nil {
		f.metrics.RecordForecast(string(source), string(horizon))
		f.metrics.RecordSampleSize(est.SampleSize)
		f.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	}
	return res, nil
}

// ClassifyRegime labels the target's recent behavior at asOf.
func (f *Forecaster) ClassifyRegime(ctx context.Context, targetID string, horizon domrepo.Horizon, asOf time.Time, n int) (models.RegimeLabel, models.PriceContext, error) {
	if n <= 0 {
		n = f.regimeWindow
	}
	if err := f.validate(ctx, targetID, horizon, asOf, nil); err != nil {
		return "", models.PriceContext{}, err
	}
	history, err := f.outcomes.History(ctx, targetID, asOf, horizon, n)
	if err != nil {
		return "", models.PriceContext{}, fmt.Errorf("regime history: %w", err)
	}
	label, pctx := f.regime.Classify(history)
	return label, pctx, nil
}

func (f *Forecaster) validate(ctx context.Context, targetID string, horizon domrepo.Horizon, asOf time.Time, k *int) error {
	if targetID == "" {
		return fmt.Errorf("target_id is required")
	}
	if !domrepo.IsValidHorizon(horizon) {
		return fmt.Errorf("horizon %q is not supported", horizon)
	}
	if err := util.EnsureUTC("as_of", asOf); err != nil {
		return err
	}
	if k != nil {
		if *k <= 0 {
			*k = 1
		}
		if *k > f.kMax {
			return fmt.Errorf("k %d exceeds maximum %d", *k, f.kMax)
		}
	}
	known, err := f.outcomes.KnownTarget(ctx, targetID)
	if err != nil {
		return fmt.Errorf("target lookup: %w", err)
	}
	if !known {
		return fmt.Errorf("target_id %q: %w", targetID, forecast.ErrUnknownTarget)
	}
	return nil
}
