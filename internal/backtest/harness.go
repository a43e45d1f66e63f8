package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/internal/forecast"
	"EventCast/internal/usecase"
	applogger "EventCast/pkg/logger"
	"EventCast/pkg/util"
)

// Grid defines the walk-forward replay: targets x horizons x timestamps.
type Grid struct {
	Targets  []string
	Horizons []domrepo.Horizon
	From     time.Time
	To       time.Time
	Step     time.Duration
	// K is the neighbor budget passed to the forecast path.
	K int
	// Anchored conditions each point on the most recent event before
	// its as-of time; unanchored replay measures the baseline path.
	Anchored bool
}

// Sample is one scored forecast in the replay.
type Sample struct {
	TargetID   string                 `json:"target_id"`
	Horizon    string                 `json:"horizon"`
	AsOf       time.Time              `json:"as_of"`
	Predicted  models.Direction       `json:"predicted"`
	Realized   float64                `json:"realized"`
	Hit        bool                   `json:"hit"`
	Confidence float64                `json:"confidence"`
	Tier       models.ConfidenceTier  `json:"tier"`
	Regime     models.RegimeLabel     `json:"regime"`
	Source     models.ForecastSource  `json:"source"`
	SampleSize int                    `json:"sample_size"`
}

// Harness replays historical timestamps through the full forecast path.
// The forecast call sees only data strictly before each as-of; the true
// outcome is fetched afterwards, for scoring only.
type Harness struct {
	forecaster *usecase.Forecaster
	events     domrepo.EventStore
	outcomes   domrepo.OutcomeStore
	l          *applogger.Logger
}

func NewHarness(forecaster *usecase.Forecaster, events domrepo.EventStore, outcomes domrepo.OutcomeStore) *Harness {
	return &Harness{forecaster: forecaster, events: events, outcomes: outcomes}
}

// SetLogger injects a structured logger.
func (h *Harness) SetLogger(l *applogger.Logger) { h.l = l }

// Run walks the grid and returns the aggregated report.
func (h *Harness) Run(ctx context.Context, g Grid) (*Report, error) {
	if err := util.EnsureUTC("grid.from", g.From); err != nil {
		return nil, err
	}
	if err := util.EnsureUTC("grid.to", g.To); err != nil {
		return nil, err
	}
	if g.Step <= 0 {
		return nil, fmt.Errorf("grid step must be positive")
	}
	if len(g.Targets) == 0 || len(g.Horizons) == 0 {
		return nil, fmt.Errorf("grid targets and horizons are required")
	}

	var samples []Sample
	var skipped int
	for asOf := g.From; asOf.Before(g.To); asOf = asOf.Add(g.Step) {
		for _, target := range g.Targets {
			for _, horizon := range g.Horizons {
				s, ok, err := h.replayOne(ctx, target, horizon, asOf, g)
				if err != nil {
					return nil, err
				}
				if !ok {
					skipped++
					continue
				}
				samples = append(samples, s)
			}
		}
	}

	if h.l != nil {
		h.l.Info("backtest replay done",
			applogger.Int("samples", len(samples)),
			applogger.Int("skipped", skipped),
		)
	}
	return BuildReport(samples), nil
}

func (h *Harness) replayOne(ctx context.Context, target string, horizon domrepo.Horizon, asOf time.Time, g Grid) (Sample, bool, error) {
	anchorID := ""
	if g.Anchored {
		ev, err := h.events.LatestBefore(ctx, target, asOf)
		if err != nil {
			return Sample{}, false, fmt.Errorf("anchor lookup at %s: %w", asOf, err)
		}
		if ev != nil {
			anchorID = ev.ID
		}
	}

	res, err := h.forecaster.Forecast(ctx, target, horizon, asOf, anchorID, g.K)
	if err != nil {
		// Sparse history at the start of the window is expected; a grid
		// point that cannot produce a forecast is skipped, not fatal.
		if isSparseDataErr(err) {
			return Sample{}, false, nil
		}
		return Sample{}, false, fmt.Errorf("forecast at %s: %w", asOf, err)
	}

	realized, err := h.outcomes.GetAt(ctx, target, asOf, horizon)
	if err != nil {
		return Sample{}, false, fmt.Errorf("realized outcome at %s: %w", asOf, err)
	}
	if realized == nil {
		return Sample{}, false, nil
	}

	realizedUp := realized.RealizedDelta > 0
	predictedUp := res.Direction == models.DirectionUp
	return Sample{
		TargetID:   target,
		Horizon:    string(horizon),
		AsOf:       asOf,
		Predicted:  res.Direction,
		Realized:   realized.RealizedDelta,
		Hit:        realizedUp == predictedUp,
		Confidence: res.Confidence,
		Tier:       res.Tier,
		Regime:     res.Regime,
		Source:     res.Source,
		SampleSize: res.SampleSize,
	}, true, nil
}

func isSparseDataErr(err error) bool {
	return errors.Is(err, forecast.ErrNoHistory) ||
		errors.Is(err, forecast.ErrUnknownTarget) ||
		errors.Is(err, forecast.ErrNoNeighbors)
}
