package models

import "time"

// Event is an embedded textual event. Immutable once ingested; the
// embedding is produced by an external collaborator and consumed as-is.
type Event struct {
	ID         string
	Timestamp  time.Time // UTC, required
	Embedding  []float64
	TextDigest string
	// Target is an optional tag restricting the event to one target.
	// Empty means the event is global.
	Target string
}

// Outcome is a realized metric delta for a target, unique per
// (TargetID, AsOf, Horizon). Append-only with last-write-wins upserts.
type Outcome struct {
	TargetID      string
	AsOf          time.Time // UTC
	Horizon       string
	RealizedDelta float64
}

// Neighbor is a single nearest-neighbor hit. Transient, never persisted.
type Neighbor struct {
	EventID        string
	Distance       float64
	EventTimestamp time.Time
}

// Direction is the predicted sign of the metric change. Strictly binary:
// a third "flat" category degraded to near-zero accuracy in backtesting
// and is not offered.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ForecastSource tags which path produced a result so consumers can
// switch exhaustively instead of probing for field presence.
type ForecastSource string

const (
	SourceEventConditioned ForecastSource = "event_conditioned"
	SourceBaseline         ForecastSource = "baseline"
)

// RegimeLabel summarizes a target's recent numeric behavior.
type RegimeLabel string

const (
	RegimeUptrend   RegimeLabel = "uptrend"
	RegimeDowntrend RegimeLabel = "downtrend"
	RegimeChoppy    RegimeLabel = "choppy"
	RegimeHighVol   RegimeLabel = "high_volatility"
)

// ConfidenceTier is a coarse classification derived from the confidence
// score for consumer convenience. Thresholds are policy, held in config.
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// ForecastResult is the output of every forecast path.
type ForecastResult struct {
	TargetID      string         `json:"target_id"`
	Horizon       string         `json:"horizon"`
	AsOf          time.Time      `json:"as_of"`
	ExpectedValue float64        `json:"expected_value"`
	Direction     Direction      `json:"direction"`
	ProbUp        float64        `json:"prob_up"`
	Confidence    float64        `json:"confidence"`
	Tier          ConfidenceTier `json:"confidence_tier"`
	SampleSize    int            `json:"sample_size"`
	Regime        RegimeLabel    `json:"regime"`
	Source        ForecastSource `json:"source"`
	// AnchorEventID is set only for event-conditioned results.
	AnchorEventID string `json:"anchor_event_id,omitempty"`
}

// PriceContext groups the numeric features the regime classifier derives
// from a target's own outcome history. Typed absence: Ready reports
// whether the window held enough points to compute anything.
type PriceContext struct {
	CumulativeReturn float64
	Volatility       float64
	WindowSize       int
	Ready            bool
}

// EventContext groups retrieval features attached to an
// event-conditioned estimate.
type EventContext struct {
	NeighborCount   int
	MatchedOutcomes int
	MeanDistance    float64
	WeightSum       float64
}
