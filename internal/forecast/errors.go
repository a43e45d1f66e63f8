package forecast

import "errors"

var (
	// ErrNoNeighbors means retrieval produced zero neighbors with a
	// matched outcome. Recovered by falling back to the baseline path;
	// never coerced into a degenerate zero-division result.
	ErrNoNeighbors = errors.New("no neighbors with matched outcomes")

	// ErrCausalityViolation means an entity dated at or after the
	// forecast's as-of time reached the aggregation step. This is a
	// programming bug, not a recoverable runtime condition.
	ErrCausalityViolation = errors.New("causality violation: entity timestamp >= as_of")

	// ErrUnknownTarget means the target has no outcome history at all.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrNoHistory means the baseline path found no usable outcomes.
	ErrNoHistory = errors.New("no outcome history before as_of")
)
