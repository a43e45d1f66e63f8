package repository

import "time"

// Horizon is the forward window over which a metric change is measured.
type Horizon string

const (
	H1d  Horizon = "1d"
	H3d  Horizon = "3d"
	H7d  Horizon = "7d"
	H30d Horizon = "30d"
)

// IsValidHorizon returns true if h is a supported horizon.
func IsValidHorizon(h Horizon) bool {
	switch h {
	case H1d, H3d, H7d, H30d:
		return true
	default:
		return false
	}
}

// DefaultHorizon returns the default horizon.
func DefaultHorizon() Horizon { return H7d }

// NormalizeHorizon converts a raw string to a valid horizon (or default).
func NormalizeHorizon(s string) Horizon {
	if s == "" {
		return DefaultHorizon()
	}
	h := Horizon(s)
	if IsValidHorizon(h) {
		return h
	}
	return DefaultHorizon()
}

// Duration returns the wall-clock span of the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case H1d:
		return 24 * time.Hour
	case H3d:
		return 3 * 24 * time.Hour
	case H7d:
		return 7 * 24 * time.Hour
	case H30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}
