// Package ratelimit gates marketplace API requests against the backend's
// request budget, advertised through the X-RateLimit-Remaining and
// X-RateLimit-Reset response headers. The latest budget snapshot is
// shared across client instances through a Redis hash, so one process
// observing an exhausted budget protects the others.
package ratelimit

import "time"

// budgetKey is the Redis hash holding the shared budget snapshot.
const budgetKey = "mp:rate_limit"

// Fields of the budget hash.
const (
	fieldRemaining = "remaining"
	fieldResetAt   = "reset_at"
	fieldUpdatedAt = "updated_at"
)

// Budget thresholds.
const (
	// ThresholdCritical blocks all requests while the remaining budget
	// is below it. The few requests left are reserved for whatever the
	// backend itself still needs to answer.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests while the remaining budget is
	// below it, stretching the tail of the window instead of burning it.
	ThresholdWarning = 20
)

// DefaultBudget is assumed before any response has been observed and
// after a window rollover.
const DefaultBudget = 100

// DefaultWindow is the assumed budget window length when the backend
// has not told us otherwise.
const DefaultWindow = 60 * time.Second

// Level classifies a budget snapshot.
type Level int

const (
	// LevelHealthy allows requests without restriction.
	LevelHealthy Level = iota

	// LevelWarning allows requests with a throttle delay.
	LevelWarning

	// LevelCritical blocks requests until the window resets.
	LevelCritical
)

// String returns the level name for logging.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// State is a snapshot of the shared request budget.
type State struct {
	// Remaining is the number of requests left in the current window,
	// from X-RateLimit-Remaining.
	Remaining int

	// ResetAt is when the current window ends, derived from
	// X-RateLimit-Reset (seconds until reset).
	ResetAt time.Time

	// UpdatedAt is when this snapshot was taken.
	UpdatedAt time.Time
}

// Level classifies the snapshot against the thresholds.
func (s State) Level() Level {
	switch {
	case s.Remaining < ThresholdCritical:
		return LevelCritical
	case s.Remaining < ThresholdWarning:
		return LevelWarning
	default:
		return LevelHealthy
	}
}

// Expired reports whether the snapshot's window has already ended. An
// expired snapshot says nothing about the current window; the budget
// counts as replenished.
func (s State) Expired(now time.Time) bool {
	return !s.ResetAt.IsZero() && now.After(s.ResetAt)
}

// TimeUntilReset returns how long until the window ends, or 0 when it
// already has.
func (s State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
