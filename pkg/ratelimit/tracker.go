package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for budget tracking.
var (
	apiBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_rate_limit_remaining",
		Help: "Number of requests remaining in the current API budget window",
	})

	apiRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical budget",
	})

	apiRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to warning budget",
	})
)

// Rate limit headers set by the marketplace backend.
const (
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// DefaultThrottleDelay is the pause inserted before each request while
// the budget sits in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker maintains the shared budget snapshot and gates requests on it.
type Tracker struct {
	redis    *redis.Client
	logger   zerolog.Logger
	throttle time.Duration
}

// NewTracker creates a budget tracker on the given Redis client.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:    redisClient,
		logger:   logger,
		throttle: DefaultThrottleDelay,
	}
}

// GetState returns the shared budget snapshot. With no stored snapshot,
// or when the stored window has already ended, the budget counts as
// replenished: blocking on a window that is over would wedge every
// client, since blocked requests never produce fresh headers.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	fields, err := t.redis.HGetAll(ctx, budgetKey).Result()
	if err != nil {
		return State{}, fmt.Errorf("read budget state: %w", err)
	}
	if len(fields) == 0 {
		return replenished(), nil
	}

	state, err := stateFromFields(fields)
	if err != nil {
		return State{}, err
	}

	if state.Expired(time.Now()) {
		t.logger.Debug().
			Time("reset_at", state.ResetAt).
			Msg("Budget window rolled over")
		return replenished(), nil
	}

	return state, nil
}

// replenished is the snapshot assumed at the start of a window.
func replenished() State {
	now := time.Now()
	return State{
		Remaining: DefaultBudget,
		ResetAt:   now.Add(DefaultWindow),
		UpdatedAt: now,
	}
}

// stateFromFields decodes the Redis hash representation.
func stateFromFields(fields map[string]string) (State, error) {
	remaining, err := strconv.Atoi(fields[fieldRemaining])
	if err != nil {
		return State{}, fmt.Errorf("decode %s field: %w", fieldRemaining, err)
	}

	resetAt, err := strconv.ParseInt(fields[fieldResetAt], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("decode %s field: %w", fieldResetAt, err)
	}

	updatedAt, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("decode %s field: %w", fieldUpdatedAt, err)
	}

	return State{
		Remaining: remaining,
		ResetAt:   time.Unix(resetAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

// stateFromHeaders builds a snapshot from a response's rate limit
// headers. ok is false when the response carries none; endpoints outside
// the budgeted surface don't set them.
func stateFromHeaders(headers http.Header, now time.Time) (state State, ok bool, err error) {
	remainingStr := headers.Get(headerRemaining)
	if remainingStr == "" {
		return State{}, false, nil
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return State{}, false, fmt.Errorf("parse %s: %w", headerRemaining, err)
	}

	resetStr := headers.Get(headerReset)
	if resetStr == "" {
		return State{}, false, fmt.Errorf("%s present without %s", headerRemaining, headerReset)
	}

	resetIn, err := strconv.Atoi(resetStr)
	if err != nil {
		return State{}, false, fmt.Errorf("parse %s: %w", headerReset, err)
	}

	return State{
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(resetIn) * time.Second),
		UpdatedAt: now,
	}, true, nil
}

// UpdateFromHeaders records a response's budget headers in the shared
// snapshot. Responses without budget headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := stateFromHeaders(headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	err = t.redis.HSet(ctx, budgetKey, map[string]interface{}{
		fieldRemaining: state.Remaining,
		fieldResetAt:   state.ResetAt.Unix(),
		fieldUpdatedAt: state.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("store budget state: %w", err)
	}

	apiBudgetRemaining.Set(float64(state.Remaining))

	ev := t.logger.Debug()
	switch state.Level() {
	case LevelCritical:
		ev = t.logger.Error()
	case LevelWarning:
		ev = t.logger.Warn()
	}
	ev.Int("remaining", state.Remaining).
		Time("reset_at", state.ResetAt).
		Stringer("level", state.Level()).
		Msg("Budget snapshot updated")

	return nil
}

// ShouldAllowRequest gates a request on the current budget. Critical
// budgets block (returns false), warning budgets insert the throttle
// delay first, healthy budgets pass through.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get budget state: %w", err)
	}

	switch state.Level() {
	case LevelCritical:
		apiRateLimitBlocksTotal.Inc()
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("retry_in", state.TimeUntilReset()).
			Msg("Budget exhausted, blocking request")
		return false, nil

	case LevelWarning:
		apiRateLimitThrottlesTotal.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttle).
			Msg("Budget low, throttling request")
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttle):
		}
	}

	return true, nil
}
