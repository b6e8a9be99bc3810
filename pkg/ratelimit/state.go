// Package ratelimit implements server request-budget tracking and request
// gating. It monitors the X-RateLimit-Remaining and X-RateLimit-Reset
// headers so that a pool of clients sharing one Redis instance backs off
// before the server starts rejecting requests.
package ratelimit

import (
	"time"
)

// Redis keys for budget state storage.
const (
	RedisKeyRemaining      = "jsonapi:rate_limit:remaining"
	RedisKeyResetTimestamp = "jsonapi:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "jsonapi:rate_limit:last_update"
)

// Thresholds for budget decisions.
const (
	// BudgetThresholdCritical blocks all requests when the remaining budget
	// falls below this value. This keeps the last few requests in reserve so
	// the server never starts returning 429s across the whole pool.
	BudgetThresholdCritical = 5

	// BudgetThresholdWarning applies throttling when the remaining budget
	// falls below this value. This slows down the request rate so the
	// budget recovers before the critical threshold is reached.
	BudgetThresholdWarning = 20

	// BudgetThresholdHealthy indicates normal operation.
	// When the remaining budget is at or above this value, no restrictions apply.
	BudgetThresholdHealthy = 50
)

// BudgetState represents the current server request-budget state.
// This state is shared across all client instances via Redis.
type BudgetState struct {
	// Remaining is the number of requests allowed before the server starts
	// rejecting them. Extracted from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is the timestamp when the budget window resets.
	// Calculated from the X-RateLimit-Reset header.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is the timestamp when this state was last updated.
	// Used to detect stale state and determine if data should be refreshed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates whether the budget is in a healthy state.
	// True when Remaining >= BudgetThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
// Stale state should be refreshed from Redis or response headers.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked because the
// budget is nearly exhausted.
func (s *BudgetState) NeedsCriticalBlock() bool {
	return s.Remaining < BudgetThresholdCritical
}

// NeedsThrottling returns true if requests should be throttled due to the
// warning threshold.
func (s *BudgetState) NeedsThrottling() bool {
	return s.Remaining < BudgetThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget window resets.
// Returns 0 if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on the current Remaining value.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= BudgetThresholdHealthy
}
