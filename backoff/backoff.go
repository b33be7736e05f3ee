// Package backoff implements the reconnection delay policy.
//
// The policy is a pure function over a zero-based attempt counter:
//
//	delay(attempt) = min(BaseInterval * Multiplier^attempt, MaxDelay)
package backoff

import (
	"math"
	"time"
)

// Strategy configures exponential backoff between reconnection attempts.
// The zero value is not usable; start from DefaultStrategy.
type Strategy struct {
	BaseInterval time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap applied to the computed delay
	Multiplier   float64       // growth factor per attempt
	MaxAttempts  int           // 0 means unbounded
}

// DefaultStrategy returns the standard policy: 5s base, doubling, capped at 30s,
// unbounded attempts.
func DefaultStrategy() Strategy {
	return Strategy{
		BaseInterval: 5 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait before reconnection attempt number attempt (zero-based).
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(s.BaseInterval) * math.Pow(s.Multiplier, float64(attempt)))
	if d > s.MaxDelay || d <= 0 {
		// d <= 0 guards float overflow at large attempt counts.
		d = s.MaxDelay
	}
	return d
}

// Exhausted reports whether attempt (zero-based) exceeds the configured budget.
func (s Strategy) Exhausted(attempt int) bool {
	return s.MaxAttempts > 0 && attempt >= s.MaxAttempts
}
