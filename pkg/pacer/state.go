// Package pacer enforces politeness pacing for requests against the portal.
// A Redis-shared timestamp spaces requests by a minimum interval across all
// crawler instances, and consecutive failures widen the interval
// exponentially so a struggling portal gets breathing room.
package pacer

import (
	"time"
)

// Redis keys for shared pacing state.
const (
	RedisKeyLastRequest = "splegis:pacer:last_request"
	RedisKeyFailStreak  = "splegis:pacer:fail_streak"
)

// FailStreakCap bounds the exponential backoff growth. Beyond this many
// consecutive failures the delay stays at the configured maximum.
const FailStreakCap = 6

// State is the shared pacing state. It is read from Redis before each
// request and never mutated in place.
type State struct {
	// LastRequest is when any crawler instance last hit the portal.
	// Zero when no request has been recorded yet.
	LastRequest time.Time

	// FailStreak counts consecutive failed requests across instances.
	FailStreak int
}

// Delay returns the interval to keep between requests given the current
// failure streak: min doubled per consecutive failure, capped at max.
func (s State) Delay(min, max time.Duration) time.Duration {
	streak := s.FailStreak
	if streak > FailStreakCap {
		streak = FailStreakCap
	}

	delay := min
	for i := 0; i < streak; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// WaitFor returns how long a request arriving at now must wait before it is
// allowed. Returns 0 when the slot is already free.
func (s State) WaitFor(now time.Time, min, max time.Duration) time.Duration {
	if s.LastRequest.IsZero() {
		return 0
	}

	next := s.LastRequest.Add(s.Delay(min, max))
	wait := next.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// IsBackingOff reports whether the state carries any failure streak.
func (s State) IsBackingOff() bool {
	return s.FailStreak > 0
}
