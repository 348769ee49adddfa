package batch

import "time"

// Default polling intervals.
const (
	DefaultInitialInterval = 5 * time.Second
	DefaultMaxInterval     = 60 * time.Second
)

// Backoff is the polling schedule: Initial after the first non-terminal
// observation, doubling after each further one, never above Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff polls after 5s, 10s, 20s, 40s, then every 60s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: DefaultInitialInterval, Max: DefaultMaxInterval}
}

// First returns the interval to sleep after the first non-terminal poll.
func (b Backoff) First() time.Duration {
	return b.clamp(b.Initial)
}

// Next returns the interval that follows cur.
func (b Backoff) Next(cur time.Duration) time.Duration {
	return b.clamp(2 * cur)
}

func (b Backoff) clamp(d time.Duration) time.Duration {
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultInitialInterval
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxInterval
	}
	return b
}
