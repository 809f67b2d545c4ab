package session

import (
	"math"
	"math/rand"
	"time"
)

// Backoff spaces the retries of a polling loop, such as discovery passes that
// find no boat. It is not safe for concurrent use.
type Backoff struct {
	cfg     BackoffConfig
	rng     *rand.Rand
	attempt int
}

func NewBackoff(cfg BackoffConfig, seed int64) *Backoff {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &Backoff{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Delay is the wait after the nth consecutive miss, counting from 1. Jitter
// scales the capped delay by a factor in [0.5, 1.5).
func (b *Backoff) Delay(n int) time.Duration {
	if b.cfg.InitialDelay <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	d := float64(b.cfg.InitialDelay) * math.Pow(b.cfg.Multiplier, float64(n-1))
	if b.cfg.MaxDelay > 0 {
		d = math.Min(d, float64(b.cfg.MaxDelay))
	}
	if b.cfg.Jitter {
		d *= 0.5 + b.rng.Float64()
	}
	return time.Duration(d)
}

// Next records a miss and returns how long to wait before retrying.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return b.Delay(b.attempt)
}

// Reset returns the loop to its initial delay after a hit.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) Attempts() int {
	return b.attempt
}
