package contract

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// DefaultRetryDelay is used when Policy.RetryDelay is not positive.
const DefaultRetryDelay = 100 * time.Millisecond

// Backoff computes the wait before the next attempt. failed is the number
// of attempts that have failed so far (1 before the first retry).
type Backoff interface {
	Delay(failed int) time.Duration
}

// FixedBackoff waits the same duration before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) Delay(int) time.Duration { return time.Duration(f) }

// ExponentialBackoff doubles Base on every retry up to Max and adds a
// deterministic jitter in [0, MaxJitter) derived from Seed and the attempt.
// The same Seed always produces the same schedule.
type ExponentialBackoff struct {
	Base      time.Duration
	Max       time.Duration
	MaxJitter time.Duration
	Seed      string
}

func (b ExponentialBackoff) Delay(failed int) time.Duration {
	exp := failed - 1
	if exp < 0 {
		exp = 0
	}
	// Avoid overflow, cap exponent
	if exp > 30 {
		exp = 30
	}

	delay := b.Base * time.Duration(int64(1)<<exp)
	if b.Max > 0 && (delay > b.Max || delay < 0) {
		delay = b.Max
	}

	return delay + deterministicJitter(b.Seed, failed, b.MaxJitter)
}

func deterministicJitter(seed string, failed int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, failed)))
	basis := binary.BigEndian.Uint64(hash[:8])
	return time.Duration(basis % uint64(maxJitter)) //nolint:gosec // maxJitter is positive
}

// Schedule lists the delays that would precede each retry of a policy that
// allows retries more attempts.
func Schedule(b Backoff, retries int) []time.Duration {
	out := make([]time.Duration, 0, retries)
	for i := 1; i <= retries; i++ {
		out = append(out, b.Delay(i))
	}
	return out
}
