package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded is returned once a policy's retries are spent
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy configures how often and how patiently an operation is retried
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction of each delay randomized away, 0 disables it
	Jitter float64
	// RetryableFunc overrides the default classification of errors
	RetryableFunc func(error) bool
}

// DefaultPolicy retries three times starting at 100ms
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if p.InitialDelay < 0 {
		return errors.New("initial delay must not be negative")
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return errors.New("max delay must be at least the initial delay")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return errors.New("multiplier must be at least 1")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return errors.New("jitter must be between 0 and 1")
	}
	return nil
}

// Backoff computes exponential delays for a policy
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before the given attempt, starting at 1
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := b.policy.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	delay := float64(b.policy.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if b.policy.MaxDelay > 0 && delay > float64(b.policy.MaxDelay) {
		delay = float64(b.policy.MaxDelay)
	}

	if b.policy.Jitter > 0 {
		delta := delay * b.policy.Jitter
		delay = delay - delta + rand.Float64()*2*delta
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
