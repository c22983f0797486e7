// Package retry decides whether a failed remote call is retried, and waits
// between attempts with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/ferry/internal/remote"
)

// Defaults.
const (
	DefaultMaxAttempts         = 3
	DefaultInitialInterval     = 500 * time.Millisecond
	DefaultMaxInterval         = 10 * time.Second
	DefaultMultiplier          = 2.0
	DefaultRandomizationFactor = 0.5
)

// Policy bounds retries of a single remote call.
type Policy struct {
	MaxAttempts         int           // Total attempts including the first (default: 3)
	InitialInterval     time.Duration // Delay before the first retry
	MaxInterval         time.Duration // Upper bound for a single delay
	Multiplier          float64       // Growth factor between delays
	RandomizationFactor float64       // Jitter: each delay is spread by +/- this fraction

	// OnRetry is called before each wait, with the failure and the delay.
	OnRetry func(err error, delay time.Duration)
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         DefaultMaxAttempts,
		InitialInterval:     DefaultInitialInterval,
		MaxInterval:         DefaultMaxInterval,
		Multiplier:          DefaultMultiplier,
		RandomizationFactor: DefaultRandomizationFactor,
	}
}

// ShouldRetry reports whether err is worth another attempt.
//
// Rate-limit failures and transport failures are retried. Any other remote
// failure carries an application error code or is a not-found; both are
// deterministic and are not retried. An error of unknown shape is assumed to
// be transient. Context cancellation is never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	kind, ok := remote.KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case remote.KindRateLimited, remote.KindTransport:
		return true
	default:
		return false
	}
}

// withDefaults fills every unset field from DefaultPolicy, so a partly
// filled policy still gets jittered, growing delays.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	if p.RandomizationFactor <= 0 {
		p.RandomizationFactor = def.RandomizationFactor
	}
	return p
}

func (p Policy) exponential() *backoff.ExponentialBackOff {
	p = p.withDefaults()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.RandomizationFactor
	// Attempts bound the retries, not elapsed time.
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.withDefaults().MaxAttempts
	return backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(attempts-1)), ctx)
}

// Value runs op until it succeeds, fails permanently, or runs out of attempts.
// The returned error is the last failure, unchanged.
func Value[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op(ctx)
		if err != nil && !ShouldRetry(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), func(err error, d time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, d)
		}
	})
}

// Do is Value for operations without a result.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
