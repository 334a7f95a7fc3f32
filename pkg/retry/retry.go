package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Config contains retry configuration
type Config struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor adds ±factor random jitter to each wait
	JitterFactor float64
}

// DefaultConfig returns exponential backoff: 1s, 2s, 4s ... capped at 30s
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops retrying immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do runs op, retrying failures with exponential backoff until MaxRetries is
// exhausted, the context is done, or op returns a PermanentError. The last
// error is returned unwrapped from its Permanent marker.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg, attempt)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
	}

	return errors.Join(ErrMaxRetriesExceeded, lastErr)
}

func backoff(cfg *Config, attempt int) time.Duration {
	interval := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if max := float64(cfg.MaxInterval); interval > max {
		interval = max
	}
	if cfg.JitterFactor > 0 {
		delta := interval * cfg.JitterFactor
		interval = interval - delta + rand.Float64()*2*delta
	}
	return time.Duration(interval)
}
