package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// Func is an operation that may be retried.
type Func func(ctx context.Context) error

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		Retryable: func(err error) bool {
			return err != nil
		},
	}
}

// Retrier runs a Func with exponential backoff.
type Retrier struct {
	config Config
	log    zerolog.Logger
}

// New creates a Retrier.
func New(config Config, log zerolog.Logger) *Retrier {
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Retryable == nil {
		config.Retryable = DefaultConfig().Retryable
	}
	return &Retrier{config: config, log: log}
}

// Do executes fn until it succeeds, returns a non-retryable error, or
// the attempt budget is exhausted.
func (r *Retrier) Do(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.log.Info().Int("attempt", attempt+1).Msg("operation succeeded after retries")
			}
			return nil
		}
		lastErr = err

		if !r.config.Retryable(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.delay(attempt)
		r.log.Debug().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.log.Warn().Err(lastErr).Int("total_attempts", r.config.MaxRetries+1).Msg("operation failed after all retries")
	return fmt.Errorf("retry limit exceeded after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxDelay > 0 && d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		d += d * 0.1 * rand.Float64()
	}
	return time.Duration(d)
}
