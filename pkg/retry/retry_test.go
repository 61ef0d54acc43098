package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	r := New(fastConfig(), zerolog.Nop())
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	r := New(fastConfig(), zerolog.Nop())
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("serialization failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	cfg := fastConfig()
	fatal := errors.New("fatal")
	cfg.Retryable = func(err error) bool { return !errors.Is(err, fatal) }
	r := New(cfg, zerolog.Nop())
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	r := New(cfg, zerolog.Nop())
	boom := errors.New("boom")
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	r := New(fastConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(ctx context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay_CappedAtMax(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.MaxDelay = 15 * time.Millisecond
	r := New(cfg, zerolog.Nop())

	assert.Equal(t, 10*time.Millisecond, r.delay(0))
	assert.Equal(t, 15*time.Millisecond, r.delay(3))
}
