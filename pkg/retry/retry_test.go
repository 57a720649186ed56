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

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	notFound := errors.New("status 404")
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(notFound)
	})

	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoWithLog_LogsRetries(t *testing.T) {
	logger := zerolog.Nop()
	calls := 0
	err := DoWithLog(context.Background(), fastConfig(2), "demas", func() error {
		calls++
		if calls == 1 {
			return errors.New("reset")
		}
		return nil
	}, &logger)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(errors.New("x")))
	assert.Nil(t, Permanent(nil))
}
