package retry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	savedBase, savedMax := baseDelay, maxDelay
	baseDelay, maxDelay = time.Millisecond, 4*time.Millisecond
	t.Cleanup(func() { baseDelay, maxDelay = savedBase, savedMax })
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	fastBackoff(t)

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("status 503"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	fastBackoff(t)

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return core.WrapError(core.ErrProviderTimeout, fmt.Errorf("rate limited"))
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderTimeout))
	assert.Equal(t, 3, calls, "up to 3 attempts, then the last error surfaces")
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	fastBackoff(t)

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("status 404"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsBackoff(t *testing.T) {
	// Real base delay: cancellation must win over the 1 s wait.
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func() error {
			calls++
			cancel()
			return core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("status 502"))
		})
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("cancelled backoff still waiting")
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(core.ErrProviderTimeout))
	assert.True(t, IsTransient(core.ErrProviderUnavailable))
	assert.True(t, IsTransient(core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("status 500"))))
	assert.True(t, IsTransient(&url.Error{Op: "Get", URL: "https://example.com", Err: fmt.Errorf("connection reset")}))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(core.ErrProviderFailed))
	assert.False(t, IsTransient(core.ErrNoData))
	assert.False(t, IsTransient(errors.New("malformed payload")))
}

func TestStatusError(t *testing.T) {
	assert.True(t, errors.Is(StatusError(429, nil), core.ErrProviderTimeout))
	assert.True(t, errors.Is(StatusError(503, nil), core.ErrProviderUnavailable))
	assert.True(t, errors.Is(StatusError(404, nil), core.ErrProviderFailed))
	assert.True(t, errors.Is(StatusError(400, nil), core.ErrProviderFailed))

	// The taxonomy split drives retryability.
	assert.True(t, IsTransient(StatusError(500, nil)))
	assert.True(t, IsTransient(StatusError(429, nil)))
	assert.False(t, IsTransient(StatusError(403, nil)))
}
