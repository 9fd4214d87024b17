// Package retry wraps external calls with exponential backoff. Only
// transient failures — timeouts, rate-limit 429, 5xx, transport errors —
// are retried; permanent errors surface immediately.
package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
)

// Backoff parameters: attempts are spaced 1 s, 2 s, 4 s, ... capped at 15 s.
// Vars rather than consts so tests can shrink the delays.
var (
	baseDelay   = 1 * time.Second
	maxDelay    = 15 * time.Second
	maxAttempts = 3
)

// IsTransient reports whether an error is worth retrying: provider timeouts
// (incl. rate-limit 429), 5xx responses, and transport-level failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrProviderTimeout) || errors.Is(err, core.ErrProviderUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Do runs fn, retrying transient failures with exponential backoff up to
// maxAttempts total attempts. The last error is returned; ctx cancellation
// stops the backoff wait immediately.
func Do(ctx context.Context, fn func() error) error {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsTransient(err) || attempt >= maxAttempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// StatusError classifies an HTTP response status into the provider error
// taxonomy, wrapping cause for context. 2xx statuses are the caller's
// business and map to PROVIDER_FAILED if passed here.
func StatusError(status int, cause error) error {
	switch {
	case status == 429:
		return core.WrapError(core.ErrProviderTimeout, cause)
	case status >= 500:
		return core.WrapError(core.ErrProviderUnavailable, cause)
	default:
		return core.WrapError(core.ErrProviderFailed, cause)
	}
}
