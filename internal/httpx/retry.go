// Package httpx wraps outbound HTTP calls with status-code-aware retry
// behaviour. It distinguishes three failure classes: transient server errors
// (retried silently, last response returned), HTTP 429 (never retried,
// surfaced as a distinguished error so the orchestrator can halt the whole
// batch), and connection-level faults (retried with exponential backoff,
// fatal after the attempt budget).
package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// Policy configures the retry wrapper. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total call budget, first try included.
	MaxAttempts int

	// TransientStatuses are the response codes retried without surfacing an
	// error. On exhaustion the last response is returned as-is and the
	// caller is expected to check the status.
	TransientStatuses map[int]bool

	// InitialBackoff, MaxBackoff and BackoffFactor shape the exponential
	// backoff applied between connection-fault retries. JitterFactor adds
	// up to that fraction of random extra delay to avoid retry stampedes.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultPolicy returns the policy used for all marketplace calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		TransientStatuses: map[int]bool{
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
		},
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Do executes call under the policy. The closure must perform exactly one
// HTTP round-trip per invocation.
//
// A 429 response is closed and reported as domain.ErrTooManyRequests
// immediately, with no retry. Transient statuses are retried up to the
// attempt budget; the final response is returned without error so the
// caller can log the status. Connection faults are retried with backoff and
// reported as domain.ErrRequestExhausted once the budget is spent.
func (p Policy) Do(ctx context.Context, call func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("httpx: %w", err)
		}

		resp, err := call()
		if err != nil {
			lastErr = err
			if attempt < p.MaxAttempts-1 {
				if sleepErr := p.sleep(ctx, attempt); sleepErr != nil {
					return nil, sleepErr
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return nil, fmt.Errorf("httpx: status 429: %w", domain.ErrTooManyRequests)
		}

		// The final attempt's response is returned even when transient, so
		// the caller sees the failing status instead of an error.
		if p.TransientStatuses[resp.StatusCode] && attempt < p.MaxAttempts-1 {
			drain(resp)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("httpx: %d attempts failed, last: %v: %w",
		p.MaxAttempts, lastErr, domain.ErrRequestExhausted)
}

// sleep blocks for the backoff duration of the given attempt, honouring
// context cancellation.
func (p Policy) sleep(ctx context.Context, attempt int) error {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffFactor
	}
	if max := float64(p.MaxBackoff); backoff > max {
		backoff = max
	}
	if p.JitterFactor > 0 {
		backoff += backoff * p.JitterFactor * rand.Float64()
	}

	timer := time.NewTimer(time.Duration(backoff))
	select {
	case <-ctx.Done():
		timer.Stop()
		return fmt.Errorf("httpx: backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// drain discards and closes a response body so the underlying connection can
// be reused by the next attempt.
func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}
}
