package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrRateLimitExhausted is returned by RateLimitRetrier.Open when every attempt got a 429.
var ErrRateLimitExhausted = errors.New("upstream rate limit: attempts exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryState describes the attempt in progress.
type RetryState struct {
	// Attempt is the 1-based number of the attempt that just got a 429.
	Attempt int
	// MaxAttempts is the total number of attempts allowed.
	MaxAttempts int
	// Wait is the delay before the next attempt.
	Wait time.Duration
}

// RetryingMessage is the synthetic text sent to the client before waiting.
func (s RetryState) RetryingMessage() string {
	return fmt.Sprintf("[proxy] upstream 429 rate limited. retry in %.1fs (attempt %d/%d)", s.Wait.Seconds(), s.Attempt, s.MaxAttempts)
}

// GiveUpMessage is the synthetic text sent to the client after the final 429.
func (s RetryState) GiveUpMessage() string {
	return fmt.Sprintf("[proxy] giving up after %d attempts.", s.Attempt)
}

// RateLimitRetrier opens an upstream stream, waiting and retrying while the upstream
// answers 429. Any other status ends the loop immediately.
type RateLimitRetrier struct {
	MaxAttempts  int
	DefaultDelay time.Duration
	Sleep        SleepFunc

	// OnRetry and OnGiveUp observe the loop, e.g. for metrics. Both are optional.
	OnRetry  func(RetryState)
	OnGiveUp func(RetryState)
}

// Open calls open until it yields a response whose status is not 429 and returns it.
// notify delivers the synthetic client messages; a notify error aborts the loop.
// After the final 429 it notifies the give-up message and returns ErrRateLimitExhausted
// without waiting again.
func (r RateLimitRetrier) Open(ctx context.Context, open func(context.Context) (*http.Response, error), notify func(string) error) (*http.Response, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = WaitWithContext
	}

	for attempt := 1; ; attempt++ {
		resp, err := open(ctx)
		if err != nil {
			return nil, err
		}
		logWithRequestID(ctx).Debugf("gemini upstream status=%d attempt=%d/%d", resp.StatusCode, attempt, maxAttempts)
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		body := readErrorBody(resp.Body)
		closeBody(ctx, "gemini", resp.Body)

		state := RetryState{
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Wait:        ParseRetryDelay([]byte(body), r.DefaultDelay),
		}
		if attempt >= maxAttempts {
			logWithRequestID(ctx).Warnf("gemini upstream still rate limited after %d attempts", attempt)
			if r.OnGiveUp != nil {
				r.OnGiveUp(state)
			}
			if errNotify := notify(state.GiveUpMessage()); errNotify != nil {
				return nil, errNotify
			}
			return nil, ErrRateLimitExhausted
		}

		logWithRequestID(ctx).Infof("gemini upstream rate limited, retrying in %s (attempt %d/%d)", state.Wait, attempt, maxAttempts)
		if r.OnRetry != nil {
			r.OnRetry(state)
		}
		if errNotify := notify(state.RetryingMessage()); errNotify != nil {
			return nil, errNotify
		}
		if errSleep := sleep(ctx, state.Wait); errSleep != nil {
			return nil, errSleep
		}
	}
}

// ParseRetryDelay extracts the retryDelay ("46s", "1.5s") from a Google RPC error body.
// It returns def when no detail carries a parsable delay.
func ParseRetryDelay(body []byte, def time.Duration) time.Duration {
	details := gjson.GetBytes(body, "error.details")
	if !details.IsArray() {
		return def
	}
	for _, d := range details.Array() {
		rd := d.Get("retryDelay")
		if rd.Type != gjson.String || !strings.HasSuffix(rd.Str, "s") {
			continue
		}
		seconds, err := strconv.ParseFloat(strings.TrimSuffix(rd.Str, "s"), 64)
		if err != nil || seconds < 0 {
			return def
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return def
}

// WaitWithContext sleeps for delay or until ctx is done, whichever comes first.
func WaitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
