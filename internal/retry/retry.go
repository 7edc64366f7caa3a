// Package retry provides a pure exponential-backoff policy and a loop that
// applies it with an injectable sleeper.
package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes how many times to try and how long to wait in between.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// longestDelay bounds Delay when no MaxDelay is set.
const longestDelay = time.Duration(math.MaxInt64)

// Delay returns the wait before retry number n (1-based): BaseDelay·2^(n-1),
// capped at MaxDelay when set and saturating instead of overflowing.
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < retry; i++ {
		if delay > longestDelay/2 {
			delay = longestDelay
			break
		}
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Schedule lists every delay the policy would wait through when all
// attempts fail.
func (p Policy) Schedule() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for n := 1; n < p.MaxAttempts; n++ {
		out = append(out, p.Delay(n))
	}
	return out
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retryable classifies an error returned by an attempt.
type Retryable func(error) bool

// Result reports how a Do call went.
type Result struct {
	Attempts int
	Retries  int
	Waited   time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// policy, or ctx is cancelled. onRetry, when set, is called before each wait.
func Do(ctx context.Context, policy Policy, sleep Sleeper, retryable Retryable, onRetry func(attempt int, delay time.Duration, err error), fn func(ctx context.Context, attempt int) error) (Result, error) {
	if sleep == nil {
		sleep = Sleep
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var res Result
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		err := fn(ctx, attempt)
		if err == nil {
			return res, nil
		}
		if attempt >= maxAttempts || ctx.Err() != nil || (retryable != nil && !retryable(err)) {
			return res, err
		}
		delay := policy.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return res, err
		}
		res.Retries++
		res.Waited += delay
	}
}
