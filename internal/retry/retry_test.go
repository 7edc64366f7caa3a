package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("temporary")

func recordingSleeper(delays *[]time.Duration) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestPolicyDelayDoublesAndCaps(t *testing.T) {
	p := Policy{MaxAttempts: 6, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	got := p.Schedule()
	if len(got) != len(want) {
		t.Fatalf("unexpected schedule length %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i+1, got[i], want[i])
		}
	}
	if p.Delay(0) != 0 {
		t.Fatal("expected zero delay before first retry")
	}
}

func TestPolicyDelayWithoutCapNeverOverflows(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	if got := p.Delay(3); got != 4*time.Second {
		t.Fatalf("Delay(3) = %v, want 4s", got)
	}
	prev := time.Duration(0)
	for n := 1; n <= 200; n++ {
		got := p.Delay(n)
		if got < prev {
			t.Fatalf("Delay(%d) = %v dropped below Delay(%d) = %v", n, got, n-1, prev)
		}
		prev = got
	}
	if prev <= 0 {
		t.Fatalf("expected saturated positive delay, got %v", prev)
	}
}

func TestDoThreeTransientFailuresThenSuccess(t *testing.T) {
	var delays []time.Duration
	calls := 0
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: time.Minute}
	res, err := Do(context.Background(), p, recordingSleeper(&delays), func(err error) bool {
		return errors.Is(err, errTransient)
	}, nil, func(context.Context, int) error {
		calls++
		if calls <= 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if res.Retries != 3 || res.Attempts != 4 {
		t.Fatalf("expected 3 retries over 4 attempts, got %+v", res)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i+1, delays[i], want[i])
		}
	}
	if res.Waited != 7*time.Second {
		t.Fatalf("expected cumulative 7s backoff, got %v", res.Waited)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("auth rejected")
	var delays []time.Duration
	calls := 0
	res, err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Second}, recordingSleeper(&delays), func(err error) bool {
		return errors.Is(err, errTransient)
	}, nil, func(context.Context, int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 || res.Retries != 0 || len(delays) != 0 {
		t.Fatalf("expected a single attempt, got calls=%d res=%+v", calls, res)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	res, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, recordingSleeper(&delays), nil, nil, func(context.Context, int) error {
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if res.Attempts != 3 || res.Retries != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Hour}, Sleep, nil, func(int, time.Duration, error) {
		cancel()
	}, func(context.Context, int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected attempt error to surface, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation to stop retries, got %d calls", calls)
	}
}
