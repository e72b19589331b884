package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 30*time.Second || p.MaxRetries != 2 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed || p.MaxRetries != 5 {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{MaxRetries: 4, Backoff: "Exponential", InitialDelay: "200ms", MaxDelay: "1s"})
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("expected exponential got %s", p.Mode)
	}
	if p.Initial != 200*time.Millisecond || p.Max != time.Second || p.MaxRetries != 4 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	fallback := FromConfig(config.RetryConfig{MaxRetries: 1, InitialDelay: "soon"})
	if fallback.Initial != time.Second {
		t.Fatalf("unparseable delay should fall back to 1s, got %v", fallback.Initial)
	}

	negative := FromConfig(config.RetryConfig{MaxRetries: -3, InitialDelay: "-1s", MaxDelay: "0s"})
	if negative.MaxRetries != 2 || negative.Initial <= 0 || negative.Max <= 0 {
		t.Fatalf("negative values should fall back to defaults, got %+v", negative)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3), 3, 100 * time.Millisecond},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 2, 200 * time.Millisecond},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 3, 250 * time.Millisecond},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 2, 100 * time.Millisecond},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 4, 160 * time.Millisecond},
		{"zero attempt", DefaultPolicy(), 0, 0},
		{"negative attempt", DefaultPolicy(), -1, 0},
	}
	for _, c := range cases {
		if got := c.policy.Delay(c.attempt); got != c.want {
			t.Fatalf("%s: attempt %d expected %v got %v", c.name, c.attempt, c.want, got)
		}
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	var retries []int
	err := p.Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, func(n int, _ error) { retries = append(retries, n) })
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 || len(retries) != 2 || retries[1] != 2 {
		t.Fatalf("unexpected calls=%d retries=%v", calls, retries)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	perm := errors.New("denied")
	calls := 0
	err := p.Do(t.Context(), func(context.Context) error { calls++; return perm },
		func(err error) bool { return errors.Is(err, perm) }, nil)
	if !errors.Is(err, perm) || calls != 1 {
		t.Fatalf("expected single permanent failure, got calls=%d err=%v", calls, err)
	}
}

func TestDoExhaustsAndWraps(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	boom := errors.New("boom")
	calls := 0
	err := p.Do(t.Context(), func(context.Context) error { calls++; return boom }, nil, nil)
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("expected 3 attempts wrapping boom, got calls=%d err=%v", calls, err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 1)
	ctx, cancel := context.WithCancel(t.Context())
	err := p.Do(ctx, func(context.Context) error { cancel(); return errors.New("x") }, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
