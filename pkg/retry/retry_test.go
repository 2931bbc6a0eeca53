package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.NewWithCode(errs.ErrorTypeNotFound, "no such project", 404)
	}, testConfig(5))

	if !errs.IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, "timeout")
	}, testConfig(3))

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeServerError, "bad gateway")
		}
		return "payload", nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "payload" {
		t.Errorf("Expected payload, got %q", result)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(0)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(func() error {
		return errs.New(errs.ErrorTypeNetwork, "timeout")
	}, cfg)

	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context cancellation, got %v", err)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(nil) {
		t.Error("nil error must not be retried")
	}
	if !DefaultRetryIf(errs.New(errs.ErrorTypeNetwork, "x")) {
		t.Error("network errors should be retried")
	}
	if DefaultRetryIf(errs.New(errs.ErrorTypeAuth, "x")) {
		t.Error("auth errors must not be retried")
	}
	if DefaultRetryIf(context.Canceled) {
		t.Error("context cancellation must not be retried")
	}
}

func TestExponentialBackoffGrows(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	d1 := eb.NextDelay(1)
	d2 := eb.NextDelay(2)
	d3 := eb.NextDelay(10)

	if d1 != 100*time.Millisecond {
		t.Errorf("Expected base delay on first attempt, got %v", d1)
	}
	if d2 != 200*time.Millisecond {
		t.Errorf("Expected doubled delay on second attempt, got %v", d2)
	}
	if d3 != time.Second {
		t.Errorf("Expected delay capped at max, got %v", d3)
	}
}
