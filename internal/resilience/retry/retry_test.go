package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       100 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	testErr := &HTTPError{StatusCode: 500, Message: "Server Error"}
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return testErr
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("expected wrapped error to contain original error")
	}
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	testErr := &HTTPError{StatusCode: 401, Message: "Unauthorized"}
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return testErr
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got %d", attempts)
	}
	if err != testErr {
		t.Errorf("expected the original error unwrapped, got %v", err)
	}
}

func TestWithBackoff_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	attempts := 0
	testErr := &HTTPError{StatusCode: 500, Message: "Server Error"}
	err := WithBackoff(context.Background(), SingleAttemptConfig(), func() error {
		attempts++
		return testErr
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if err != testErr {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := WithBackoff(ctx, cfg, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return &HTTPError{StatusCode: 500, Message: "Server Error"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts before cancel, got %d", attempts)
	}
}

func TestWithBackoff_HonorsRetryAfter(t *testing.T) {
	cfg := fastConfig(2)
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Second

	var waits []time.Duration
	cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
		waits = append(waits, delay)
	}

	attempts := 0
	err := WithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			return &HTTPError{StatusCode: 429, Message: "Too Many Requests", RetryAfter: 30 * time.Millisecond}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(waits) != 1 || waits[0] != 30*time.Millisecond {
		t.Errorf("expected a single 30ms wait, got %v", waits)
	}
}

func TestWithBackoff_RetryAfterCappedAtMaxDelay(t *testing.T) {
	cfg := fastConfig(2)
	cfg.MaxDelay = 20 * time.Millisecond

	var waits []time.Duration
	cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
		waits = append(waits, delay)
	}

	attempts := 0
	_ = WithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			return &HTTPError{StatusCode: 429, RetryAfter: time.Hour}
		}
		return nil
	})

	if len(waits) != 1 || waits[0] != 20*time.Millisecond {
		t.Errorf("expected the hint capped at 20ms, got %v", waits)
	}
}

type statusOnly int

func (s statusOnly) Error() string    { return fmt.Sprintf("status %d", int(s)) }
func (s statusOnly) HTTPStatus() int { return int(s) }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil error", err: nil, retryable: false},
		{name: "context canceled", err: context.Canceled, retryable: false},
		{name: "context deadline exceeded", err: context.DeadlineExceeded, retryable: false},
		{name: "HTTP 500 error", err: &HTTPError{StatusCode: 500}, retryable: true},
		{name: "HTTP 502 error", err: &HTTPError{StatusCode: 502}, retryable: true},
		{name: "HTTP 503 error", err: &HTTPError{StatusCode: 503}, retryable: true},
		{name: "HTTP 429 error", err: &HTTPError{StatusCode: 429}, retryable: true},
		{name: "HTTP 408 error", err: &HTTPError{StatusCode: 408}, retryable: true},
		{name: "HTTP 400 error", err: &HTTPError{StatusCode: 400}, retryable: false},
		{name: "HTTP 404 error", err: &HTTPError{StatusCode: 404}, retryable: false},
		{name: "wrapped HTTP 503", err: fmt.Errorf("fetch tags: %w", &HTTPError{StatusCode: 503}), retryable: true},
		{name: "custom status coder 504", err: statusOnly(504), retryable: true},
		{name: "custom status coder 403", err: statusOnly(403), retryable: false},
		{name: "ECONNREFUSED", err: syscall.ECONNREFUSED, retryable: true},
		{name: "ECONNRESET", err: syscall.ECONNRESET, retryable: true},
		{name: "ETIMEDOUT", err: syscall.ETIMEDOUT, retryable: true},
		{name: "ENETUNREACH", err: syscall.ENETUNREACH, retryable: true},
		{name: "generic error", err: errors.New("some error"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "cloud api", cfg: CloudAPIConfig()},
		{name: "single attempt", cfg: SingleAttemptConfig()},
		{name: "zero attempts", cfg: Config{MaxAttempts: 0}, wantErr: true},
		{name: "negative delay", cfg: Config{MaxAttempts: 2, InitialDelay: -1, Multiplier: 2}, wantErr: true},
		{name: "shrinking multiplier", cfg: Config{MaxAttempts: 2, Multiplier: 0.5}, wantErr: true},
		{name: "jitter above one", cfg: Config{MaxAttempts: 2, Multiplier: 2, JitterFraction: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloudAPIConfig(t *testing.T) {
	cfg := CloudAPIConfig()

	if cfg.MaxAttempts != 4 {
		t.Errorf("expected MaxAttempts=4, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected InitialDelay=500ms, got %v", cfg.InitialDelay)
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	expected := "HTTP 500: Internal Server Error"

	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestAddJitter(t *testing.T) {
	duration := 100 * time.Millisecond

	results := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		result := addJitter(duration, 0.2)

		maxDuration := time.Duration(float64(duration) * 1.2)
		if result < duration || result > maxDuration {
			t.Errorf("expected result between %v and %v, got %v", duration, maxDuration, result)
		}
		results[result] = true
	}

	if len(results) < 2 {
		t.Error("expected jitter to produce varied results")
	}
}

func TestAddJitter_ZeroFraction(t *testing.T) {
	duration := 100 * time.Millisecond
	if result := addJitter(duration, 0.0); result != duration {
		t.Errorf("expected no jitter with fraction=0, got %v instead of %v", result, duration)
	}
}
