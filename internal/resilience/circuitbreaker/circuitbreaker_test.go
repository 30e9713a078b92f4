package circuitbreaker

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func testConfig() Config {
	return Config{
		Name:             "test-circuit",
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func TestNew(t *testing.T) {
	cb := New(testConfig())

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(testConfig())

	result, err := cb.Execute(func() (interface{}, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected result='success', got %v", result)
	}
}

func TestCircuitBreaker_Execute_Failure(t *testing.T) {
	cb := New(testConfig())

	testErr := errors.New("test error")
	result, err := cb.Execute(func() (interface{}, error) {
		return nil, testErr
	})

	if err != testErr {
		t.Errorf("expected error=%v, got %v", testErr, err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = time.Second

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	var logs bytes.Buffer
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, testErr
		})
	}

	if !cb.IsOpen() {
		t.Fatalf("expected state=Open after 5 failures, got %v", cb.State())
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected one transition to open, got %v", transitions)
	}
	if !strings.Contains(logs.String(), "circuit=test-circuit from=closed to=open") {
		t.Errorf("expected the transition to be logged, got %q", logs.String())
	}

	_, err := cb.Execute(func() (interface{}, error) {
		t.Error("function should not be called when circuit is open")
		return nil, nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected gobreaker.ErrOpenState to stay in the chain, got %v", err)
	}
}

func TestCircuitBreaker_IsFailureFiltersErrors(t *testing.T) {
	notFound := errors.New("not found")
	cfg := testConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, notFound) }
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, notFound
		})
		if err != notFound {
			t.Fatalf("request %d: expected the caller's error, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected ignored errors to keep the circuit closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequests = 2
	cfg.Timeout = 100 * time.Millisecond
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, testErr
		})
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("circuit should be open, got %v", cb.State())
	}

	time.Sleep(150 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) {
		return "success", nil
	})
	if err != nil {
		t.Errorf("expected success in half-open state, got %v", err)
	}
	if cb.State() == gobreaker.StateOpen {
		t.Errorf("circuit should not be open after successful half-open request, got %v", cb.State())
	}
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 0.5
	cfg.MinRequests = 10
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, testErr
		})
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed (below MinRequests), got %v", cb.State())
	}
}

func TestDo(t *testing.T) {
	cb := New(testConfig())

	n, err := Do(cb, func() (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Errorf("Do() = %d, %v; want 42, nil", n, err)
	}

	testErr := errors.New("boom")
	n, err = Do(cb, func() (int, error) { return 0, testErr })
	if err != testErr || n != 0 {
		t.Errorf("Do() = %d, %v; want 0, %v", n, err, testErr)
	}

	got, err := Do(cb, func() (fmt.Stringer, error) { return nil, nil })
	if err != nil || got != nil {
		t.Errorf("Do() with nil interface result = %v, %v", got, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := CloudAPIConfig().Validate(); err != nil {
		t.Errorf("CloudAPIConfig().Validate() = %v", err)
	}
	if err := DefaultConfig("x").Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}

	bad := CloudAPIConfig()
	bad.FailureThreshold = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero failure threshold")
	}

	bad = CloudAPIConfig()
	bad.Name = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestCloudAPIConfig(t *testing.T) {
	cfg := CloudAPIConfig()

	if cfg.Name != "cloud-api" {
		t.Errorf("expected Name='cloud-api', got %q", cfg.Name)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout=30s, got %v", cfg.Timeout)
	}
}
