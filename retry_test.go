package docdedup

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyFunc fails with err for the first failures calls, then succeeds.
func flakyFunc(failures int, err error) (func() (string, error), *int) {
	calls := 0
	return func() (string, error) {
		calls++
		if calls <= failures {
			return "", err
		}
		return "ok", nil
	}, &calls
}

func TestWithRetry(t *testing.T) {
	retryable := &ProviderError{Message: "rate limited", Retryable: true}
	fatal := &ProviderError{Message: "invalid API key", Retryable: false}

	tests := []struct {
		name       string
		maxRetries uint
		failures   int
		err        error
		wantCalls  int
		wantErr    bool
	}{
		{"first attempt succeeds", 3, 0, nil, 1, false},
		{"recovers after retryable failures", 3, 2, retryable, 3, false},
		{"non-retryable stops immediately", 3, 5, fatal, 1, true},
		{"gives up after max retries", 2, 5, retryable, 3, true},
		{"no retries configured", 0, 1, retryable, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RetryConfig{
				MaxRetries: tt.maxRetries,
				BaseDelay:  time.Millisecond,
				MaxDelay:   5 * time.Millisecond,
			}
			fn, calls := flakyFunc(tt.failures, tt.err)

			result, err := WithRetry(context.Background(), cfg, fn)
			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			if tt.wantErr {
				var providerErr *ProviderError
				if !errors.As(err, &providerErr) {
					t.Errorf("expected the last *ProviderError, got %v", err)
				}
				return
			}
			if err != nil || result != "ok" {
				t.Errorf("WithRetry() = %q, %v", result, err)
			}
		})
	}
}

func TestWithRetry_OnRetryHook(t *testing.T) {
	var attempts []uint
	cfg := RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		OnRetry: func(attempt uint, err error) {
			attempts = append(attempts, attempt)
		},
	}

	_, _ = WithRetry(context.Background(), cfg, func() (int, error) {
		return 0, &ProviderError{Message: "busy", Retryable: true}
	})

	if len(attempts) < 2 || attempts[0] != 0 {
		t.Errorf("Expected OnRetry for every failed attempt starting at 0, got %v", attempts)
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second, // Long delay
		MaxDelay:   10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, cfg, func() (string, error) {
		callCount++
		return "", &ProviderError{Message: "rate limited", Retryable: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"retryable provider error", &ProviderError{Retryable: true}, true},
		{"non-retryable provider error", &ProviderError{Retryable: false}, false},
		{"generic error", errors.New("some error"), false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"wrapped retryable", &JobError{Cause: &ProviderError{Retryable: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryable(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", cfg.MaxRetries)
	}

	if cfg.BaseDelay != 1*time.Second {
		t.Errorf("Expected BaseDelay 1s, got %v", cfg.BaseDelay)
	}

	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("Expected MaxDelay 30s, got %v", cfg.MaxDelay)
	}
}

type failingProvider struct {
	failCount int
	callCount int
}

func (p *failingProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	p.callCount++
	if p.callCount <= p.failCount {
		return nil, &ProviderError{Message: "temporary failure", Retryable: true}
	}
	return []string{"translated"}, nil
}

func TestRetryableProvider(t *testing.T) {
	inner := &failingProvider{failCount: 2}
	var retried []uint
	p := NewRetryableProvider(inner, RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		OnRetry:    func(attempt uint, err error) { retried = append(retried, attempt) },
	})

	result, err := p.Translate(context.Background(), TranslateRequest{Texts: []string{"hello"}, TargetLang: "es_ES"})
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if len(result) != 1 || result[0] != "translated" {
		t.Errorf("unexpected result: %v", result)
	}
	if inner.callCount != 3 {
		t.Errorf("expected 3 calls, got %d", inner.callCount)
	}
	if len(retried) != 2 {
		t.Errorf("expected OnRetry twice, got %v", retried)
	}
}
