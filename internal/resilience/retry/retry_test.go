package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// recordSleeps replaces the package sleep for the duration of a test.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       100 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestWithBackoff_Success(t *testing.T) {
	waits := recordSleeps(t)
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 || len(*waits) != 0 {
		t.Errorf("expected 1 attempt and no waits, got %d / %v", attempts, *waits)
	}
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	waits := recordSleeps(t)
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
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
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if fmt.Sprint(*waits) != fmt.Sprint(want) {
		t.Errorf("waits = %v, want %v", *waits, want)
	}
}

func TestWithBackoff_MaxAttemptsExceeded(t *testing.T) {
	recordSleeps(t)
	attempts := 0
	last := &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return last
	})
	if !errors.Is(err, last) {
		t.Errorf("expected wrapped last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	recordSleeps(t)
	attempts := 0
	badRequest := &HTTPError{StatusCode: 401, Message: "apiKeyInvalid"}
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return badRequest
	})
	if err != badRequest {
		t.Errorf("expected the 401 error unchanged, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_RetryAfterHonoured(t *testing.T) {
	waits := recordSleeps(t)
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	_ = WithBackoff(context.Background(), cfg, func() error {
		return &HTTPError{StatusCode: 429, RetryAfter: 50 * time.Millisecond}
	})
	if len(*waits) != 1 || (*waits)[0] != 50*time.Millisecond {
		t.Errorf("waits = %v, want [50ms]", *waits)
	}

	*waits = nil
	_ = WithBackoff(context.Background(), cfg, func() error {
		return &HTTPError{StatusCode: 429, RetryAfter: time.Hour}
	})
	if len(*waits) != 1 || (*waits)[0] != cfg.MaxDelay {
		t.Errorf("Retry-After must be capped at MaxDelay, waits = %v", *waits)
	}
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	recordSleeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithBackoff(ctx, fastConfig(), func() error {
		attempts++
		cancel()
		return syscall.ECONNRESET
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", fmt.Errorf("search: %w", context.DeadlineExceeded), false},
		{"HTTP 500", &HTTPError{StatusCode: 500}, true},
		{"HTTP 503", &HTTPError{StatusCode: 503}, true},
		{"HTTP 429", &HTTPError{StatusCode: 429}, true},
		{"HTTP 408", &HTTPError{StatusCode: 408}, true},
		{"HTTP 400", &HTTPError{StatusCode: 400}, false},
		{"HTTP 401", &HTTPError{StatusCode: 401}, false},
		{"wrapped HTTP 502", fmt.Errorf("newsapi: %w", &HTTPError{StatusCode: 502}), true},
		{"ECONNREFUSED", syscall.ECONNREFUSED, true},
		{"ECONNRESET", syscall.ECONNRESET, true},
		{"ETIMEDOUT", syscall.ETIMEDOUT, true},
		{"ENETUNREACH", syscall.ENETUNREACH, true},
		{"breaker open", gobreaker.ErrOpenState, false},
		{"breaker half-open limit", gobreaker.ErrTooManyRequests, false},
		{"permanent 503", Permanent(&HTTPError{StatusCode: 503}), false},
		{"generic error", errors.New("some error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestNewHTTPError(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	e := NewHTTPError(resp, "rateLimited")
	if e.StatusCode != 429 || e.RetryAfter != 7*time.Second {
		t.Errorf("NewHTTPError() = %+v", e)
	}
	if e.Error() != "HTTP 429: rateLimited" {
		t.Errorf("Error() = %q", e.Error())
	}

	resp.Header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	if e := NewHTTPError(resp, ""); e.RetryAfter != 0 {
		t.Errorf("HTTP-date Retry-After is ignored, got %v", e.RetryAfter)
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
	inner := errors.New("bad key")
	if !errors.Is(Permanent(inner), inner) {
		t.Error("Permanent must unwrap to the original error")
	}
}

func TestProfiles(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default": DefaultConfig(),
		"search":  SearchConfig(),
		"ai":      AIAPIConfig(),
		"page":    ArticlePageConfig(),
	} {
		if cfg.MaxAttempts < 1 || cfg.InitialDelay <= 0 || cfg.MaxDelay < cfg.InitialDelay {
			t.Errorf("%s: inconsistent config %+v", name, cfg)
		}
	}
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := addJitter(base, 0.1)
		if got < base || got > base+10*time.Millisecond {
			t.Fatalf("addJitter() = %v outside [100ms, 110ms]", got)
		}
	}
	if addJitter(base, 0) != base {
		t.Error("zero fraction must not change the delay")
	}
}
