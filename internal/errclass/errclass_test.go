package errclass

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr struct {
	status int
	msg    string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) HTTPStatus() int { return e.status }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"network timeout message", errors.New("network timeout"), KindNetwork, true},
		{"fetch failure", errors.New("failed to fetch posts"), KindNetwork, true},
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork, true},
		{"plain timeout", errors.New("request timed out"), KindTimeout, true},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout, true},
		{"insufficient permissions", errors.New("Insufficient permissions"), KindPermission, false},
		{"unauthorized", errors.New("unauthorized: token expired"), KindPermission, false},
		{"validation message", errors.New("validation failed: slug is required"), KindValidation, false},
		{"invalid field", errors.New("invalid slug"), KindValidation, false},
		{"status 401", &statusErr{401, "denied"}, KindPermission, false},
		{"status 403", &statusErr{403, "denied"}, KindPermission, false},
		{"status 404", &statusErr{404, "missing"}, KindServer, false},
		{"status 422", &statusErr{422, "unprocessable"}, KindValidation, false},
		{"status 500", &statusErr{500, "boom"}, KindServer, true},
		{"status 503", &statusErr{503, "unavailable"}, KindServer, true},
		{"status 504", &statusErr{504, "gateway"}, KindTimeout, true},
		{"anything else", errors.New("weird failure"), KindUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(tt.err)
			if rec == nil {
				t.Fatal("Expected non-nil record")
			}
			if rec.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, rec.Kind)
			}
			if rec.Retryable != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, rec.Retryable)
			}
			if rec.UserMessage == "" {
				t.Error("Expected a user-facing message")
			}
			if rec.UserMessage == rec.Message {
				t.Error("Expected user message distinct from technical message")
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if rec := Classify(nil); rec != nil {
		t.Errorf("Expected nil record for nil error, got %+v", rec)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	rec := Classify(errors.New("network down"))
	again := Classify(rec)
	if again != rec {
		t.Error("Expected re-classification to return the same record")
	}
}

func TestClassifyWrappedStatus(t *testing.T) {
	err := fmt.Errorf("mutate call: %w", &statusErr{500, "internal"})
	rec := Classify(err)
	if rec.Kind != KindServer {
		t.Errorf("Expected wrapped status error to classify as server, got %s", rec.Kind)
	}
	if !rec.Retryable {
		t.Error("Expected 5xx to be retryable")
	}
}

func TestRecordError(t *testing.T) {
	rec := Classify(errors.New("Insufficient permissions"))
	if rec.Error() != "permission: Insufficient permissions" {
		t.Errorf("Unexpected Error() string: %s", rec.Error())
	}
	if rec.Unwrap() == nil {
		t.Error("Expected record to unwrap to its cause")
	}
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), policy, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("network glitch")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("non-retryable fails immediately", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), policy, func(ctx context.Context) error {
			attempts++
			return errors.New("Insufficient permissions")
		})
		if err == nil {
			t.Fatal("Expected error")
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
		}

		var rec *Record
		if !errors.As(err, &rec) || rec.Kind != KindPermission {
			t.Errorf("Expected permission record, got %v", err)
		}
	})

	t.Run("attempt budget is capped", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), policy, func(ctx context.Context) error {
			attempts++
			return errors.New("network glitch")
		})
		if err == nil {
			t.Fatal("Expected error after exhausting attempts")
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		err := Retry(ctx, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute, Multiplier: 2.0}, func(ctx context.Context) error {
			attempts++
			return errors.New("network glitch")
		})
		if err == nil {
			t.Fatal("Expected error")
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
		}
	})
}
