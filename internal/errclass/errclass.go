// Package errclass maps arbitrary failures to structured error records.
//
// Classification is a best-effort heuristic over error text and HTTP status.
// Classify never panics: input that matches nothing yields an unknown record.
package errclass

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindServer     Kind = "server"
	KindTimeout    Kind = "timeout"
	KindUnknown    Kind = "unknown"
)

// Record is the structured form of a failure, consumed by UI status
// indicators and by the retry helper.
type Record struct {
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	Code        string `json:"code,omitempty"`
	Retryable   bool   `json:"retryable"`
	Detail      string `json:"detail,omitempty"`

	cause error
}

func (r *Record) Error() string {
	return string(r.Kind) + ": " + r.Message
}

func (r *Record) Unwrap() error {
	return r.cause
}

// StatusCoder is implemented by errors that carry an HTTP status,
// such as the CMS client's APIError.
type StatusCoder interface {
	HTTPStatus() int
}

// Coder is implemented by errors that carry a machine code.
type Coder interface {
	ErrorCode() string
}

var userMessages = map[Kind]string{
	KindNetwork:    "Connection problem. Check your network and try again.",
	KindValidation: "Some fields look invalid. Review the form and resubmit.",
	KindPermission: "You do not have permission to perform this action.",
	KindServer:     "The content service had a problem. Try again shortly.",
	KindTimeout:    "The request took too long. Try again.",
	KindUnknown:    "Something went wrong. Try again.",
}

func newRecord(kind Kind, err error, retryable bool) *Record {
	rec := &Record{
		Kind:        kind,
		Message:     err.Error(),
		UserMessage: userMessages[kind],
		Retryable:   retryable,
		cause:       err,
	}
	var coder Coder
	if errors.As(err, &coder) {
		rec.Code = coder.ErrorCode()
	}
	return rec
}

// Classify converts any error into a Record. A nil error yields nil.
// Re-classifying an already classified error returns it unchanged.
func Classify(err error) *Record {
	if err == nil {
		return nil
	}

	var rec *Record
	if errors.As(err, &rec) {
		return rec
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "fetch", "network", "connection refused", "connection reset", "no such host"):
		return newRecord(KindNetwork, err, true)
	case errors.Is(err, context.DeadlineExceeded) || containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return newRecord(KindTimeout, err, true)
	case containsAny(msg, "permission", "unauthorized", "forbidden", "authorization", "not allowed"):
		return newRecord(KindPermission, err, false)
	case containsAny(msg, "validation", "invalid", "required", "must be"):
		return newRecord(KindValidation, err, false)
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatus(), err)
	}

	return newRecord(KindUnknown, err, true)
}

func classifyStatus(status int, err error) *Record {
	switch {
	case status == 401 || status == 403:
		return newRecord(KindPermission, err, false)
	case status == 404:
		return newRecord(KindServer, err, false)
	case status == 408 || status == 504:
		return newRecord(KindTimeout, err, true)
	case status >= 500:
		return newRecord(KindServer, err, true)
	case status >= 400:
		return newRecord(KindValidation, err, false)
	default:
		return newRecord(KindUnknown, err, true)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RetryPolicy applies a fixed exponential multiplier to a base delay,
// capped by a maximum attempt count.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Multiplier:  2.0,
}

// Retry runs fn until it succeeds, the error classifies as non-retryable,
// the attempt budget is exhausted, or ctx is done. The returned error is
// the last attempt's classified record.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	delay := policy.BaseDelay
	var rec *Record

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		rec = Classify(err)
		if !rec.Retryable || attempt >= policy.MaxAttempts {
			return rec
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return rec
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}
}
