package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// UnavailableError marks a transient failure: the remote endpoint could not
// be reached or answered with a status that signals overload. Callers retry
// with backoff; if retries run out the record fails but the run continues.
type UnavailableError struct {
	Op         string // "create patients", "search patients", ...
	StatusCode int    // 0 for transport-level failures
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote unavailable: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("remote unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError marks a permanent failure: the remote endpoint understood
// the request and refused it. Retrying the same payload cannot succeed, so
// the record fails immediately.
type RejectedError struct {
	Op         string
	StatusCode int
	Body       string // response body, truncated, for the failure report
}

func (e *RejectedError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote rejected: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote rejected: %s: status %d", e.Op, e.StatusCode)
}

// Retryable reports whether an error is worth another attempt.
func Retryable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

// classify converts a non-2xx response into the typed error for its class.
// 429 and every 5xx count as unavailable; the rest of the 4xx range is a
// rejection of this particular payload.
func classify(op string, status int, body string) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return &UnavailableError{Op: op, StatusCode: status}
	}
	return &RejectedError{Op: op, StatusCode: status, Body: body}
}

// transportError wraps connection-level failures (refused, reset, DNS,
// deadline) as unavailable.
func transportError(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
