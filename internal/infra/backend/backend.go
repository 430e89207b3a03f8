// Package backend talks to the remote commerce platform.
//
// This package contains:
//   - Caller: transport-neutral query interface used by the domain wrappers
//   - HTTPCaller: GraphQL over HTTP
//   - GRPCCaller: the same queries over a gRPC gateway
//   - Monitor: latency, error rate and throttle tracking per caller
//
// Every failure is returned as a descriptive error. Messages prefixed with
// "storefront" come from the platform itself; transport failures are
// prefixed with "fetch" so that they classify as network failures.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the platform reports no such resource.
var ErrNotFound = errors.New("not found")

// Request is one query against the platform.
type Request struct {
	// Operation names the call for metrics and error messages.
	Operation string
	Query     string
	Variables map[string]any
}

// Response carries the raw "data" member of a successful reply.
type Response struct {
	Data json.RawMessage
}

// Decode unmarshals the response data into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("storefront: empty response")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("storefront: decode response: %w", err)
	}
	return nil
}

// Caller executes queries against the platform.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)

	// Ping checks that the platform is reachable.
	Ping(ctx context.Context) error

	// Stats reports the caller's health.
	Stats() Stats

	Close() error
}

// Error is a failure reported by the platform.
type Error struct {
	Transport  string
	Operation  string
	StatusCode int
	Message    string
	Delay      time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := "storefront"
	if e.Operation != "" {
		msg += " " + e.Operation
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Delay > 0 {
		msg += fmt.Sprintf(", retry after %d", int(e.Delay.Seconds()))
	}
	return msg
}

// RetryAfter returns the server-provided retry delay, zero when absent.
func (e *Error) RetryAfter() time.Duration {
	return e.Delay
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fetchError wraps a transport failure.
func fetchError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: timeout: %w", op, err)
	}
	return fmt.Errorf("fetch %s: network error: %w", op, err)
}

// statusMessage returns the descriptive text used for an HTTP status.
func statusMessage(code int) string {
	switch {
	case code == 401:
		return "unauthorized"
	case code == 403:
		return "forbidden"
	case code == 404:
		return "not found"
	case code == 429:
		return "rate limited, too many requests"
	case code == 500:
		return "internal server error"
	case code == 502:
		return "bad gateway, temporarily unavailable"
	case code == 503:
		return "service unavailable"
	case code == 504:
		return "gateway timeout, temporarily unavailable"
	case code >= 500:
		return "server error, temporarily unavailable"
	default:
		return "unexpected status"
	}
}
