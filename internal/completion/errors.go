package completion

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
)

// Kind classifies completion failures for retry and surfacing decisions.
type Kind int

const (
	KindRateLimit Kind = iota
	KindTimeout
	KindAPI
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api_error"
	case KindUnexpected:
		return "unexpected"
	}
	return "unknown"
}

// Error wraps an upstream failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "completion: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure class is transient enough to retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTimeout
}

// classify maps an arbitrary upstream error onto the failure taxonomy.
func classify(err error) *Error {
	if cerr, ok := err.(*Error); ok {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnexpected, Err: err}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimit, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindAPI, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"):
		return &Error{Kind: KindRateLimit, Err: err}
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return &Error{Kind: KindTimeout, Err: err}
	}

	return &Error{Kind: KindUnexpected, Err: err}
}
