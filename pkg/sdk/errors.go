package autorag

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors matched by APIError. Use errors.Is() to check.
var (
	ErrBadRequest    = errors.New("autorag: bad request")
	ErrNotConfigured = errors.New("autorag: server not configured")
	ErrNotFound      = errors.New("autorag: not found")
	ErrRateLimited   = errors.New("autorag: rate limited")
	ErrUpstream      = errors.New("autorag: upstream model failed")
	ErrUnavailable   = errors.New("autorag: service unavailable")
)

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("autorag: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == ErrBadRequest
	case http.StatusInternalServerError:
		return target == ErrNotConfigured && strings.HasSuffix(e.Message, " missing")
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	case http.StatusBadGateway:
		return target == ErrUpstream
	case http.StatusServiceUnavailable:
		return target == ErrUnavailable
	}
	return false
}

// StreamError is an error frame received mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "autorag: stream failed: " + e.Message
}
