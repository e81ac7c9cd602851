package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrSessionExpired is returned when a token refresh fails and the local
// session has been cleared. Callers should send the user back to login.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is the uniform failure shape for every request, whether the
// failure came from an HTTP error body, a timeout, or a dead connection.
// Callers never see raw transport errors.
type APIError struct {
	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int
	Message    string
	// Errors holds field-level validation messages keyed by field name.
	Errors map[string][]string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}

	var b strings.Builder
	b.WriteString(e.Message)
	for field, msgs := range e.Errors {
		b.WriteString(fmt.Sprintf("; %s: %s", field, strings.Join(msgs, ", ")))
	}
	return b.String()
}

// Transport reports whether the failure never produced an HTTP response.
func (e *APIError) Transport() bool {
	return e.StatusCode == 0
}

// normalizeTransportError maps a request error to an APIError with a
// user-facing message.
func normalizeTransportError(err error) *APIError {
	if isTimeout(err) {
		return &APIError{Message: "Request timeout. Please try again."}
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return &APIError{Message: "Cannot reach the server. Please check your network."}
	}

	// url.Error wraps everything the http client returns; unwrap so the
	// message does not leak method and full URL noise.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &APIError{Message: urlErr.Err.Error()}
	}

	return &APIError{Message: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
