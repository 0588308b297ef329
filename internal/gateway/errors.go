package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrNoRefreshToken means a refresh was needed but nothing is stored to
	// refresh with. Callers should force a fresh sign-in.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrSessionExpired is returned when a request still gets a 401 after a
	// successful refresh. There is no further retry.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetwork wraps transport-level failures, as opposed to responses the
	// server actually produced.
	ErrNetwork = errors.New("network unavailable")
)

// APIError is a non-2xx response the server produced. Code carries the
// machine-readable error code from the response body when one was sent.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// AsAPIError unwraps err to an APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func wrapTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return err
}
