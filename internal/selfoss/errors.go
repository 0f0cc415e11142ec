package selfoss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned when the server answered with an unexpected status.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// NetworkError wraps transport failures: the request never got an HTTP answer.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err means the session is missing or expired.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusForbidden || httpErr.StatusCode == http.StatusUnauthorized
}

// IsNetworkError reports whether err is a connectivity failure worth retrying later.
func IsNetworkError(err error) bool {
	if IsCanceled(err) {
		return false
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsCanceled reports whether err comes from a cancelled or superseded request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
