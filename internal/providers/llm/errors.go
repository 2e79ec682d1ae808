package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// httpError keeps the status code so call sites can tell transient
// backend failures (retryable) from permanent ones (auth, bad request).
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

func newHTTPError(status int, body []byte) *httpError {
	return &httpError{status: status, body: string(body)}
}

// IsRetryable classifies provider errors. Network failures, timeouts,
// rate limiting and server errors are transient; everything else
// (invalid key, malformed request) is permanent.
func IsRetryable(err error) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.status == http.StatusTooManyRequests:
			return true
		case httpErr.status == http.StatusRequestTimeout:
			return true
		case httpErr.status >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unclassified errors (connection resets wrapped by net/http, EOF
	// on truncated bodies) default to retryable.
	return true
}
