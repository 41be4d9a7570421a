package oaihttp

import (
	"fmt"
)

// HTTPError is a non-2xx reply from the completion provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "completion upstream error"
	}
	if e.Body == "" {
		return fmt.Sprintf("completion upstream error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("completion upstream error: status=%d body=%s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure looks retryable at the transport level.
func (e *HTTPError) Temporary() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
