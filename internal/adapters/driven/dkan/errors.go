package dkan

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// APIError represents a failed portal request.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dkan: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps status codes onto domain errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return domain.ErrAuthInvalid
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return domain.ErrTransient
	default:
		return nil
	}
}

// IsNotFound checks if the error indicates a missing node or package.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// IsUnauthorized checks if the portal rejected the session.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// isRetryable reports whether a GET may be repeated.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}
