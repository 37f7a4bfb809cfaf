package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx gateway response with its decoded detail message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("gateway error (%d)", e.StatusCode)
}

// IsUnauthorized reports whether err (or any error in its chain) is a 401
// response. An unauthorized response on any authenticated request is the
// sole trigger for forced logout.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsValidation reports whether err is a 4xx response caused by rejected
// input (malformed or incomplete form data) rather than a rejected
// credential or a transport failure.
func IsValidation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Detail returns the server-supplied detail message for an APIError, or a
// fallback description for transport failures.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
