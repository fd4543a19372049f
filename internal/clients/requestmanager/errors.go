// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package requestmanager

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid request manager configuration")
	// ErrNoConnection indicates connection failure during construction.
	ErrNoConnection = errors.New("failed to connect to request manager")
	// ErrUnauthorized indicates authentication failure.
	ErrUnauthorized = errors.New("unauthorized: invalid request manager API key")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("request manager resource not found")
)

// APIError represents a request manager API error response.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("requestmanager API error: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the error indicates a 404 response.
func (e *APIError) IsNotFound() bool { return e.StatusCode == 404 }

// IsUnauthorized reports whether the error indicates an auth failure.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }
