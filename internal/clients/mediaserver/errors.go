// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid media server configuration")
	ErrNoConnection  = errors.New("failed to connect to media server")
	ErrUnauthorized  = errors.New("unauthorized: invalid media server credential")
	ErrNotFound      = errors.New("media server resource not found")
)

// APIError represents a media server API error response.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediaserver API error: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the error indicates a 404 response.
func (e *APIError) IsNotFound() bool { return e.StatusCode == 404 }

// IsUnauthorized reports whether the error indicates an auth failure.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }
