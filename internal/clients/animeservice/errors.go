// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animeservice

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid anime service configuration")
	ErrNoConnection  = errors.New("failed to connect to anime service")
)

// APIError represents an anime service API error response.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("animeservice API error: status %d: %s", e.StatusCode, e.Message)
}
