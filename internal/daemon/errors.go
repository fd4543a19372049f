// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when Deps.Logger is disabled (its level is
	// zerolog.Disabled, as with zerolog.Nop()).
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingHandler is returned when Deps.Handler is nil.
	ErrMissingHandler = errors.New("http handler is required")

	// ErrAlreadyStarted is returned when Start is called twice on the same Daemon.
	ErrAlreadyStarted = errors.New("daemon already started")

	// ErrNotStarted reports a Daemon that has not been started. No Daemon
	// method returns it: Shutdown before Start runs the registered hooks.
	ErrNotStarted = errors.New("daemon not started")
)
