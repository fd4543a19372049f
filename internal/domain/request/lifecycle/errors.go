// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "errors"

var (
	// ErrIllegalTransition is returned when an event does not have a matching
	// edge in the transitions table for the record's current state (§4C).
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrTerminalState is returned when an event has no edge from a
	// MediaRequest or Episode that has already reached AVAILABLE or FAILED.
	// The edges that do leave those states are AVAILABLE->FAILED and the
	// request-only FAILED->APPROVED retry.
	ErrTerminalState = errors.New("record is in a terminal state")
)
