// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// DispatchRequest resolves and applies the transition for ev against req's
// current state, using the request FSM table (§4C). It is the single entry
// point ingest adapters and the verifier use to mutate a MediaRequest's
// State; nothing else in the codebase should assign req.State directly.
func DispatchRequest(req *model.MediaRequest, ev Event, now time.Time) (Transition, error) {
	tr, ok := TransitionFor(req.State, ev.Kind)
	if !ok {
		if req.State.IsTerminal() {
			return Transition{}, ErrTerminalState
		}
		return Transition{}, ErrIllegalTransition
	}
	ApplyToRequest(req, tr, now)
	return tr, nil
}

// DispatchEpisode resolves and applies the transition for ev against ep's
// current state, using the episode FSM table (§4C).
func DispatchEpisode(ep *model.Episode, ev Event, now time.Time) (Transition, error) {
	tr, ok := EpisodeTransitionFor(ep.State, ev.Kind)
	if !ok {
		if ep.State.IsTerminal() {
			return Transition{}, ErrTerminalState
		}
		return Transition{}, ErrIllegalTransition
	}
	ApplyToEpisode(ep, tr, now)
	return tr, nil
}
