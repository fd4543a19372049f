// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/arrwatch/arrwatch/internal/domain/request/model"

// Transition is a single allowed edge in the lifecycle state machine (§4C).
type Transition struct {
	From  model.State
	To    model.State
	Event EventKind
}

var transitionsTable = []Transition{
	{From: model.StateRequested, To: model.StateApproved, Event: EvApproved},
	{From: model.StateRequested, To: model.StateFailed, Event: EvFailed},

	{From: model.StateApproved, To: model.StateGrabbing, Event: EvGrabbed},
	{From: model.StateApproved, To: model.StateFailed, Event: EvFailed},

	{From: model.StateGrabbing, To: model.StateDownloading, Event: EvDownloadStarted},
	{From: model.StateGrabbing, To: model.StateFailed, Event: EvFailed},

	{From: model.StateDownloading, To: model.StateDownloaded, Event: EvDownloaded},
	{From: model.StateDownloading, To: model.StateFailed, Event: EvFailed},

	{From: model.StateDownloaded, To: model.StateImporting, Event: EvImporting},
	{From: model.StateDownloaded, To: model.StateAnimeMatching, Event: EvAnimeMatching},
	{From: model.StateDownloaded, To: model.StateFailed, Event: EvFailed},

	{From: model.StateImporting, To: model.StateAnimeMatching, Event: EvAnimeMatching},
	{From: model.StateImporting, To: model.StateAvailable, Event: EvAvailable},
	{From: model.StateImporting, To: model.StateFailed, Event: EvFailed},

	{From: model.StateAnimeMatching, To: model.StateAvailable, Event: EvAvailable},
	{From: model.StateAnimeMatching, To: model.StateFailed, Event: EvFailed},

	{From: model.StateAvailable, To: model.StateFailed, Event: EvFailed},

	{From: model.StateFailed, To: model.StateApproved, Event: EvRetry},
}

// episodeTransitionsTable is the request table with REQUESTED/APPROVED and
// the FAILED->APPROVED retry edge removed, per §4C ("Episode FSM: identical
// edges except no REQUESTED/APPROVED and no retry"). Episodes are created
// directly in GRABBING.
var episodeTransitionsTable = func() []Transition {
	out := make([]Transition, 0, len(transitionsTable))
	for _, tr := range transitionsTable {
		switch tr.From {
		case model.StateRequested, model.StateApproved, model.StateFailed:
			continue
		}
		out = append(out, tr)
	}
	return out
}()

// TransitionFor returns the allowed transition for a given state+event within
// the request FSM.
func TransitionFor(from model.State, ev EventKind) (Transition, bool) {
	return lookup(transitionsTable, from, ev)
}

// EpisodeTransitionFor returns the allowed transition for a given state+event
// within the episode FSM.
func EpisodeTransitionFor(from model.State, ev EventKind) (Transition, bool) {
	return lookup(episodeTransitionsTable, from, ev)
}

func lookup(table []Transition, from model.State, ev EventKind) (Transition, bool) {
	for _, tr := range table {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
