// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a domain event that drives a request or episode transition.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvApproved
	EvGrabbed
	EvDownloadStarted
	EvDownloaded
	EvImporting
	EvAnimeMatching
	EvAvailable
	EvFailed
	EvRetry
)

// Event carries optional context for a transition (the human-readable
// detail recorded on the resulting TimelineEvent).
type Event struct {
	Kind   EventKind
	Detail string
}
