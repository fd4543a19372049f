// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// TimelineEvent is an append-only audit record of one state transition on a
// MediaRequest or one of its Episodes (§3). Immutable once written.
type TimelineEvent struct {
	ID        int64 `json:"id"`
	RequestID int64 `json:"requestId"`
	EpisodeID int64 `json:"episodeId,omitempty"`

	FromState State `json:"fromState"`
	ToState   State `json:"toState"`

	Emitter   string `json:"emitter"`
	EventType string `json:"eventType"`
	Detail    string `json:"detail,omitempty"`

	// IsNew is true only for the synthetic creation event (§3).
	IsNew bool `json:"isNew"`

	CreatedAt time.Time `json:"createdAt"`
}
