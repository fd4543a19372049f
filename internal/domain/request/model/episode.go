// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Episode is one row per individual TV episode; never created for movies
// (§3). A season pack shares one ContentHash across all of its Episodes.
type Episode struct {
	ID        int64 `json:"id"`
	RequestID int64 `json:"requestId"`

	Season  int `json:"season"`
	Episode int `json:"episode"`

	Title string `json:"title,omitempty"`

	ContentHash   string `json:"contentHash,omitempty"`
	FinalPath     string `json:"finalPath,omitempty"`
	MediaServerID string `json:"mediaServerId,omitempty"`
	AnimeFileID   string `json:"animeFileId,omitempty"`

	State State `json:"state"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AggregateState implements the episode aggregator (§4D): derives the parent
// MediaRequest's state from the states of its episodes. Callers must feed the
// result through the same state machine validation as any other transition.
func AggregateState(episodes []*Episode) State {
	if len(episodes) == 0 {
		return StateRequested
	}

	allAvailable := true
	anyFailed := false
	bestRank := -1
	bestState := StateGrabbing

	for _, ep := range episodes {
		if ep.State != StateAvailable {
			allAvailable = false
		}
		if ep.State == StateFailed {
			anyFailed = true
		}
		if rank := AggregationRank(ep.State); rank != -1 {
			if bestRank == -1 || rank < bestRank {
				bestRank = rank
				bestState = ep.State
			}
		}
	}

	switch {
	case allAvailable:
		return StateAvailable
	case anyFailed:
		return StateFailed
	case bestRank != -1:
		return bestState
	default:
		return StateGrabbing
	}
}
