// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// NewRequest initializes a MediaRequest in REQUESTED, the entry state for
// every ingest path except library-sync backfill (§4C, §4K).
func NewRequest(now time.Time) *model.MediaRequest {
	return &model.MediaRequest{
		State:     model.StateRequested,
		IsAnime:   model.TristateUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewBackfilledRequest initializes a MediaRequest created directly from a
// library-sync scan rather than a live request (§4K). It starts in AVAILABLE
// since the title is already present on the media server.
func NewBackfilledRequest(now time.Time) *model.MediaRequest {
	return &model.MediaRequest{
		State:        model.StateAvailable,
		IsAnime:      model.TristateUnknown,
		SourceMarker: "library_sync",
		CreatedAt:    now,
		UpdatedAt:    now,
		AvailableAt:  &now,
	}
}

// NewEpisode initializes an Episode directly in GRABBING; episodes never pass
// through REQUESTED/APPROVED, since approval happens at the request level
// (§4C).
func NewEpisode(requestID int64, season, episode int, now time.Time) *model.Episode {
	return &model.Episode{
		RequestID: requestID,
		Season:    season,
		Episode:   episode,
		State:     model.StateGrabbing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
