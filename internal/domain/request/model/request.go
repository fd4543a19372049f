// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// MediaRequest is the logical unit a user asked for (§3).
type MediaRequest struct {
	ID int64 `json:"id"`

	// Correlation ids. All nullable except ID.
	RequestManagerID string `json:"requestManagerId,omitempty"`
	ContentDBID      string `json:"contentDbId,omitempty"`
	TVDBID           string `json:"tvdbId,omitempty"`
	IndexerMoviesID  string `json:"indexerMoviesId,omitempty"`
	IndexerTVID      string `json:"indexerTvId,omitempty"`
	ContentHash      string `json:"contentHash,omitempty"`
	MediaServerID    string `json:"mediaServerId,omitempty"`

	Kind    MediaKind `json:"kind"`
	IsAnime Tristate  `json:"isAnime"`

	Title           string `json:"title"`
	Year            int    `json:"year,omitempty"`
	PosterURL       string `json:"posterUrl,omitempty"`
	RequestedBy     string `json:"requestedBy,omitempty"`
	Quality         string `json:"quality,omitempty"`
	IndexerLabel    string `json:"indexerLabel,omitempty"`
	SeasonLabel     string `json:"seasonLabel,omitempty"`
	FileSizeBytes   int64  `json:"fileSizeBytes,omitempty"`
	ReleaseGroup    string `json:"releaseGroup,omitempty"`

	State State `json:"state"`

	// SourceMarker records the mechanism that created this row. Empty for
	// ordinary ingest-created requests; "library_sync" for §4K backfill rows.
	SourceMarker string `json:"sourceMarker,omitempty"`

	FinalPath string `json:"finalPath,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	AvailableAt *time.Time `json:"availableAt,omitempty"`
}

// IsActive reports whether r belongs to the active set used by the
// correlator (§4B): every non-terminal request, nothing else.
func (r *MediaRequest) IsActive() bool {
	return !r.State.IsTerminal()
}

// InferAnime applies the "is_anime becomes true iff any signal is positive"
// bypass rule from §4C when the classification is still unknown.
func (r *MediaRequest) InferAnime(signal bool) {
	if r.IsAnime != TristateUnknown {
		return
	}
	if signal {
		r.IsAnime = TristateTrue
	} else {
		r.IsAnime = TristateFalse
	}
}
