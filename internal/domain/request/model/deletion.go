// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// DeletionLog is a snapshot-plus-progress record for one deletion (§3).
// Independent of the MediaRequest: the request row is hard-deleted, the log
// survives for audit.
type DeletionLog struct {
	ID int64 `json:"id"`

	// Snapshot of the request at deletion-initiation time.
	SnapshotTitle       string    `json:"snapshotTitle"`
	SnapshotKind        MediaKind `json:"snapshotKind"`
	SnapshotYear        int       `json:"snapshotYear,omitempty"`
	SnapshotPosterURL   string    `json:"snapshotPosterUrl,omitempty"`
	SnapshotRequestManagerID string `json:"snapshotRequestManagerId,omitempty"`
	SnapshotContentDBID      string `json:"snapshotContentDbId,omitempty"`
	SnapshotTVDBID           string `json:"snapshotTvdbId,omitempty"`
	SnapshotIndexerMoviesID  string `json:"snapshotIndexerMoviesId,omitempty"`
	SnapshotIndexerTVID      string `json:"snapshotIndexerTvId,omitempty"`
	SnapshotContentHash      string `json:"snapshotContentHash,omitempty"`
	SnapshotMediaServerID    string `json:"snapshotMediaServerId,omitempty"`

	Source DeletionSource `json:"source"`

	ActorID          string `json:"actorId,omitempty"`
	ActorDisplayName string `json:"actorDisplayName"`

	DeleteFiles bool `json:"deleteFiles"`

	InitiatedAt time.Time  `json:"initiatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Status DeletionLogStatus `json:"status"`
}

// DeletionSyncEvent is one row per service state step within a DeletionLog
// (§3). Append-ordered per service.
type DeletionSyncEvent struct {
	ID            int64 `json:"id"`
	DeletionLogID int64 `json:"deletionLogId"`

	Service SyncService `json:"service"`
	Status  SyncStatus  `json:"status"`
	Detail  string      `json:"detail,omitempty"`
	Err     string      `json:"error,omitempty"`
	RawResponse string   `json:"rawResponse,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
