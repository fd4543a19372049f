// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID       = "session_id"
	FieldCorrelationID   = "correlation_id"
	FieldRequestID       = "request_id"
	FieldClientRequestID = "client_request_id"
	FieldJobID           = "job_id"
	FieldEpisodeID       = "episode_id"
	FieldDeletionLogID   = "deletion_log_id"
	FieldServiceRef      = "service_ref"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldSource    = "source"

	// Media identity fields
	FieldMediaKind       = "media_kind"
	FieldContentHash     = "content_hash"
	FieldRequestManager  = "request_manager_id"
	FieldTVDBID          = "tvdb_id"
	FieldContentDBID     = "content_db_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath      = "path"
	FieldBaseURL   = "base_url"
	FieldFinalPath = "final_path"
)
