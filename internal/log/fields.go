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

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Domain entity fields
	FieldSourceID   = "source_id"
	FieldSourceKind = "source_kind"
	FieldVideoID    = "video_id"
	FieldPageID     = "page_id"
	FieldBvid       = "bvid"
	FieldAria2GID   = "aria2_gid"
	FieldInstanceID = "instance_id"

	// State fields
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldStatusWord = "status_word"

	// Path / URL fields
	FieldPath      = "path"
	FieldBaseURL   = "base_url"
	FieldFinalPath = "final_path"
)
