// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package requestmanager is a hand-written HTTP client for the request
// manager's API. arrwatch's only outbound call is deleting a request by id
// as part of the deletion orchestrator's fan-out (§4H, §6); the webhook
// inbound side is handled entirely by internal/ingest.
package requestmanager
