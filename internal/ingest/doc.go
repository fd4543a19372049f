// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ingest implements the closed set of event-source adapters (§4E,
// §9): one file per external source, each performing the same three-step
// capability — extract the event's identifying fields, correlate it onto an
// active MediaRequest (or Episode), and apply the resulting mutation and
// state transition. The request-manager adapter's media-server id lookup
// runs as a background goroutine. Other outbound calls run inline on the
// ingest path: the correlator's import-folder lookup on a cache miss, and
// the deletion orchestrator's full fan-out when a delete or item-removed
// event starts an external deletion.
package ingest
