// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package mediaserver is a hand-written HTTP client for the media server's
// API (Jellyfin-shaped): provider-ID item search and playable-hit detection
// for the verifier (§4G), library rescan triggers for the deletion
// orchestrator and library-sync, bulk item enumeration for library-sync's
// backfill pass (§4K), and user-auth validation for the admin gate (§4J).
package mediaserver
