// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package torrentclient wraps qBittorrent's Web API for the progress
// provider (§4F) and the deletion orchestrator (§4H). The session cookie is
// process-wide; a single-flight lock coordinates re-login so a storm of
// concurrent requests hitting an expired session only re-authenticates once
// (§5).
package torrentclient
