// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package indexermovies wraps the Radarr API surface arrwatch needs: movie
// lookup for correlation and library-sync backfill, and delete-by-id for the
// deletion orchestrator (§4H, §4K).
package indexermovies
