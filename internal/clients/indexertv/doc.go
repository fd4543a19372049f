// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package indexertv wraps the Sonarr API surface arrwatch needs: series
// lookup for correlation and library-sync backfill, and series and
// episode-file delete-by-id for the deletion orchestrator (§4H, §4K).
package indexertv
