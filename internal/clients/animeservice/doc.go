// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package animeservice is a hand-written HTTP client for the anime
// metadata service's (Shoko-shaped) REST API: import-folder metadata
// lookups that feed the correlator's path-resolution rule (§4B) through
// internal/cache. The service's event stream is a separate concern,
// handled by internal/animehub.
package animeservice
