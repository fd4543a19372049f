// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package animehub maintains the one long-lived SignalR-style event feed
// the anime metadata service pushes file/series/episode updates over
// (§5, §6). It is a thin gorilla/websocket client: reconnect with bounded
// backoff, decode each frame, and hand it to a single consumer over a
// bounded queue. Ordering within the feed is preserved by construction —
// there is exactly one reader goroutine draining the connection.
package animehub
