// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the HTTP server and the background loops (verifier,
// torrent-progress poller, library-sync scheduler) into one process with a
// single graceful-shutdown path.
package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Runnable is a background loop that blocks until ctx is cancelled and then
// returns. The verifier, the progress poller, and the library-sync scheduler
// all implement this.
type Runnable interface {
	Run(ctx context.Context) error
}

// Closer is satisfied by any owned resource (store, bus) that must release
// its handle on shutdown.
type Closer interface {
	Close() error
}

// Deps are the daemon's externally-constructed dependencies. The composition
// root (cmd/server) builds these; daemon only orchestrates their lifecycle.
type Deps struct {
	Logger zerolog.Logger

	// Handler serves the dashboard API, webhook ingest endpoints, and the SSE
	// live-update stream (§4I, §6).
	Handler http.Handler

	// MetricsHandler serves Prometheus scrape requests. Nil disables the
	// metrics server.
	MetricsHandler http.Handler

	// Background holds every long-running loop the daemon owns: the verifier
	// sweep (§4G), the torrent progress poller (§4F), the library-sync
	// scheduler (§4K), and the anime-service hub connection with its event
	// handler. Each runs in its own goroutine under the same
	// errgroup, so a fatal error in any one of them tears the whole process
	// down alongside the HTTP servers.
	Background []Runnable

	// Closers are released in reverse order during shutdown, after the HTTP
	// servers have stopped; shutdown does not wait for the background loops
	// to return first.
	Closers []Closer
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Handler == nil {
		return ErrMissingHandler
	}
	return nil
}
