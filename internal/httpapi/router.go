// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpapi wires the inbound webhook endpoints and the dashboard API
// (§6) onto a chi router built from the canonical middleware stack.
package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/auth"
	"github.com/arrwatch/arrwatch/internal/control/middleware"
	"github.com/arrwatch/arrwatch/internal/deletion"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/health"
	"github.com/arrwatch/arrwatch/internal/ingest"
	"github.com/arrwatch/arrwatch/internal/librarysync"
	"github.com/arrwatch/arrwatch/internal/ratelimit"
)

// Deps collects everything the router needs to construct its handlers.
type Deps struct {
	Store          *store.Store
	Bus            ports.Bus
	Deletion       *deletion.Orchestrator
	LibrarySync    *librarysync.Syncer
	Health         *health.Manager
	AdminGate      *auth.AdminGate
	AdminRateLimit *ratelimit.Limiter
	RequestMgr     *ingest.RequestManagerHandler
	IndexerMov     *ingest.IndexerMoviesHandler
	IndexerTV      *ingest.IndexerTVHandler
	TorrentCli     *ingest.TorrentClientHandler
	MediaSrv       *ingest.MediaServerHandler
	SSEHeartbeat   time.Duration
	Middleware     middleware.StackConfig
	Logger         zerolog.Logger
}

// NewRouter builds the full chi router. Inbound webhooks (/hooks) are
// server-to-server POSTs with no Origin/Referer header, so they are mounted
// outside CSRF protection; the dashboard/admin API (/api) gets CSRF and, on
// its admin-gated group, rate limiting (§6).
func NewRouter(deps Deps) *chi.Mux {
	r := middleware.NewRouter(deps.Middleware)
	api := &api{deps: deps}

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.ServeHealth)
		r.Get("/readyz", deps.Health.ServeReady)
	}

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/request-manager", api.hookRequestManager)
		r.Post("/indexer-movies", api.hookIndexerMovies)
		r.Post("/indexer-tv", api.hookIndexerTV)
		r.Post("/torrent-client", api.hookTorrentClient)
		r.Post("/media-server", api.hookMediaServer)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CSRFProtection(deps.Middleware.AllowedOrigins))

		r.Get("/requests", api.listRequests)
		r.Get("/requests/{id}", api.getRequest)
		r.Get("/sse", api.sse)

		r.Group(func(r chi.Router) {
			r.Use(api.requireAdmin)
			if deps.AdminRateLimit != nil {
				r.Use(deps.AdminRateLimit.Middleware())
			}
			r.Post("/requests/{id}/delete", api.deleteRequest)
			r.Post("/requests/bulk-delete", api.bulkDeleteRequests)
			r.Get("/deletion-logs", api.listDeletionLogs)
			r.Post("/admin/sync/library", api.syncLibrary)
		})
	})

	return r
}

type api struct {
	deps Deps
}
