// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package librarysync implements the library enumeration and backfill job
// (§4K): it walks the media server's catalog and creates a backfilled,
// already-AVAILABLE request for every title arrwatch has no record of, so
// the dashboard reflects a library that existed before arrwatch was pointed
// at it.
package librarysync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/types"
)

// Deps collects the Syncer's dependencies.
type Deps struct {
	Store       *store.Store
	MediaServer *mediaserver.Client
	Bus         ports.Bus
	Audit       *audit.Logger
	Logger      zerolog.Logger
}

// Result summarizes one sync pass, returned to callers that trigger a sync
// on demand (the admin API, §6) and logged by the scheduled runner.
type Result struct {
	Status  types.JobStatus
	Scanned int
	Created int
	Skipped int
	Err     error
}

// Syncer runs the library-sync job.
type Syncer struct {
	deps Deps
}

// New builds a Syncer.
func New(deps Deps) *Syncer {
	return &Syncer{deps: deps}
}

// Sync performs phase 1 of §4K: enumerate every library item and backfill a
// request for any title not already tracked under any state. Phase 2
// (reconciling requests whose backing file disappeared from the library) is
// not implemented; nothing in this corpus's dependency surface gives a
// cheaper signal for that than a second full library diff, so it's left for
// a dedicated job rather than folded into this one.
func (s *Syncer) Sync(ctx context.Context, actor string) Result {
	start := time.Now()
	s.deps.Audit.LibrarySyncStart(actor)
	s.deps.Logger.Info().Str("actor", actor).Msg("librarysync: starting sync")

	items, err := s.deps.MediaServer.ListAllItems(ctx)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("librarysync: failed to list media server items")
		return Result{Status: types.JobStatusFailed, Err: err}
	}

	result := Result{Status: types.JobStatusRunning, Scanned: len(items)}
	for _, item := range items {
		if !item.HasPlayableHit() {
			continue
		}
		created, err := s.backfillItem(ctx, item)
		if err != nil {
			s.deps.Logger.Error().Err(err).Str("item_id", item.ID).Msg("librarysync: failed to backfill item")
			continue
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	result.Status = types.JobStatusCompleted

	durationMS := time.Since(start).Milliseconds()
	s.deps.Audit.LibrarySyncComplete(actor, result.Created, result.Skipped, durationMS)
	s.deps.Logger.Info().Int("scanned", result.Scanned).Int("created", result.Created).
		Int("skipped", result.Skipped).Msg("librarysync: sync complete")

	if result.Created > 0 {
		_ = s.deps.Bus.Publish(ctx, "requests", map[string]any{
			"event_type": "library-sync-complete",
			"created":    result.Created,
		})
	}
	return result
}

// backfillItem creates a request for item unless one already exists for any
// of its provider ids, and reports whether it created a new row.
func (s *Syncer) backfillItem(ctx context.Context, item mediaserver.Item) (bool, error) {
	if !item.HasPlayableHit() {
		return false, nil
	}

	kind, ok := kindFromItemType(item.Type)
	if !ok {
		return false, nil
	}

	if exists, err := s.alreadyTracked(ctx, item); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}

	now := time.Now().UTC()
	req := lifecycle.NewBackfilledRequest(now)
	req.Kind = kind
	req.Title = item.Name
	req.Year = item.ProductionYear
	req.MediaServerID = item.ID
	req.RequestedBy = "system"
	if tmdb, ok := item.ProviderIDs["Tmdb"]; ok {
		req.ContentDBID = tmdb
	}
	if tvdb, ok := item.ProviderIDs["Tvdb"]; ok {
		req.TVDBID = tvdb
	}

	if err := s.deps.Store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			return false, nil
		}
		return false, err
	}
	if err := s.deps.Store.AppendTimelineEvent(ctx, &model.TimelineEvent{
		RequestID: req.ID, FromState: model.State(""), ToState: model.StateAvailable,
		Emitter: "library-sync", EventType: "library-sync.backfilled",
		Detail: "discovered on media server", CreatedAt: now,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// alreadyTracked reports whether a request already exists for item under
// any of its provider ids or its media-server id, regardless of state.
func (s *Syncer) alreadyTracked(ctx context.Context, item mediaserver.Item) (bool, error) {
	checks := []struct {
		column string
		value  string
	}{
		{"media_server_id", item.ID},
		{"content_db_id", item.ProviderIDs["Tmdb"]},
		{"tvdb_id", item.ProviderIDs["Tvdb"]},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		_, err := s.deps.Store.FindByCorrelationID(ctx, c.column, c.value)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
	}
	return false, nil
}

func kindFromItemType(itemType string) (model.MediaKind, bool) {
	switch itemType {
	case "Movie":
		return model.KindMovie, true
	case "Series":
		return model.KindTV, true
	default:
		return "", false
	}
}
