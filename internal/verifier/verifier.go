// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package verifier implements the stale-request fallback checker (§4G): a
// fixed-cadence sweep that rescues requests stuck in IMPORTING or
// ANIME_MATCHING past the staleness window, by asking the media server
// directly whether the title is already browsable.
package verifier

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/metrics"
)

const emitter = "verifier"

// cycleInterval is the fixed sweep cadence. An adaptive backoff was
// considered and rejected (see DESIGN.md): the staleness window already
// bounds how soon a stuck request gets rescued, so the sweep itself doesn't
// need to adapt.
const cycleInterval = 30 * time.Second

// staleStates are the only states eligible for fallback verification: a
// request waiting on an import or an anime match that the normal
// request-manager "available" webhook never arrived for (§4G).
var staleStates = []model.State{model.StateImporting, model.StateAnimeMatching}

var eventTargets = map[lifecycle.EventKind]model.State{
	lifecycle.EvAvailable: model.StateAvailable,
}

// Deps collects the Verifier's dependencies.
type Deps struct {
	Store                *store.Store
	MediaServer          *mediaserver.Client
	Bus                  ports.Bus
	StalenessWindow      time.Duration
	VFSRegenerationDelay time.Duration
	Logger               zerolog.Logger
}

// Verifier implements daemon.Runnable.
type Verifier struct {
	deps Deps
}

// New builds a Verifier.
func New(deps Deps) *Verifier {
	return &Verifier{deps: deps}
}

// Run sweeps at a fixed cadence until ctx is cancelled.
func (v *Verifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			v.runCycle(ctx)
		}
	}
}

func (v *Verifier) runCycle(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-v.deps.StalenessWindow).Format(time.RFC3339Nano)
	reqs, err := v.deps.Store.ListStaleByStates(ctx, staleStates, cutoff)
	if err != nil {
		v.deps.Logger.Error().Err(err).Msg("verifier: failed to list stale requests")
		return
	}
	if len(reqs) == 0 {
		return
	}

	v.deps.Logger.Info().Int("count", len(reqs)).Msg("verifier: sweeping stale requests")

	if err := v.deps.MediaServer.TriggerLibraryRescan(ctx); err != nil {
		v.deps.Logger.Warn().Err(err).Msg("verifier: library rescan trigger failed")
	} else {
		sleepContext(ctx, v.deps.VFSRegenerationDelay)
	}

	for _, req := range reqs {
		v.verifyRequest(ctx, req)
	}
}

func (v *Verifier) verifyRequest(ctx context.Context, req *model.MediaRequest) {
	item, err := v.lookupItem(ctx, req)
	if err != nil || item == nil || !item.HasPlayableHit() {
		metrics.IncVerifierCycle("miss")
		return
	}
	metrics.IncVerifierCycle("hit")

	req.MediaServerID = item.ID

	episodes, err := v.deps.Store.ListEpisodesByRequest(ctx, req.ID)
	if err != nil {
		v.deps.Logger.Error().Err(err).Int64("request_id", req.ID).Msg("verifier: failed to list episodes")
		return
	}
	for _, ep := range episodes {
		if err := v.transitionEpisode(ctx, ep); err != nil {
			v.deps.Logger.Error().Err(err).Int64("episode_id", ep.ID).Msg("verifier: failed to transition episode")
			return
		}
	}
	if err := v.transitionRequest(ctx, req); err != nil {
		v.deps.Logger.Error().Err(err).Int64("request_id", req.ID).Msg("verifier: failed to transition request")
		return
	}

	v.deps.Logger.Info().Int64("request_id", req.ID).Str("title", req.Title).Msg("verifier: rescued stale request")
	v.broadcast(ctx, req.ID)
}

// lookupItem walks the priority-ordered lookup sequence from §4G: the more
// specific a correlation id and item-type filter, the earlier it is tried,
// falling back to an untyped provider-id match and finally a title+year
// search when no upstream id is available at all.
func (v *Verifier) lookupItem(ctx context.Context, req *model.MediaRequest) (*mediaserver.Item, error) {
	if req.TVDBID != "" {
		if item, err := v.deps.MediaServer.SearchByProviderIDAndType(ctx, "Tvdb", req.TVDBID, "Series"); err == nil {
			return item, nil
		} else if !errors.Is(err, mediaserver.ErrNotFound) {
			v.deps.Logger.Debug().Err(err).Int64("request_id", req.ID).Msg("verifier: tvdb lookup failed")
		}
	}
	if req.ContentDBID != "" {
		if item, err := v.deps.MediaServer.SearchByProviderIDAndType(ctx, "Tmdb", req.ContentDBID, "Movie"); err == nil {
			return item, nil
		} else if !errors.Is(err, mediaserver.ErrNotFound) {
			v.deps.Logger.Debug().Err(err).Int64("request_id", req.ID).Msg("verifier: tmdb movie lookup failed")
		}
		if item, err := v.deps.MediaServer.SearchByProviderIDAndType(ctx, "Tmdb", req.ContentDBID, "Series"); err == nil {
			return item, nil
		} else if !errors.Is(err, mediaserver.ErrNotFound) {
			v.deps.Logger.Debug().Err(err).Int64("request_id", req.ID).Msg("verifier: tmdb series lookup failed")
		}
		if item, err := v.deps.MediaServer.SearchByProviderIDAndType(ctx, "Tmdb", req.ContentDBID, ""); err == nil {
			return item, nil
		} else if !errors.Is(err, mediaserver.ErrNotFound) {
			v.deps.Logger.Debug().Err(err).Int64("request_id", req.ID).Msg("verifier: tmdb untyped lookup failed")
		}
	}
	if req.Title != "" {
		if item, err := v.deps.MediaServer.SearchByTitleYear(ctx, req.Title, req.Year); err == nil {
			return item, nil
		} else if !errors.Is(err, mediaserver.ErrNotFound) {
			v.deps.Logger.Debug().Err(err).Int64("request_id", req.ID).Msg("verifier: title/year lookup failed")
		}
	}
	return nil, mediaserver.ErrNotFound
}

func (v *Verifier) transitionRequest(ctx context.Context, req *model.MediaRequest) error {
	ev := lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "verified available via media server lookup"}
	if target, ok := eventTargets[ev.Kind]; ok && req.State == target {
		return v.deps.Store.UpdateRequest(ctx, req)
	}
	from := req.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchRequest(req, ev, now)
	if err != nil {
		metrics.IncTransition("request", string(from), "rejected")
		return nil
	}
	err = v.deps.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := v.deps.Store.UpdateRequestTx(ctx, tx, req); err != nil {
			return err
		}
		return v.deps.Store.AppendTimelineEventTx(ctx, tx, &model.TimelineEvent{
			RequestID: req.ID, FromState: tr.From, ToState: tr.To, Emitter: emitter,
			EventType: emitter + ".transition", Detail: ev.Detail, CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	metrics.IncTransition("request", string(tr.To), "applied")
	return nil
}

func (v *Verifier) transitionEpisode(ctx context.Context, ep *model.Episode) error {
	ev := lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "verified available via media server lookup"}
	if target, ok := eventTargets[ev.Kind]; ok && ep.State == target {
		return nil
	}
	from := ep.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchEpisode(ep, ev, now)
	if err != nil {
		metrics.IncTransition("episode", string(from), "rejected")
		return nil
	}
	err = v.deps.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := v.deps.Store.UpdateEpisodeTx(ctx, tx, ep); err != nil {
			return err
		}
		return v.deps.Store.AppendTimelineEventTx(ctx, tx, &model.TimelineEvent{
			RequestID: ep.RequestID, EpisodeID: ep.ID, FromState: tr.From, ToState: tr.To, Emitter: emitter,
			EventType: emitter + ".transition", Detail: ev.Detail, CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	metrics.IncTransition("episode", string(tr.To), "applied")
	return nil
}

func (v *Verifier) broadcast(ctx context.Context, requestID int64) {
	_ = v.deps.Bus.Publish(ctx, "requests", map[string]any{
		"event_type": "request-updated",
		"request_id": requestID,
	})
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
