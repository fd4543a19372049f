// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"strings"

	"github.com/arrwatch/arrwatch/internal/animehub"
	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
)

const sourceAnimeService = "anime-service"

// AnimeHubHandler consumes the anime service's single event stream (§5, §6).
// FileMatched with a cross-reference is the terminal match signal (AVAILABLE,
// or ANIME_MATCHING for an episode still waiting on siblings); everything
// else either refines in-flight matching state or is discarded.
type AnimeHubHandler struct {
	*Engine
	Hub *animehub.Hub
}

// NewAnimeHubHandler builds an AnimeHubHandler over an already-running Hub.
func NewAnimeHubHandler(e *Engine, hub *animehub.Hub) *AnimeHubHandler {
	return &AnimeHubHandler{Engine: e, Hub: hub}
}

// Run drains the hub's event channel until it closes (on ctx cancellation),
// processing one event at a time. The anime-service stream is strictly
// single-threaded (§5): this loop must never fan events out to goroutines,
// or ordering guarantees the correlator relies on would break. Implements
// daemon.Runnable alongside the Hub itself, which owns the websocket
// connection this loop only consumes.
func (h *AnimeHubHandler) Run(ctx context.Context) error {
	for ev := range h.Hub.Events() {
		if err := h.handle(ctx, ev); err != nil {
			h.Logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("ingest: anime-service event handling failed")
		}
	}
	return nil
}

func (h *AnimeHubHandler) handle(ctx context.Context, ev animehub.Event) error {
	switch ev.Type {
	case animehub.EventFileMatched:
		return h.handleFileMatched(ctx, ev)
	case animehub.EventFileDetected, animehub.EventFileHashed:
		return h.handleFileProgress(ctx, ev)
	case animehub.EventSeriesUpdated, animehub.EventEpisodeUpdated, animehub.EventMovieUpdated:
		// Update events change no state here, whatever their reason: Added
		// and noise such as ImageAdded are both discarded.
		if ev.Reason != animehub.ReasonAdded {
			return nil
		}
		return nil
	default:
		return nil
	}
}

func (h *AnimeHubHandler) pathCandidate(relativePath string) correlator.Candidate {
	return correlator.Candidate{FinalPath: strings.TrimPrefix(relativePath, "/")}
}

// handleFileProgress records that a file has entered the anime service's
// matching pipeline but hasn't resolved yet, driving the owning request or
// episode to ANIME_MATCHING if it isn't already there.
func (h *AnimeHubHandler) handleFileProgress(ctx context.Context, ev animehub.Event) error {
	if ev.RelativePath == "" {
		return nil
	}
	res, err := h.correlate(ctx, sourceAnimeService, h.pathCandidate(ev.RelativePath))
	if err != nil {
		return nil
	}

	if res.Episode != nil {
		if _, err := h.transitionEpisode(ctx, res.Episode, lifecycle.Event{Kind: lifecycle.EvAnimeMatching, Detail: "anime service processing file"}, sourceAnimeService); err != nil {
			return err
		}
	} else {
		if _, err := h.transitionRequest(ctx, res.Request, lifecycle.Event{Kind: lifecycle.EvAnimeMatching, Detail: "anime service processing file"}, sourceAnimeService); err != nil {
			return err
		}
	}
	h.broadcast(ctx, "request-updated", res.Request.ID)
	h.recordIngest(sourceAnimeService, "applied")
	return nil
}

// handleFileMatched is the terminal signal: a cross-reference means the
// anime service has linked the file to a known episode/movie record, so the
// owning request (and, for TV, the whole request once every episode is
// done) becomes AVAILABLE. No cross-reference yet means the file is still
// mid-match and the owner stays/moves to ANIME_MATCHING.
func (h *AnimeHubHandler) handleFileMatched(ctx context.Context, ev animehub.Event) error {
	if ev.RelativePath == "" {
		return nil
	}
	res, err := h.correlate(ctx, sourceAnimeService, h.pathCandidate(ev.RelativePath))
	if err != nil {
		return nil
	}

	target := lifecycle.EvAnimeMatching
	if ev.HasCrossReference {
		target = lifecycle.EvAvailable
	}

	if res.Episode != nil {
		res.Episode.ContentHash = ev.ContentHash
		if err := h.Store.UpdateEpisode(ctx, res.Episode); err != nil {
			return err
		}
		if _, err := h.transitionEpisode(ctx, res.Episode, lifecycle.Event{Kind: target, Detail: "anime service file match"}, sourceAnimeService); err != nil {
			return err
		}
		episodes, err := h.Store.ListEpisodesByRequest(ctx, res.Request.ID)
		if err != nil {
			return err
		}
		if err := h.reaggregate(ctx, res.Request, episodes, sourceAnimeService); err != nil {
			return err
		}
	} else {
		if _, err := h.transitionRequest(ctx, res.Request, lifecycle.Event{Kind: target, Detail: "anime service file match"}, sourceAnimeService); err != nil {
			return err
		}
	}
	h.broadcast(ctx, "request-updated", res.Request.ID)
	h.recordIngest(sourceAnimeService, "applied")
	return nil
}
