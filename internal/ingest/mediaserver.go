// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"

	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

const sourceMediaServer = "media-server"

// MediaServerEvent is the webhook payload shape the media server posts to
// /hooks/media-server (§6): ItemAdded/ItemRemoved, the provider-id map
// populated per the server's webhook plugin configuration. §9's open
// question notes that this shape varies by deployment, so every field here
// is treated as optional and the adapter falls back to its own stored ids
// when the provider-id map is missing or incomplete.
type MediaServerEvent struct {
	Event string `json:"event"`
	Item  struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		ProviderIDs map[string]string `json:"providerIds"`
	} `json:"item"`
}

// MediaServerHandler implements the media-server adapter (§4E).
type MediaServerHandler struct {
	*Engine
}

// NewMediaServerHandler builds a MediaServerHandler.
func NewMediaServerHandler(e *Engine) *MediaServerHandler {
	return &MediaServerHandler{Engine: e}
}

// Handle dispatches one media-server webhook delivery.
func (h *MediaServerHandler) Handle(ctx context.Context, ev MediaServerEvent) error {
	switch ev.Event {
	case "ItemAdded":
		return h.handleAdded(ctx, ev)
	case "ItemRemoved":
		return h.handleRemoved(ctx, ev)
	default:
		return nil
	}
}

func (h *MediaServerHandler) candidate(ev MediaServerEvent) correlator.Candidate {
	cand := correlator.Candidate{Title: ev.Item.Name}
	if tmdb, ok := ev.Item.ProviderIDs["Tmdb"]; ok && tmdb != "" {
		cand.ContentDBID = tmdb
		cand.Kind = model.KindMovie
	}
	if tvdb, ok := ev.Item.ProviderIDs["Tvdb"]; ok && tvdb != "" {
		cand.TVDBID = tvdb
		cand.Kind = model.KindTV
	}
	return cand
}

// handleAdded marks the matching request (and, for TV, its episodes)
// AVAILABLE and stores the server-assigned item id, since a direct
// library add can race ahead of the request-manager's own MEDIA_AVAILABLE
// notification.
func (h *MediaServerHandler) handleAdded(ctx context.Context, ev MediaServerEvent) error {
	cand := h.candidate(ev)
	if cand.ContentDBID == "" && cand.TVDBID == "" {
		return nil
	}
	res, err := h.correlate(ctx, sourceMediaServer, cand)
	if err != nil {
		return nil
	}
	req := res.Request
	req.MediaServerID = ev.Item.ID
	if err := h.Store.UpdateRequest(ctx, req); err != nil {
		return err
	}

	episodes, err := h.Store.ListEpisodesByRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	for _, e := range episodes {
		if _, err := h.transitionEpisode(ctx, e, lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "added to media server"}, sourceMediaServer); err != nil {
			return err
		}
	}
	if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "added to media server"}, sourceMediaServer); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceMediaServer, "applied")
	return nil
}

// handleRemoved initiates an external deletion. Correlation first tries the
// provider-id map; when the deployment's ItemRemoved payload omits it (§9),
// it falls back to matching on the server's own internal item id already
// stored on the request.
func (h *MediaServerHandler) handleRemoved(ctx context.Context, ev MediaServerEvent) error {
	cand := h.candidate(ev)
	var req *model.MediaRequest
	if cand.ContentDBID != "" || cand.TVDBID != "" {
		res, err := h.Correlator.Resolve(ctx, cand)
		if err == nil {
			req = res.Request
		}
	}
	if req == nil && ev.Item.ID != "" {
		matches, err := h.Store.FindAllActiveByCorrelationID(ctx, "media_server_id", ev.Item.ID)
		if err != nil {
			return err
		}
		if len(matches) == 1 {
			req = matches[0]
		} else if len(matches) > 1 {
			h.recordIngest(sourceMediaServer, "correlation-ambiguous")
			return nil
		}
	}
	if req == nil {
		h.recordIngest(sourceMediaServer, "correlation-miss")
		return nil
	}
	if h.Deletion == nil {
		return nil
	}
	if _, err := h.Deletion.InitiateExternal(ctx, req.ID, model.SourceMediaServer, true); err != nil {
		return err
	}
	h.recordIngest(sourceMediaServer, "applied")
	return nil
}
