// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
)

const sourceRequestManager = "request-manager"

// RequestManagerEvent is the webhook payload shape the request manager posts
// to /hooks/request-manager (§6), matching Overseerr's notification-webhook
// format.
type RequestManagerEvent struct {
	NotificationType string `json:"notification_type"`
	Subject          string `json:"subject"`
	Image            string `json:"image"`
	Media            struct {
		MediaType string `json:"media_type"`
		TmdbID    string `json:"tmdbId"`
		TvdbID    string `json:"tvdbId"`
	} `json:"media"`
	Request struct {
		RequestID            string `json:"request_id"`
		RequestedByUsername  string `json:"requestedBy_username"`
	} `json:"request"`
	Extra []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"extra"`
}

// RequestManagerHandler implements the request-manager adapter (§4E): create
// or look up the MediaRequest; on MEDIA_AVAILABLE, resolve the media-server
// id and mark the request (and its episodes) AVAILABLE.
type RequestManagerHandler struct {
	*Engine
}

// NewRequestManagerHandler builds a RequestManagerHandler.
func NewRequestManagerHandler(e *Engine) *RequestManagerHandler {
	return &RequestManagerHandler{Engine: e}
}

// Handle processes one webhook delivery. A well-formed payload with no
// recognized notification type is a silent no-op (§7: only malformed
// payloads are the HTTP layer's concern).
func (h *RequestManagerHandler) Handle(ctx context.Context, ev RequestManagerEvent) error {
	kind := model.KindMovie
	if ev.Media.MediaType == "tv" {
		kind = model.KindTV
	}

	switch ev.NotificationType {
	case "MEDIA_PENDING", "MEDIA_AUTO_APPROVED", "MEDIA_APPROVED":
		return h.handleRequestCreatedOrApproved(ctx, ev, kind)
	case "MEDIA_AVAILABLE":
		return h.handleAvailable(ctx, ev, kind)
	case "MEDIA_FAILED":
		return h.handleFailed(ctx, ev, kind)
	default:
		return nil
	}
}

func (h *RequestManagerHandler) handleRequestCreatedOrApproved(ctx context.Context, ev RequestManagerEvent, kind model.MediaKind) error {
	cand := correlator.Candidate{
		RequestManagerID: ev.Request.RequestID,
		ContentDBID:      ev.Media.TmdbID,
		TVDBID:           ev.Media.TvdbID,
		Kind:             kind,
		Title:            ev.Subject,
	}

	req, err := h.findOrCreate(ctx, cand, ev, kind)
	if err != nil {
		h.recordIngest(sourceRequestManager, "correlation-miss")
		return nil
	}

	if ev.NotificationType == "MEDIA_AUTO_APPROVED" || ev.NotificationType == "MEDIA_APPROVED" {
		if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: lifecycle.EvApproved, Detail: "request approved"}, sourceRequestManager); err != nil {
			return err
		}
		h.broadcast(ctx, "request-updated", req.ID)
	}
	h.recordIngest(sourceRequestManager, "applied")
	return nil
}

// findOrCreate resolves cand to an active request, creating one in REQUESTED
// if none exists. A concurrent creation racing on the same request-manager id
// is resolved by re-resolving after ErrDuplicateActive (§5).
func (h *RequestManagerHandler) findOrCreate(ctx context.Context, cand correlator.Candidate, ev RequestManagerEvent, kind model.MediaKind) (*model.MediaRequest, error) {
	res, err := h.Correlator.Resolve(ctx, cand)
	if err == nil {
		return res.Request, nil
	}
	if !errors.Is(err, correlator.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	req := lifecycle.NewRequest(now)
	req.RequestManagerID = ev.Request.RequestID
	req.ContentDBID = ev.Media.TmdbID
	req.TVDBID = ev.Media.TvdbID
	req.Kind = kind
	req.Title = ev.Subject
	req.PosterURL = ev.Image
	req.RequestedBy = ev.Request.RequestedByUsername
	applyAnimeTagExtra(req, ev.Extra)

	if err := h.Store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			res, rerr := h.Correlator.Resolve(ctx, cand)
			if rerr != nil {
				return nil, rerr
			}
			return res.Request, nil
		}
		return nil, err
	}
	h.broadcast(ctx, "request-created", req.ID)
	return req, nil
}

func (h *RequestManagerHandler) handleAvailable(ctx context.Context, ev RequestManagerEvent, kind model.MediaKind) error {
	res, err := h.correlate(ctx, sourceRequestManager, correlator.Candidate{
		RequestManagerID: ev.Request.RequestID,
		ContentDBID:      ev.Media.TmdbID,
		TVDBID:           ev.Media.TvdbID,
		Kind:             kind,
	})
	if err != nil {
		return nil
	}
	req := res.Request

	if h.MediaServer != nil {
		go h.resolveMediaServerID(detach(ctx), req, kind)
	}

	episodes, err := h.Store.ListEpisodesByRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	for _, e := range episodes {
		if _, err := h.transitionEpisode(ctx, e, lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "request manager reported available"}, sourceRequestManager); err != nil {
			return err
		}
	}
	if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: lifecycle.EvAvailable, Detail: "request manager reported available"}, sourceRequestManager); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceRequestManager, "applied")
	return nil
}

// resolveMediaServerID looks up the media-server item by provider id in the
// background, so the webhook handler never blocks on outbound HTTP (§4E).
func (h *RequestManagerHandler) resolveMediaServerID(ctx context.Context, req *model.MediaRequest, kind model.MediaKind) {
	provider, id := "Tmdb", req.ContentDBID
	if kind == model.KindTV {
		provider, id = "Tvdb", req.TVDBID
	}
	if id == "" {
		return
	}
	item, err := h.MediaServer.SearchByProviderID(ctx, provider, id)
	if err != nil {
		h.Logger.Debug().Err(err).Str("provider", provider).Str("id", id).Msg("ingest: media-server provider lookup failed")
		return
	}
	req.MediaServerID = item.ID
	if err := h.Store.UpdateRequest(ctx, req); err != nil {
		h.Logger.Warn().Err(err).Int64("request_id", req.ID).Msg("ingest: failed to persist media-server id")
		return
	}
	h.broadcast(ctx, "request-updated", req.ID)
}

func (h *RequestManagerHandler) handleFailed(ctx context.Context, ev RequestManagerEvent, kind model.MediaKind) error {
	res, err := h.correlate(ctx, sourceRequestManager, correlator.Candidate{
		RequestManagerID: ev.Request.RequestID,
		ContentDBID:      ev.Media.TmdbID,
		TVDBID:           ev.Media.TvdbID,
		Kind:             kind,
	})
	if err != nil {
		return nil
	}
	if _, err := h.transitionRequest(ctx, res.Request, lifecycle.Event{Kind: lifecycle.EvFailed, Detail: "request manager reported failure"}, sourceRequestManager); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", res.Request.ID)
	h.recordIngest(sourceRequestManager, "applied")
	return nil
}

// applyAnimeTagExtra inspects the webhook's free-form extra fields for an
// anime signal, applying the is_anime bypass rule (§4C).
func applyAnimeTagExtra(req *model.MediaRequest, extra []struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}) {
	for _, e := range extra {
		if e.Name == "Genre" && strings.Contains(strings.ToLower(e.Value), "anime") {
			req.InferAnime(true)
			return
		}
	}
}
