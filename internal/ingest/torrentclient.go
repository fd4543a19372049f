// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"strings"

	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
)

const sourceTorrentClient = "torrent-client"

// TorrentCompleteEvent is the "on complete" webhook payload qBittorrent's
// external program hook posts to /hooks/torrent-client (§6). This is
// distinct from the adaptive poller's percentage updates: it fires exactly
// once, when the torrent finishes seeding its initial download.
type TorrentCompleteEvent struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// TorrentClientHandler implements the torrent-client completion adapter
// (§4E/§4F).
type TorrentClientHandler struct {
	*Engine
}

// NewTorrentClientHandler builds a TorrentClientHandler.
func NewTorrentClientHandler(e *Engine) *TorrentClientHandler {
	return &TorrentClientHandler{Engine: e}
}

// Handle marks the matching request or episode DOWNLOADED. A torrent with no
// matching active request (already deleted, or picked up by something other
// than arrwatch) is silently ignored (§4F).
func (h *TorrentClientHandler) Handle(ctx context.Context, ev TorrentCompleteEvent) error {
	hash := strings.ToLower(ev.Hash)
	res, err := h.correlate(ctx, sourceTorrentClient, correlator.Candidate{ContentHash: hash})
	if err != nil {
		return nil
	}

	if res.Episode != nil {
		res.Episode.FinalPath = ev.Path
		if err := h.Store.UpdateEpisode(ctx, res.Episode); err != nil {
			return err
		}
		if _, err := h.transitionEpisode(ctx, res.Episode, lifecycle.Event{Kind: lifecycle.EvDownloaded, Detail: "torrent completed"}, sourceTorrentClient); err != nil {
			return err
		}
		episodes, err := h.Store.ListEpisodesByRequest(ctx, res.Request.ID)
		if err != nil {
			return err
		}
		if err := h.reaggregate(ctx, res.Request, episodes, sourceTorrentClient); err != nil {
			return err
		}
	} else {
		res.Request.FinalPath = ev.Path
		if err := h.Store.UpdateRequest(ctx, res.Request); err != nil {
			return err
		}
		if _, err := h.transitionRequest(ctx, res.Request, lifecycle.Event{Kind: lifecycle.EvDownloaded, Detail: "torrent completed"}, sourceTorrentClient); err != nil {
			return err
		}
	}

	h.broadcast(ctx, "request-updated", res.Request.ID)
	h.recordIngest(sourceTorrentClient, "applied")
	return nil
}
