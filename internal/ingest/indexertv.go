// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

const sourceIndexerTV = "indexer-tv"

// IndexerTVEvent is the webhook payload shape Sonarr posts to
// /hooks/indexer-tv (§6): EventType discriminates Grab/Download/
// SeriesDelete/EpisodeFileDelete.
type IndexerTVEvent struct {
	EventType string `json:"eventType"`

	Series struct {
		ID     int64    `json:"id"`
		TvdbID int64    `json:"tvdbId"`
		Title  string   `json:"title"`
		Year   int      `json:"year"`
		Path   string   `json:"path"`
		Tags   []string `json:"tags"`
		SeriesType string `json:"seriesType"`
	} `json:"series"`

	Episodes []struct {
		SeasonNumber  int    `json:"seasonNumber"`
		EpisodeNumber int    `json:"episodeNumber"`
		Title         string `json:"title"`
	} `json:"episodes"`

	Release struct {
		ReleaseGroup string `json:"releaseGroup"`
		Quality      string `json:"quality"`
		Size         int64  `json:"size"`
		Indexer      string `json:"indexer"`
	} `json:"release"`

	EpisodeFile struct {
		ID           int64  `json:"id"`
		RelativePath string `json:"relativePath"`
		Path         string `json:"path"`
	} `json:"episodeFile"`

	DownloadID   string `json:"downloadId"`
	DeletedFiles bool   `json:"deletedFiles"`
}

func (e IndexerTVEvent) contentHash() string {
	return strings.ToLower(e.DownloadID)
}

func (e IndexerTVEvent) isAnimeTag() bool {
	if strings.EqualFold(e.Series.SeriesType, "anime") {
		return true
	}
	for _, t := range e.Series.Tags {
		if strings.Contains(strings.ToLower(t), "anime") {
			return true
		}
	}
	return false
}

// IndexerTVHandler implements the TV-indexer adapter (§4E).
type IndexerTVHandler struct {
	*Engine
}

// NewIndexerTVHandler builds an IndexerTVHandler.
func NewIndexerTVHandler(e *Engine) *IndexerTVHandler {
	return &IndexerTVHandler{Engine: e}
}

// Handle dispatches one Sonarr webhook delivery.
func (h *IndexerTVHandler) Handle(ctx context.Context, ev IndexerTVEvent) error {
	switch ev.EventType {
	case "Grab":
		return h.handleGrab(ctx, ev)
	case "Download":
		return h.handleDownload(ctx, ev)
	case "SeriesDelete":
		return h.handleSeriesDelete(ctx, ev)
	case "EpisodeFileDelete":
		return h.handleEpisodeFileDelete(ctx, ev)
	default:
		return nil
	}
}

func (h *IndexerTVHandler) seriesCandidate(ev IndexerTVEvent) correlator.Candidate {
	return correlator.Candidate{
		TVDBID: strconv.FormatInt(ev.Series.TvdbID, 10),
		Kind:   model.KindTV,
		Title:  ev.Series.Title,
		Year:   ev.Series.Year,
	}
}

// handleGrab resolves (or, if missing, relies on the request having been
// created by the request-manager webhook already) the parent request, then
// creates one Episode row per episode in the grab sharing a single content
// hash — a season pack grabs every episode at once (§3).
func (h *IndexerTVHandler) handleGrab(ctx context.Context, ev IndexerTVEvent) error {
	res, err := h.correlate(ctx, sourceIndexerTV, h.seriesCandidate(ev))
	if err != nil {
		return nil
	}
	req := res.Request

	req.IndexerTVID = strconv.FormatInt(ev.Series.ID, 10)
	req.Quality = ev.Release.Quality
	req.IndexerLabel = ev.Release.Indexer
	req.ReleaseGroup = ev.Release.ReleaseGroup
	req.FileSizeBytes = ev.Release.Size
	req.InferAnime(ev.isAnimeTag())
	if len(ev.Episodes) > 1 {
		req.SeasonLabel = "S" + strconv.Itoa(ev.Episodes[0].SeasonNumber)
	}
	if err := h.Store.UpdateRequest(ctx, req); err != nil {
		return err
	}

	hash := ev.contentHash()
	now := time.Now().UTC()
	for _, epPayload := range ev.Episodes {
		ep, err := h.findOrCreateEpisode(ctx, req.ID, epPayload.SeasonNumber, epPayload.EpisodeNumber, now)
		if err != nil {
			return err
		}
		ep.Title = epPayload.Title
		ep.ContentHash = hash
		if err := h.Store.UpdateEpisode(ctx, ep); err != nil {
			return err
		}
		if _, err := h.transitionEpisode(ctx, ep, lifecycle.Event{Kind: lifecycle.EvGrabbed, Detail: "grabbed by indexer"}, sourceIndexerTV); err != nil {
			return err
		}
	}

	if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: lifecycle.EvGrabbed, Detail: "grabbed by indexer"}, sourceIndexerTV); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceIndexerTV, "applied")
	return nil
}

func (h *IndexerTVHandler) findOrCreateEpisode(ctx context.Context, requestID int64, season, episode int, now time.Time) (*model.Episode, error) {
	existing, err := h.Store.ListEpisodesByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	for _, ep := range existing {
		if ep.Season == season && ep.Episode == episode {
			return ep, nil
		}
	}
	ep := lifecycle.NewEpisode(requestID, season, episode, now)
	if err := h.Store.CreateEpisode(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

func (h *IndexerTVHandler) handleDownload(ctx context.Context, ev IndexerTVEvent) error {
	res, err := h.correlate(ctx, sourceIndexerTV, h.seriesCandidate(ev))
	if err != nil {
		return nil
	}
	req := res.Request

	episodes, err := h.Store.ListEpisodesByRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	grabbed := episodeSet(ev.Episodes)
	target := lifecycle.EvImporting
	if req.IsAnime == model.TristateTrue {
		target = lifecycle.EvAnimeMatching
	}
	for _, ep := range episodes {
		if !grabbed[episodeKey{ep.Season, ep.Episode}] {
			continue
		}
		ep.FinalPath = ev.EpisodeFile.Path
		if err := h.Store.UpdateEpisode(ctx, ep); err != nil {
			return err
		}
		if _, err := h.transitionEpisode(ctx, ep, lifecycle.Event{Kind: target, Detail: "imported by indexer"}, sourceIndexerTV); err != nil {
			return err
		}
	}

	if err := h.reaggregate(ctx, req, episodes, sourceIndexerTV); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceIndexerTV, "applied")
	return nil
}

type episodeKey struct{ season, episode int }

func episodeSet(payload []struct {
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
}) map[episodeKey]bool {
	out := make(map[episodeKey]bool, len(payload))
	for _, p := range payload {
		out[episodeKey{p.SeasonNumber, p.EpisodeNumber}] = true
	}
	return out
}

func (h *IndexerTVHandler) handleSeriesDelete(ctx context.Context, ev IndexerTVEvent) error {
	res, err := h.correlate(ctx, sourceIndexerTV, h.seriesCandidate(ev))
	if err != nil {
		return nil
	}
	if h.Deletion == nil {
		return nil
	}
	if _, err := h.Deletion.InitiateExternal(ctx, res.Request.ID, model.SourceIndexerTV, ev.DeletedFiles); err != nil {
		return err
	}
	h.recordIngest(sourceIndexerTV, "applied")
	return nil
}

// handleEpisodeFileDelete removes one episode's file without deleting the
// series. Since the deletion orchestrator's contract operates on a whole
// MediaRequest (§4H), a single-episode file removal transitions that
// episode to FAILED and re-aggregates the request, which a FAILED episode
// moves to FAILED too; it does not invoke the orchestrator.
func (h *IndexerTVHandler) handleEpisodeFileDelete(ctx context.Context, ev IndexerTVEvent) error {
	res, err := h.correlate(ctx, sourceIndexerTV, h.seriesCandidate(ev))
	if err != nil {
		return nil
	}
	episodes, err := h.Store.ListEpisodesByRequest(ctx, res.Request.ID)
	if err != nil {
		return err
	}
	for _, ep := range episodes {
		if ep.FinalPath != ev.EpisodeFile.Path {
			continue
		}
		if _, err := h.transitionEpisode(ctx, ep, lifecycle.Event{Kind: lifecycle.EvFailed, Detail: "episode file deleted upstream"}, sourceIndexerTV); err != nil {
			return err
		}
	}
	if err := h.reaggregate(ctx, res.Request, episodes, sourceIndexerTV); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", res.Request.ID)
	h.recordIngest(sourceIndexerTV, "applied")
	return nil
}
