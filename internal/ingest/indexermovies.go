// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

const sourceIndexerMovies = "indexer-movies"

// IndexerMoviesEvent is the webhook payload shape Radarr posts to
// /hooks/indexer-movies (§6): EventType discriminates Grab/Download/
// MovieDelete, the other fields populated per event type.
type IndexerMoviesEvent struct {
	EventType string `json:"eventType"`

	Movie struct {
		ID         int64    `json:"id"`
		TmdbID     int64    `json:"tmdbId"`
		ImdbID     string   `json:"imdbId"`
		Title      string   `json:"title"`
		Year       int      `json:"year"`
		FolderPath string   `json:"folderPath"`
		Tags       []string `json:"tags"`
	} `json:"movie"`

	Release struct {
		ReleaseGroup string `json:"releaseGroup"`
		Quality      string `json:"quality"`
		Size         int64  `json:"size"`
		Indexer      string `json:"indexer"`
	} `json:"release"`

	MovieFile struct {
		RelativePath string `json:"relativePath"`
		Path         string `json:"path"`
		Quality      string `json:"quality"`
		Size         int64  `json:"size"`
	} `json:"movieFile"`

	DownloadID string `json:"downloadId"`
	DeletedFiles bool  `json:"deletedFiles"`
}

// contentHash returns the identifier shared by the grab and the eventual
// download/import event for the same release, so the two correlate onto the
// same request without a round-trip to the indexer (§4B). Radarr's
// downloadId (the torrent client's info-hash) is exactly that identifier.
func (e IndexerMoviesEvent) contentHash() string {
	return strings.ToLower(e.DownloadID)
}

func (e IndexerMoviesEvent) isAnimeTag() bool {
	for _, t := range e.Movie.Tags {
		if strings.Contains(strings.ToLower(t), "anime") {
			return true
		}
	}
	return false
}

// IndexerMoviesHandler implements the movie-indexer adapter (§4E).
type IndexerMoviesHandler struct {
	*Engine
}

// NewIndexerMoviesHandler builds an IndexerMoviesHandler.
func NewIndexerMoviesHandler(e *Engine) *IndexerMoviesHandler {
	return &IndexerMoviesHandler{Engine: e}
}

// Handle dispatches one Radarr webhook delivery.
func (h *IndexerMoviesHandler) Handle(ctx context.Context, ev IndexerMoviesEvent) error {
	switch ev.EventType {
	case "Grab":
		return h.handleGrab(ctx, ev)
	case "Download":
		return h.handleDownload(ctx, ev)
	case "MovieDelete":
		return h.handleDelete(ctx, ev)
	default:
		return nil
	}
}

func (h *IndexerMoviesHandler) handleGrab(ctx context.Context, ev IndexerMoviesEvent) error {
	res, err := h.correlate(ctx, sourceIndexerMovies, correlator.Candidate{
		ContentDBID: strconv.FormatInt(ev.Movie.TmdbID, 10),
		Kind:        model.KindMovie,
		Title:       ev.Movie.Title,
		Year:        ev.Movie.Year,
		FinalPath:   ev.Movie.FolderPath,
	})
	if err != nil {
		return nil
	}
	req := res.Request

	req.IndexerMoviesID = strconv.FormatInt(ev.Movie.ID, 10)
	req.ContentHash = ev.contentHash()
	req.Quality = ev.Release.Quality
	req.IndexerLabel = ev.Release.Indexer
	req.ReleaseGroup = ev.Release.ReleaseGroup
	req.FileSizeBytes = ev.Release.Size
	req.InferAnime(ev.isAnimeTag())

	if err := h.Store.UpdateRequest(ctx, req); err != nil {
		return err
	}
	if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: lifecycle.EvGrabbed, Detail: "grabbed by indexer"}, sourceIndexerMovies); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceIndexerMovies, "applied")
	return nil
}

func (h *IndexerMoviesHandler) handleDownload(ctx context.Context, ev IndexerMoviesEvent) error {
	res, err := h.correlate(ctx, sourceIndexerMovies, correlator.Candidate{
		ContentHash: ev.contentHash(),
		ContentDBID: strconv.FormatInt(ev.Movie.TmdbID, 10),
		Kind:        model.KindMovie,
		Title:       ev.Movie.Title,
		Year:        ev.Movie.Year,
	})
	if err != nil {
		return nil
	}
	req := res.Request

	req.FinalPath = ev.MovieFile.Path
	if err := h.Store.UpdateRequest(ctx, req); err != nil {
		return err
	}

	target := lifecycle.EvImporting
	if req.IsAnime == model.TristateTrue {
		target = lifecycle.EvAnimeMatching
	}
	if _, err := h.transitionRequest(ctx, req, lifecycle.Event{Kind: target, Detail: "imported by indexer"}, sourceIndexerMovies); err != nil {
		return err
	}
	h.broadcast(ctx, "request-updated", req.ID)
	h.recordIngest(sourceIndexerMovies, "applied")
	return nil
}

func (h *IndexerMoviesHandler) handleDelete(ctx context.Context, ev IndexerMoviesEvent) error {
	res, err := h.correlate(ctx, sourceIndexerMovies, correlator.Candidate{
		ContentDBID: strconv.FormatInt(ev.Movie.TmdbID, 10),
		Kind:        model.KindMovie,
		Title:       ev.Movie.Title,
		Year:        ev.Movie.Year,
	})
	if err != nil {
		return nil
	}
	if h.Deletion == nil {
		return nil
	}
	_, err = h.Deletion.InitiateExternal(ctx, res.Request.ID, model.SourceIndexerMovies, ev.DeletedFiles)
	if err != nil {
		return err
	}
	h.recordIngest(sourceIndexerMovies, "applied")
	return nil
}
