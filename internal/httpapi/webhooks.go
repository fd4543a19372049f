// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/arrwatch/arrwatch/internal/ingest"
)

func (a *api) hookRequestManager(w http.ResponseWriter, r *http.Request) {
	var ev ingest.RequestManagerEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if err := a.deps.RequestMgr.Handle(r.Context(), ev); err != nil {
		a.deps.Logger.Error().Err(err).Msg("httpapi: request-manager webhook failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) hookIndexerMovies(w http.ResponseWriter, r *http.Request) {
	var ev ingest.IndexerMoviesEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if err := a.deps.IndexerMov.Handle(r.Context(), ev); err != nil {
		a.deps.Logger.Error().Err(err).Msg("httpapi: indexer-movies webhook failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) hookIndexerTV(w http.ResponseWriter, r *http.Request) {
	var ev ingest.IndexerTVEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if err := a.deps.IndexerTV.Handle(r.Context(), ev); err != nil {
		a.deps.Logger.Error().Err(err).Msg("httpapi: indexer-tv webhook failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) hookTorrentClient(w http.ResponseWriter, r *http.Request) {
	var ev ingest.TorrentCompleteEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if err := a.deps.TorrentCli.Handle(r.Context(), ev); err != nil {
		a.deps.Logger.Error().Err(err).Msg("httpapi: torrent-client webhook failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) hookMediaServer(w http.ResponseWriter, r *http.Request) {
	var ev ingest.MediaServerEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if err := a.deps.MediaSrv.Handle(r.Context(), ev); err != nil {
		a.deps.Logger.Error().Err(err).Msg("httpapi: media-server webhook failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
