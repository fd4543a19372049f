// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
)

const defaultPageSize = 50

type requestDetail struct {
	*model.MediaRequest
	Episodes []*model.Episode      `json:"episodes,omitempty"`
	Timeline []*model.TimelineEvent `json:"timeline,omitempty"`
}

func (a *api) listRequests(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var states []model.State
	if v := r.URL.Query().Get("state"); v != "" {
		states = []model.State{model.State(v)}
	}

	reqs, err := a.deps.Store.ListRequests(r.Context(), states, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (a *api) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req, err := a.deps.Store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	episodes, err := a.deps.Store.ListEpisodesByRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	timeline, err := a.deps.Store.ListTimelineByRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, requestDetail{MediaRequest: req, Episodes: episodes, Timeline: timeline})
}

func (a *api) deleteRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	principal := principalFromContext(r.Context())
	deleteFiles := r.URL.Query().Get("deleteFiles") == "true"

	dl, err := a.deps.Deletion.InitiateDashboard(r.Context(), id, principal.ID, principal.User, deleteFiles)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dl)
}

func (a *api) bulkDeleteRequests(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestIDs  []int64 `json:"requestIds"`
		DeleteFiles bool    `json:"deleteFiles"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	principal := principalFromContext(r.Context())
	logs := make([]*model.DeletionLog, 0, len(body.RequestIDs))
	for _, id := range body.RequestIDs {
		dl, err := a.deps.Deletion.InitiateDashboard(r.Context(), id, principal.ID, principal.User, body.DeleteFiles)
		if err != nil {
			a.deps.Logger.Error().Err(err).Int64("request_id", id).Msg("httpapi: bulk delete failed for request")
			continue
		}
		logs = append(logs, dl)
	}
	writeJSON(w, http.StatusAccepted, logs)
}

func (a *api) listDeletionLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	logs, err := a.deps.Store.ListDeletionLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *api) syncLibrary(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	result := a.deps.LibrarySync.Sync(r.Context(), principal.ID)
	writeJSON(w, http.StatusOK, result)
}

func parseRequestID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
