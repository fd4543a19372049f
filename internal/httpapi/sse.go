// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sse serves the dashboard's live-update stream (§4I, §6): every bus event
// on the "requests" topic is forwarded as a `data:` frame, with a
// `: keepalive` comment emitted on idle so intermediary proxies don't close
// the connection.
func (a *api) sse(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("httpapi: streaming unsupported"))
		return
	}

	sub, err := a.deps.Bus.Subscribe(r.Context(), "requests")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := a.deps.SSEHeartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				a.deps.Logger.Error().Err(err).Msg("httpapi: failed to marshal sse event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
