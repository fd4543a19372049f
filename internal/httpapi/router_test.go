// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Webhooks are server-to-server POSTs with no Origin/Referer header, so they
// must bypass CSRF entirely. This exercises the real router, not a handler
// called directly, to catch regressions the rest of this package's tests
// can't see (§6).
func TestNewRouter_HooksBypassCSRF(t *testing.T) {
	a, _ := newTestRouter(t)
	r := NewRouter(a.deps)

	body, _ := json.Marshal(map[string]any{"hash": "abc123", "name": "Arrival", "path": "/media/arrival.mkv", "size": 123})
	req := httptest.NewRequest(http.MethodPost, "/hooks/torrent-client", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.NotEqual(t, http.StatusForbidden, rr.Code)
}

// The dashboard/admin API is CSRF-protected: a cross-origin POST with no
// matching Origin/Referer must be rejected even before it reaches the admin
// gate.
func TestNewRouter_APIEnforcesCSRF(t *testing.T) {
	a, _ := newTestRouter(t)
	r := NewRouter(a.deps)

	req := httptest.NewRequest(http.MethodPost, "/api/requests/1/delete", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
}
