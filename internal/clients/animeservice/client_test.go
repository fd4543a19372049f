// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animeservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_TestsConnectionOnConstruction(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ImportFolder", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		w.Write([]byte(`[]`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewClient_MissingBaseURL(t *testing.T) {
	_, err := NewClient("", "secret", zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewClient_ConnectionFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestClient_GetImportFolders(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ImportFolderID":1,"ImportFolderName":"Anime","ImportFolderLocation":"/data/anime","IsDropDestination":1}]`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	folders, err := c.GetImportFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "/data/anime", folders[0].Path)
	assert.True(t, folders[0].IsDropDestination)
}
