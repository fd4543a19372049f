// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
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
		assert.Equal(t, "/System/Info", r.URL.Path)
		w.Write([]byte(`{"ServerName":"jellyfin"}`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_SearchByProviderID(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info" {
			w.Write([]byte(`{}`))
			return
		}
		assert.Equal(t, "Tmdb.438631", r.URL.Query().Get("AnyProviderIdEquals"))
		w.Write([]byte(`{"Items":[{"Id":"1","Name":"Dune","Path":"/media/dune.mkv","MediaSources":[{"Id":"s1"}]}]}`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	item, err := c.SearchByProviderID(context.Background(), "Tmdb", "438631")
	require.NoError(t, err)
	assert.Equal(t, "Dune", item.Name)
	assert.True(t, item.HasPlayableHit())
}

func TestClient_SearchByProviderID_NotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info" {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"Items":[]}`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	_, err = c.SearchByProviderID(context.Background(), "Tmdb", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ValidateToken_SessionPath(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info" {
			w.Write([]byte(`{}`))
			return
		}
		assert.Equal(t, "session-token", r.Header.Get("X-Emby-Token"))
		w.Write([]byte(`{"Id":"user-1","Name":"alice"}`))
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	user, err := c.ValidateToken(context.Background(), "session-token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestClient_ValidateToken_JWTFallback(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"})
	signed, err := token.SignedString([]byte("unused-secret"))
	require.NoError(t, err)

	user, err := c.ValidateToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-42", user.ID)
}

func TestClient_ValidateToken_NeitherSessionNorJWT(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, err := NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	_, err = c.ValidateToken(context.Background(), "not-a-jwt")
	require.Error(t, err)
}
