// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package librarysync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/bus"
	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "requests.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSyncer(t *testing.T, body string) (*Syncer, *store.Store) {
	t.Helper()
	s := openTestStore(t)
	srv := httptest.NewServer(func() http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/System/Info" {
				w.Write([]byte(`{}`))
				return
			}
			w.Write([]byte(body))
		}
	}())
	t.Cleanup(srv.Close)

	ms, err := mediaserver.NewClient(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)

	sy := New(Deps{
		Store:       s,
		MediaServer: ms,
		Bus:         bus.NewMemoryBus(),
		Audit:       audit.NewLogger(),
		Logger:      zerolog.Nop(),
	})
	return sy, s
}

func TestSync_BackfillsNewMovie(t *testing.T) {
	sy, s := newTestSyncer(t, `{"Items":[{"Id":"m1","Name":"Dune","Type":"Movie","ProductionYear":2021,"Path":"/media/dune.mkv","ProviderIds":{"Tmdb":"438631"},"MediaSources":[{"Id":"s1"}]}]}`)

	result := sy.Sync(context.Background(), "system")
	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Skipped)

	req, err := s.FindByCorrelationID(context.Background(), "content_db_id", "438631")
	require.NoError(t, err)
	require.Equal(t, model.StateAvailable, req.State)
	require.Equal(t, "library_sync", req.SourceMarker)
	require.Equal(t, "Dune", req.Title)
}

func TestSync_SkipsAlreadyTrackedItem(t *testing.T) {
	sy, s := newTestSyncer(t, `{"Items":[{"Id":"m1","Name":"Dune","Type":"Movie","ProductionYear":2021,"Path":"/media/dune.mkv","ProviderIds":{"Tmdb":"438631"},"MediaSources":[{"Id":"s1"}]}]}`)

	existing := lifecycle.NewRequest(time.Now().UTC())
	existing.Kind = model.KindMovie
	existing.Title = "Dune"
	existing.ContentDBID = "438631"
	require.NoError(t, s.CreateRequest(context.Background(), existing))

	result := sy.Sync(context.Background(), "system")
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.Skipped)
}

func TestSync_SkipsItemWithoutPlayableHit(t *testing.T) {
	sy, _ := newTestSyncer(t, `{"Items":[{"Id":"m2","Name":"Incomplete","Type":"Movie","ProviderIds":{"Tmdb":"1"}}]}`)

	result := sy.Sync(context.Background(), "system")
	require.Equal(t, 0, result.Created)
	require.Equal(t, 0, result.Skipped)
}
