// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package deletion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golift.io/starr/radarr"
	"golift.io/starr/sonarr"

	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/bus"
	"github.com/arrwatch/arrwatch/internal/clients/indexermovies"
	"github.com/arrwatch/arrwatch/internal/clients/indexertv"
	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/clients/requestmanager"
	"github.com/arrwatch/arrwatch/internal/clients/torrentclient"
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

type fakeTorrentAPI struct {
	deleted []string
}

func (f *fakeTorrentAPI) Login() error { return nil }
func (f *fakeTorrentAPI) GetTorrents(qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error) {
	return nil, nil
}
func (f *fakeTorrentAPI) DeleteTorrents(hashes []string, deleteFiles bool) error {
	f.deleted = append(f.deleted, hashes...)
	return nil
}

type fakeRadarrAPI struct{}

func (fakeRadarrAPI) GetMovieContext(ctx context.Context, params *radarr.GetMovie) ([]*radarr.Movie, error) {
	return nil, nil
}
func (fakeRadarrAPI) GetMovieByIDContext(ctx context.Context, id int64) (*radarr.Movie, error) {
	return nil, context.DeadlineExceeded
}
func (fakeRadarrAPI) DeleteMovieContext(ctx context.Context, id int64, deleteFiles, addImportExclusion bool) error {
	return nil
}
func (fakeRadarrAPI) Ping() error { return nil }

type fakeSonarrAPI struct{}

func (fakeSonarrAPI) GetSeriesContext(ctx context.Context, tvdbID int64) ([]*sonarr.Series, error) {
	return nil, nil
}
func (fakeSonarrAPI) GetSeriesByIDContext(ctx context.Context, id int64) (*sonarr.Series, error) {
	return nil, context.DeadlineExceeded
}
func (fakeSonarrAPI) DeleteSeriesContext(ctx context.Context, id int64, deleteFiles bool) error {
	return nil
}
func (fakeSonarrAPI) DeleteEpisodeFileContext(ctx context.Context, episodeFileID int64) error {
	return nil
}
func (fakeSonarrAPI) Ping() error { return nil }

// newTestDeps builds an Orchestrator with sync enabled and every client
// pointed at a local test server that accepts whatever it's sent.
func newTestDeps(t *testing.T) Deps {
	t.Helper()

	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ServerName":"test"}`))
	}))
	t.Cleanup(mediaSrv.Close)
	msClient, err := mediaserver.NewClient(mediaSrv.URL, "key", zerolog.Nop())
	require.NoError(t, err)

	rmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(rmSrv.Close)
	rmClient, err := requestmanager.NewClient(rmSrv.URL, "key", zerolog.Nop())
	require.NoError(t, err)

	return Deps{
		Store:          openTestStore(t),
		Bus:            bus.NewMemoryBus(),
		Audit:          audit.NewLogger(),
		TorrentClient:  torrentclient.NewClientWithAPI(&fakeTorrentAPI{}, zerolog.Nop()),
		IndexerMovies:  indexermovies.NewClientWithAPI(fakeRadarrAPI{}, zerolog.Nop()),
		IndexerTV:      indexertv.NewClientWithAPI(fakeSonarrAPI{}, zerolog.Nop()),
		MediaServer:    msClient,
		RequestManager: rmClient,
		EnableSync:     true,
		Logger:         zerolog.Nop(),
		Background:     context.Background(),
	}
}

func TestOrchestrator_InitiateDashboard_HardDeletesAndFansOut(t *testing.T) {
	deps := newTestDeps(t)
	o := New(deps)
	ctx := context.Background()
	now := time.Now().UTC()

	req := &model.MediaRequest{
		RequestManagerID: "7",
		IndexerMoviesID:  "42",
		ContentHash:      "abc123",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		Title:            "Arrival",
		State:            model.StateDownloaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, deps.Store.CreateRequest(ctx, req))

	dl, err := o.InitiateDashboard(ctx, req.ID, "user-1", "Alice", true)
	require.NoError(t, err)
	require.NotZero(t, dl.ID)
	require.Equal(t, model.SourceDashboard, dl.Source)

	_, err = deps.Store.GetRequest(ctx, req.ID)
	require.Error(t, err, "request row should be hard-deleted")

	events, err := deps.Store.ListDeletionSyncEvents(ctx, dl.ID)
	require.NoError(t, err)
	latest := latestPerService(events)

	require.Equal(t, model.SyncConfirmed, latest[model.ServiceTorrentClient].Status)
	require.Equal(t, model.SyncConfirmed, latest[model.ServiceIndexerMovies].Status)
	require.Equal(t, model.SyncConfirmed, latest[model.ServiceMediaServer].Status)
	require.Equal(t, model.SyncVerified, latest[model.ServiceRequestManager].Status)
	require.NotContains(t, latest, model.ServiceIndexerTV, "a movie request never gets an indexer-B sync event")
	require.NotContains(t, latest, model.ServiceAnimeService, "a non-anime request never gets an anime-service sync event")
}

func TestOrchestrator_SyncDisabled_SkipsEveryService(t *testing.T) {
	deps := newTestDeps(t)
	deps.EnableSync = false
	o := New(deps)
	ctx := context.Background()
	now := time.Now().UTC()

	req := &model.MediaRequest{
		RequestManagerID: "7",
		ContentHash:      "abc123",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		Title:            "Arrival",
		State:            model.StateDownloaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, deps.Store.CreateRequest(ctx, req))

	dl, err := o.InitiateDashboard(ctx, req.ID, "user-1", "Alice", true)
	require.NoError(t, err)

	events, err := deps.Store.ListDeletionSyncEvents(ctx, dl.ID)
	require.NoError(t, err)
	for _, ev := range events {
		if ev.Status == model.SyncPending {
			continue
		}
		require.Equal(t, model.SyncSkipped, ev.Status)
	}

	finalLog, err := deps.Store.GetDeletionLog(ctx, dl.ID)
	require.NoError(t, err)
	require.Equal(t, model.DeletionComplete, finalLog.Status)
	require.NotNil(t, finalLog.CompletedAt)
}

func TestApplicableServices_AnimeTVSeries(t *testing.T) {
	req := &model.MediaRequest{Kind: model.KindTV, IsAnime: model.TristateTrue}
	services := applicableServices(req, "hash")
	require.Contains(t, services, model.ServiceIndexerTV)
	require.Contains(t, services, model.ServiceAnimeService)
	require.NotContains(t, services, model.ServiceIndexerMovies)
}
