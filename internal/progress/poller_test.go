// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/bus"
	"github.com/arrwatch/arrwatch/internal/clients/torrentclient"
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

type fakeTorrentAPI struct {
	torrents []qbittorrent.Torrent
}

func (f *fakeTorrentAPI) Login() error { return nil }
func (f *fakeTorrentAPI) GetTorrents(qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error) {
	return f.torrents, nil
}
func (f *fakeTorrentAPI) DeleteTorrents([]string, bool) error { return nil }

func newTestPoller(t *testing.T, torrents []qbittorrent.Torrent) (*Poller, *store.Store) {
	t.Helper()
	s := openTestStore(t)
	tc := torrentclient.NewClientWithAPI(&fakeTorrentAPI{torrents: torrents}, zerolog.Nop())
	p := New(Deps{
		Store:         s,
		TorrentClient: tc,
		Bus:           bus.NewMemoryBus(),
		PollFast:      time.Millisecond,
		PollSlow:      time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	return p, s
}

func TestPollOnce_MovieRequest_TransitionsOnProgress(t *testing.T) {
	p, s := newTestPoller(t, []qbittorrent.Torrent{
		{Hash: "abc123", State: "downloading", Progress: 0.42},
	})

	req := lifecycle.NewRequest(time.Now().UTC())
	req.ContentHash = "abc123"
	req.Kind = model.KindMovie
	req.Title = "A Movie"
	req.State = model.StateGrabbing
	require.NoError(t, s.CreateRequest(context.Background(), req))

	active := p.pollOnce(context.Background())
	require.True(t, active)

	got, err := s.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDownloading, got.State)
}

func TestPollOnce_MovieRequest_CompletesOnFullProgress(t *testing.T) {
	p, s := newTestPoller(t, []qbittorrent.Torrent{
		{Hash: "def456", State: "uploading", Progress: 1.0},
	})

	req := lifecycle.NewRequest(time.Now().UTC())
	req.ContentHash = "def456"
	req.Kind = model.KindMovie
	req.Title = "Another Movie"
	req.State = model.StateDownloading
	require.NoError(t, s.CreateRequest(context.Background(), req))

	active := p.pollOnce(context.Background())
	require.False(t, active)

	got, err := s.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDownloaded, got.State)
}

func TestPollOnce_EpisodeSeasonPack_ReaggregatesRequest(t *testing.T) {
	p, s := newTestPoller(t, []qbittorrent.Torrent{
		{Hash: "season1", State: "downloading", Progress: 0.5},
	})

	req := lifecycle.NewRequest(time.Now().UTC())
	req.Kind = model.KindTV
	req.Title = "A Show"
	req.State = model.StateGrabbing
	require.NoError(t, s.CreateRequest(context.Background(), req))

	ep1 := lifecycle.NewEpisode(req.ID, 1, 1, time.Now().UTC())
	ep1.ContentHash = "season1"
	require.NoError(t, s.CreateEpisode(context.Background(), ep1))
	ep2 := lifecycle.NewEpisode(req.ID, 1, 2, time.Now().UTC())
	ep2.ContentHash = "season1"
	require.NoError(t, s.CreateEpisode(context.Background(), ep2))

	active := p.pollOnce(context.Background())
	require.True(t, active)

	got1, err := s.GetEpisode(context.Background(), ep1.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDownloading, got1.State)

	gotReq, err := s.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDownloading, gotReq.State)
}

func TestPollOnce_NoMatch_IsSkipped(t *testing.T) {
	p, _ := newTestPoller(t, []qbittorrent.Torrent{
		{Hash: "unmatched", State: "downloading", Progress: 0.1},
	})

	active := p.pollOnce(context.Background())
	require.False(t, active)
}

func TestClampPercent(t *testing.T) {
	require.Equal(t, 0.0, clampPercent(-1))
	require.Equal(t, 100.0, clampPercent(1.5))
	require.Equal(t, 50.0, clampPercent(0.5))
}
