// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package torrentclient

import (
	"context"
	"errors"
	"testing"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	torrents     []qbittorrent.Torrent
	loginCalls   int
	failFirstGet bool
	deleteErr    error
	deletedHash  []string
	deletedFiles bool
}

func (f *fakeAPI) Login() error {
	f.loginCalls++
	return nil
}

func (f *fakeAPI) GetTorrents(opts qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error) {
	if f.failFirstGet {
		f.failFirstGet = false
		return nil, errors.New("403 Forbidden")
	}
	if len(opts.Hashes) > 0 {
		var out []qbittorrent.Torrent
		for _, t := range f.torrents {
			for _, h := range opts.Hashes {
				if t.Hash == h {
					out = append(out, t)
				}
			}
		}
		return out, nil
	}
	return f.torrents, nil
}

func (f *fakeAPI) DeleteTorrents(hashes []string, deleteFiles bool) error {
	f.deletedHash = hashes
	f.deletedFiles = deleteFiles
	return f.deleteErr
}

func TestClient_GetAllTorrents(t *testing.T) {
	api := &fakeAPI{torrents: []qbittorrent.Torrent{
		{Hash: "abc", Name: "Movie", State: "uploading", Progress: 1.0},
	}}
	c := NewClientWithAPI(api, zerolog.Nop())

	torrents, err := c.GetAllTorrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 1)
	assert.True(t, torrents[0].IsSeeding)
}

func TestClient_GetAllTorrents_ReauthenticatesOnAuthFailure(t *testing.T) {
	api := &fakeAPI{
		failFirstGet: true,
		torrents:     []qbittorrent.Torrent{{Hash: "abc"}},
	}
	c := NewClientWithAPI(api, zerolog.Nop())

	torrents, err := c.GetAllTorrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 1)
	assert.Equal(t, 1, api.loginCalls)
}

func TestClient_GetTorrentByHash_NotFound(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api, zerolog.Nop())

	tor, err := c.GetTorrentByHash(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, tor)
}

func TestClient_DeleteTorrents(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api, zerolog.Nop())

	err := c.DeleteTorrents(context.Background(), []string{"abc", "def"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "def"}, api.deletedHash)
	assert.True(t, api.deletedFiles)
}

func TestClient_DeleteTorrents_Empty(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api, zerolog.Nop())

	err := c.DeleteTorrents(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Nil(t, api.deletedHash)
}
