// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package torrentclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// API is the narrow slice of the go-qbittorrent client arrwatch depends on.
type API interface {
	Login() error
	GetTorrents(opts qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	DeleteTorrents(hashes []string, deleteFiles bool) error
}

// Torrent is the trimmed projection of a qBittorrent torrent the progress
// provider and verifier need.
type Torrent struct {
	Hash      string
	Name      string
	SavePath  string
	State     string
	Progress  float64
	IsSeeding bool
}

// Client talks to one qBittorrent instance, re-authenticating on demand.
type Client struct {
	api      API
	logger   zerolog.Logger
	loginSFG singleflight.Group
}

// NewClient builds a Client against the qBittorrent instance at baseURL and
// verifies connectivity by logging in.
func NewClient(baseURL, username, password string, logger zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("torrentclient: base URL must not be empty")
	}
	api := qbittorrent.NewClient(qbittorrent.Config{
		Host:     baseURL,
		Username: username,
		Password: password,
	})
	if err := api.Login(); err != nil {
		return nil, fmt.Errorf("torrentclient: login: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// NewClientWithAPI builds a Client around an already-constructed API, for
// tests that supply a fake.
func NewClientWithAPI(api API, logger zerolog.Logger) *Client {
	return &Client{api: api, logger: logger}
}

// TestConnection re-verifies reachability, for use by health checkers.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.callWithReauth(func() (any, error) {
		return c.api.GetTorrents(qbittorrent.TorrentFilterOptions{})
	})
	return err
}

// GetAllTorrents lists every torrent, for the progress provider's poll loop
// (§4F).
func (c *Client) GetAllTorrents(ctx context.Context) ([]Torrent, error) {
	result, err := c.callWithReauth(func() (any, error) {
		return c.api.GetTorrents(qbittorrent.TorrentFilterOptions{})
	})
	if err != nil {
		return nil, fmt.Errorf("torrentclient: list torrents: %w", err)
	}
	raw := result.([]qbittorrent.Torrent)
	out := make([]Torrent, 0, len(raw))
	for _, t := range raw {
		out = append(out, toTorrent(t))
	}
	return out, nil
}

// GetTorrentByHash looks up a single torrent by its infohash. Returns nil,
// nil when no such torrent exists.
func (c *Client) GetTorrentByHash(ctx context.Context, hash string) (*Torrent, error) {
	result, err := c.callWithReauth(func() (any, error) {
		return c.api.GetTorrents(qbittorrent.TorrentFilterOptions{Hashes: []string{hash}})
	})
	if err != nil {
		return nil, fmt.Errorf("torrentclient: get torrent %s: %w", hash, err)
	}
	raw := result.([]qbittorrent.Torrent)
	if len(raw) == 0 {
		return nil, nil
	}
	t := toTorrent(raw[0])
	return &t, nil
}

// DeleteTorrents removes one or more torrents by hash. deleteFiles mirrors
// the deletion request's delete_files flag (§4H).
func (c *Client) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	if len(hashes) == 0 {
		return nil
	}
	_, err := c.callWithReauth(func() (any, error) {
		return nil, c.api.DeleteTorrents(hashes, deleteFiles)
	})
	if err != nil {
		return fmt.Errorf("torrentclient: delete torrents %v: %w", hashes, err)
	}
	c.logger.Info().Strs("hashes", hashes).Bool("delete_files", deleteFiles).Msg("deleted torrents")
	return nil
}

// callWithReauth runs fn, and on an authentication failure re-logs in
// (coordinated across concurrent callers by a single-flight lock) before
// retrying fn exactly once.
func (c *Client) callWithReauth(fn func() (any, error)) (any, error) {
	result, err := fn()
	if err == nil || !isAuthError(err) {
		return result, err
	}

	c.logger.Warn().Err(err).Msg("qbittorrent session expired, re-authenticating")
	_, loginErr, _ := c.loginSFG.Do("login", func() (any, error) {
		return nil, c.api.Login()
	})
	if loginErr != nil {
		return nil, fmt.Errorf("torrentclient: re-login failed: %w", loginErr)
	}

	return fn()
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized")
}

func toTorrent(t qbittorrent.Torrent) Torrent {
	state := string(t.State)
	return Torrent{
		Hash:      t.Hash,
		Name:      t.Name,
		SavePath:  t.SavePath,
		State:     state,
		Progress:  t.Progress,
		IsSeeding: isSeedingState(state),
	}
}

func isSeedingState(state string) bool {
	switch state {
	case "uploading", "stalledUP", "queuedUP", "forcedUP":
		return true
	default:
		return false
	}
}
