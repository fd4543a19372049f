// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package indexertv

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/sonarr"
)

// API is the narrow slice of the starr Sonarr client arrwatch depends on.
// Satisfied by *sonarr.Sonarr; a fake implementing this is used in tests.
type API interface {
	GetSeriesContext(ctx context.Context, tvdbID int64) ([]*sonarr.Series, error)
	GetSeriesByIDContext(ctx context.Context, seriesID int64) (*sonarr.Series, error)
	DeleteSeriesContext(ctx context.Context, seriesID int64, deleteFiles bool) error
	DeleteEpisodeFileContext(ctx context.Context, episodeFileID int64) error
	Ping() error
}

// Series is the trimmed projection of a Sonarr series arrwatch cares about.
type Series struct {
	ID     int64
	TVDBID int64
	Title  string
	Year   int
	Path   string
}

// Client talks to one Sonarr instance.
type Client struct {
	api    API
	logger zerolog.Logger
}

// NewClient builds a Client against the Sonarr instance at baseURL and
// verifies connectivity by pinging it.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	cfg := starr.New(apiKey, baseURL, timeout)
	api := sonarr.New(cfg)
	if err := api.Ping(); err != nil {
		return nil, fmt.Errorf("indexertv: connect to sonarr: %w", err)
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
	_ = ctx
	if err := c.api.Ping(); err != nil {
		return fmt.Errorf("indexertv: ping: %w", err)
	}
	return nil
}

// GetSeriesByTVDBID looks up a series by its TheTVDB id, the identifier
// correlation rule 4 keys off for TV requests (§4B).
func (c *Client) GetSeriesByTVDBID(ctx context.Context, tvdbID int64) (*Series, error) {
	all, err := c.api.GetSeriesContext(ctx, tvdbID)
	if err != nil {
		return nil, fmt.Errorf("indexertv: get series by tvdb id %d: %w", tvdbID, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("indexertv: no series found for tvdb id %d", tvdbID)
	}
	s := toSeries(all[0])
	return &s, nil
}

// GetSeriesByID looks up a single series by Sonarr's internal id.
func (c *Client) GetSeriesByID(ctx context.Context, id int64) (*Series, error) {
	s, err := c.api.GetSeriesByIDContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexertv: get series %d: %w", id, err)
	}
	out := toSeries(s)
	return &out, nil
}

// DeleteSeries removes a series (all its episodes) from Sonarr. deleteFiles
// mirrors the deletion request's delete_files flag (§4H).
func (c *Client) DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error {
	if err := c.api.DeleteSeriesContext(ctx, id, deleteFiles); err != nil {
		return fmt.Errorf("indexertv: delete series %d: %w", id, err)
	}
	c.logger.Info().Int64("series_id", id).Bool("delete_files", deleteFiles).Msg("deleted series")
	return nil
}

// DeleteEpisodeFile removes a single episode's file without deleting the
// series, for per-episode deletion requests.
func (c *Client) DeleteEpisodeFile(ctx context.Context, episodeFileID int64) error {
	if err := c.api.DeleteEpisodeFileContext(ctx, episodeFileID); err != nil {
		return fmt.Errorf("indexertv: delete episode file %d: %w", episodeFileID, err)
	}
	c.logger.Info().Int64("episode_file_id", episodeFileID).Msg("deleted episode file")
	return nil
}

func toSeries(s *sonarr.Series) Series {
	return Series{
		ID:     s.ID,
		TVDBID: s.TvdbID,
		Title:  s.Title,
		Year:   s.Year,
		Path:   s.Path,
	}
}
