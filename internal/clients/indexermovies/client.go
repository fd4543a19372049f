// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package indexermovies

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/radarr"
)

// API is the narrow slice of the starr Radarr client arrwatch depends on.
// Satisfied by *radarr.Radarr; a fake implementing this is used in tests.
type API interface {
	GetMovieContext(ctx context.Context, params *radarr.GetMovie) ([]*radarr.Movie, error)
	GetMovieByIDContext(ctx context.Context, movieID int64) (*radarr.Movie, error)
	DeleteMovieContext(ctx context.Context, movieID int64, deleteFiles, addImportExclusion bool) error
	Ping() error
}

// Movie is the trimmed projection of a Radarr movie arrwatch cares about:
// identifiers for correlation and the path/file state library-sync needs.
type Movie struct {
	ID      int64
	TMDBID  int64
	IMDBID  string
	Title   string
	Year    int
	Path    string
	HasFile bool
}

// Client talks to one Radarr instance.
type Client struct {
	api    API
	logger zerolog.Logger
}

// NewClient builds a Client against the Radarr instance at baseURL and
// verifies connectivity by pinging it.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	cfg := starr.New(apiKey, baseURL, timeout)
	api := radarr.New(cfg)
	if err := api.Ping(); err != nil {
		return nil, fmt.Errorf("indexermovies: connect to radarr: %w", err)
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
		return fmt.Errorf("indexermovies: ping: %w", err)
	}
	return nil
}

// GetAllMovies enumerates every movie Radarr knows about, for library-sync's
// bulk-enumeration backfill pass (§4K).
func (c *Client) GetAllMovies(ctx context.Context) ([]Movie, error) {
	movies, err := c.api.GetMovieContext(ctx, &radarr.GetMovie{})
	if err != nil {
		return nil, fmt.Errorf("indexermovies: list movies: %w", err)
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovie(m))
	}
	return out, nil
}

// GetMovieByID looks up a single movie, for correlation fallback when an
// inbound event carries a Radarr movie id but no richer identifier.
func (c *Client) GetMovieByID(ctx context.Context, id int64) (*Movie, error) {
	m, err := c.api.GetMovieByIDContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexermovies: get movie %d: %w", id, err)
	}
	mv := toMovie(m)
	return &mv, nil
}

// DeleteMovie removes a movie from Radarr. deleteFiles mirrors the
// deletion request's delete_files flag (§4H); addImportExclusion is always
// false since arrwatch never re-requests deleted media automatically.
func (c *Client) DeleteMovie(ctx context.Context, id int64, deleteFiles bool) error {
	if err := c.api.DeleteMovieContext(ctx, id, deleteFiles, false); err != nil {
		return fmt.Errorf("indexermovies: delete movie %d: %w", id, err)
	}
	c.logger.Info().Int64("movie_id", id).Bool("delete_files", deleteFiles).Msg("deleted movie")
	return nil
}

func toMovie(m *radarr.Movie) Movie {
	return Movie{
		ID:      m.ID,
		TMDBID:  m.TmdbID,
		IMDBID:  m.ImdbID,
		Title:   m.Title,
		Year:    m.Year,
		Path:    m.Path,
		HasFile: m.HasFile,
	}
}
