// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package indexermovies

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/starr/radarr"
)

type fakeAPI struct {
	movies      []*radarr.Movie
	getErr      error
	deleteErr   error
	deletedID   int64
	deletedFile bool
}

func (f *fakeAPI) GetMovieContext(ctx context.Context, params *radarr.GetMovie) ([]*radarr.Movie, error) {
	return f.movies, f.getErr
}

func (f *fakeAPI) GetMovieByIDContext(ctx context.Context, movieID int64) (*radarr.Movie, error) {
	for _, m := range f.movies {
		if m.ID == movieID {
			return m, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) DeleteMovieContext(ctx context.Context, movieID int64, deleteFiles, addImportExclusion bool) error {
	f.deletedID = movieID
	f.deletedFile = deleteFiles
	return f.deleteErr
}

func (f *fakeAPI) Ping() error { return nil }

func TestClient_GetAllMovies(t *testing.T) {
	api := &fakeAPI{movies: []*radarr.Movie{
		{ID: 1, Title: "Arrival", Year: 2016, TmdbID: 329865},
		{ID: 2, Title: "Dune", Year: 2021, TmdbID: 438631},
	}}
	c := NewClientWithAPI(api, zerolog.Nop())

	movies, err := c.GetAllMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Arrival", movies[0].Title)
	assert.Equal(t, int64(329865), movies[0].TMDBID)
}

func TestClient_DeleteMovie(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api, zerolog.Nop())

	err := c.DeleteMovie(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), api.deletedID)
	assert.True(t, api.deletedFile)
}

func TestClient_DeleteMovie_Error(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("boom")}
	c := NewClientWithAPI(api, zerolog.Nop())

	err := c.DeleteMovie(context.Background(), 42, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_GetMovieByID_NotFound(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api, zerolog.Nop())

	_, err := c.GetMovieByID(context.Background(), 99)
	require.Error(t, err)
}
