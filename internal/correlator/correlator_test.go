// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package correlator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func mustCreateRequest(t *testing.T, s *store.Store, req *model.MediaRequest) *model.MediaRequest {
	t.Helper()
	require.NoError(t, s.CreateRequest(context.Background(), req))
	return req
}

func TestCorrelator_ResolvesByRequestManagerID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	req := mustCreateRequest(t, s, &model.MediaRequest{
		RequestManagerID: "rm-1",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		Title:            "Arrival",
		State:            model.StateGrabbing,
		CreatedAt:        now,
		UpdatedAt:        now,
	})

	c := New(s, nil)
	res, err := c.Resolve(context.Background(), Candidate{RequestManagerID: "rm-1"})
	require.NoError(t, err)
	require.Equal(t, req.ID, res.Request.ID)
}

func TestCorrelator_IgnoresTerminalRequests(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	mustCreateRequest(t, s, &model.MediaRequest{
		RequestManagerID: "rm-2",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		Title:            "Old One",
		State:            model.StateAvailable,
		CreatedAt:        now,
		UpdatedAt:        now,
	})

	c := New(s, nil)
	_, err := c.Resolve(context.Background(), Candidate{RequestManagerID: "rm-2"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCorrelator_TieBrokenByNewestCreatedAt(t *testing.T) {
	s := openTestStore(t)
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	mustCreateRequest(t, s, &model.MediaRequest{
		ContentDBID: "cdb-1",
		Kind:        model.KindMovie,
		IsAnime:     model.TristateFalse,
		Title:       "Dup A",
		State:       model.StateGrabbing,
		CreatedAt:   older,
		UpdatedAt:   older,
	})
	winner := mustCreateRequest(t, s, &model.MediaRequest{
		ContentDBID: "cdb-1",
		Kind:        model.KindMovie,
		IsAnime:     model.TristateFalse,
		Title:       "Dup B",
		State:       model.StateGrabbing,
		CreatedAt:   newer,
		UpdatedAt:   newer,
	})

	c := New(s, nil)
	res, err := c.Resolve(context.Background(), Candidate{ContentDBID: "cdb-1", Kind: model.KindMovie})
	require.NoError(t, err)
	require.Equal(t, winner.ID, res.Request.ID)
}

func TestCorrelator_AmbiguousOnExactCreatedAtTie(t *testing.T) {
	s := openTestStore(t)
	same := time.Now().UTC()

	mustCreateRequest(t, s, &model.MediaRequest{
		TVDBID:    "tvdb-1",
		Kind:      model.KindTV,
		IsAnime:   model.TristateFalse,
		Title:     "Show A",
		State:     model.StateGrabbing,
		CreatedAt: same,
		UpdatedAt: same,
	})
	mustCreateRequest(t, s, &model.MediaRequest{
		TVDBID:    "tvdb-1",
		Kind:      model.KindTV,
		IsAnime:   model.TristateFalse,
		Title:     "Show B",
		State:     model.StateGrabbing,
		CreatedAt: same,
		UpdatedAt: same,
	})

	c := New(s, nil)
	_, err := c.Resolve(context.Background(), Candidate{TVDBID: "tvdb-1", Kind: model.KindTV})
	require.ErrorIs(t, err, ErrAmbiguous)
}

func TestCorrelator_FuzzyTitleNeverAttemptedWithUpstreamKey(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	// No request exists for this request-manager id, and a title match
	// would otherwise succeed, but rule 6 must not run because an upstream
	// key (RequestManagerID) was present.
	mustCreateRequest(t, s, &model.MediaRequest{
		Title:     "The Matrix",
		Year:      1999,
		Kind:      model.KindMovie,
		IsAnime:   model.TristateFalse,
		State:     model.StateGrabbing,
		CreatedAt: now,
		UpdatedAt: now,
	})

	c := New(s, nil)
	_, err := c.Resolve(context.Background(), Candidate{
		RequestManagerID: "rm-missing",
		Title:            "The Matrix",
		Year:             1999,
		Kind:             model.KindMovie,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCorrelator_FuzzyTitleFallbackWhenNoUpstreamKey(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	req := mustCreateRequest(t, s, &model.MediaRequest{
		Title:     "The Matrix: Reloaded!",
		Year:      2003,
		Kind:      model.KindMovie,
		IsAnime:   model.TristateFalse,
		State:     model.StateGrabbing,
		CreatedAt: now,
		UpdatedAt: now,
	})

	c := New(s, nil)
	res, err := c.Resolve(context.Background(), Candidate{
		Title: "the matrix reloaded",
		Year:  2003,
		Kind:  model.KindMovie,
	})
	require.NoError(t, err)
	require.Equal(t, req.ID, res.Request.ID)
}

func TestCorrelator_EpisodeResolutionBySeasonEpisode(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	req := mustCreateRequest(t, s, &model.MediaRequest{
		RequestManagerID: "rm-tv-1",
		Kind:              model.KindTV,
		IsAnime:           model.TristateFalse,
		Title:             "Some Show",
		State:             model.StateGrabbing,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	ep := &model.Episode{
		RequestID: req.ID,
		Season:    1,
		Episode:   2,
		State:     model.StateGrabbing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateEpisode(context.Background(), ep))

	c := New(s, nil)
	res, err := c.Resolve(context.Background(), Candidate{
		RequestManagerID: "rm-tv-1",
		Season:           1,
		Episode:          2,
	})
	require.NoError(t, err)
	require.Equal(t, req.ID, res.Request.ID)
	require.NotNil(t, res.Episode)
	require.Equal(t, ep.ID, res.Episode.ID)
}

func TestCorrelator_ContentHashResolvesEpisodeDirectly(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	req := mustCreateRequest(t, s, &model.MediaRequest{
		Kind:      model.KindTV,
		IsAnime:   model.TristateFalse,
		Title:     "Hashed Show",
		State:     model.StateDownloading,
		CreatedAt: now,
		UpdatedAt: now,
	})
	ep := &model.Episode{
		RequestID:   req.ID,
		Season:      2,
		Episode:     5,
		ContentHash: "AABBCCDDEEFF00112233445566778899aabbccdd",
		State:       model.StateDownloading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateEpisode(context.Background(), ep))

	c := New(s, nil)
	res, err := c.Resolve(context.Background(), Candidate{
		ContentHash: "aabbccddeeff00112233445566778899aabbccdd",
		Kind:        model.KindTV,
	})
	require.NoError(t, err)
	require.Equal(t, req.ID, res.Request.ID)
	require.NotNil(t, res.Episode)
	require.Equal(t, ep.ID, res.Episode.ID)
}

type stubPathResolver struct {
	absolute string
}

func (p stubPathResolver) ResolveAbsolutePath(_ context.Context, _ model.MediaKind, relative string) (string, error) {
	if p.absolute != "" {
		return p.absolute, nil
	}
	return relative, nil
}

func TestCorrelator_PathSuffixMatch(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	req := mustCreateRequest(t, s, &model.MediaRequest{
		Kind:      model.KindMovie,
		IsAnime:   model.TristateFalse,
		Title:     "Path Movie",
		FinalPath: "/data/movies/Path.Movie.2020/Path.Movie.2020.mkv",
		State:     model.StateImporting,
		CreatedAt: now,
		UpdatedAt: now,
	})

	c := New(s, stubPathResolver{})
	res, err := c.Resolve(context.Background(), Candidate{
		FinalPath: "Path.Movie.2020/Path.Movie.2020.mkv",
		Kind:      model.KindMovie,
	})
	require.NoError(t, err)
	require.Equal(t, req.ID, res.Request.ID)
}

func TestCorrelator_NotFoundWhenNothingMatches(t *testing.T) {
	s := openTestStore(t)
	c := New(s, nil)

	_, err := c.Resolve(context.Background(), Candidate{RequestManagerID: "does-not-exist"})
	require.ErrorIs(t, err, ErrNotFound)
}
