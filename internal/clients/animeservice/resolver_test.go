// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animeservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/cache"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

type fakeFolderLister struct {
	folders []ImportFolder
	err     error
	calls   int32
}

func (f *fakeFolderLister) GetImportFolders(ctx context.Context) ([]ImportFolder, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.folders, nil
}

func TestResolver_ResolveAbsolutePath(t *testing.T) {
	lister := &fakeFolderLister{folders: []ImportFolder{
		{ID: 1, Name: "Anime", Path: "/data/anime", IsDropDestination: true},
	}}
	r := NewResolver(lister, cache.NewMemoryCache(time.Minute), time.Minute, zerolog.Nop())

	got, err := r.ResolveAbsolutePath(context.Background(), model.KindTV, "Show/S01E01.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/data/anime/Show/S01E01.mkv", got)
}

func TestResolver_NoDropDestination(t *testing.T) {
	lister := &fakeFolderLister{folders: []ImportFolder{
		{ID: 1, Name: "Staging", Path: "/data/staging", IsDropDestination: false},
	}}
	r := NewResolver(lister, cache.NewMemoryCache(time.Minute), time.Minute, zerolog.Nop())

	_, err := r.ResolveAbsolutePath(context.Background(), model.KindTV, "Show/S01E01.mkv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDropDestination)
}

func TestResolver_CachesImportFolders(t *testing.T) {
	lister := &fakeFolderLister{folders: []ImportFolder{
		{ID: 1, Path: "/data/anime", IsDropDestination: true},
	}}
	r := NewResolver(lister, cache.NewMemoryCache(time.Minute), time.Minute, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := r.ResolveAbsolutePath(context.Background(), model.KindMovie, "a.mkv")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&lister.calls))
}

func TestResolver_CollapsesConcurrentRefreshes(t *testing.T) {
	lister := &fakeFolderLister{folders: []ImportFolder{
		{ID: 1, Path: "/data/anime", IsDropDestination: true},
	}}
	r := NewResolver(lister, cache.NewMemoryCache(time.Minute), time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ResolveAbsolutePath(context.Background(), model.KindMovie, "a.mkv")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&lister.calls), int32(2))
}

func TestResolver_PropagatesFetchError(t *testing.T) {
	lister := &fakeFolderLister{err: errors.New("boom")}
	r := NewResolver(lister, cache.NewMemoryCache(time.Minute), time.Minute, zerolog.Nop())

	_, err := r.ResolveAbsolutePath(context.Background(), model.KindMovie, "a.mkv")
	require.Error(t, err)
}
