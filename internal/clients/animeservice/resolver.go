// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animeservice

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/arrwatch/arrwatch/internal/cache"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// importFoldersCacheKey is the single cache slot the resolver keeps warm;
// there is only ever one list to fetch, covering every resolve call.
const importFoldersCacheKey = "animeservice:import-folders"

// ErrNoDropDestination is returned when no configured import folder is
// marked as a drop destination, so a relative path has nowhere to resolve
// against.
var ErrNoDropDestination = errors.New("animeservice: no drop-destination import folder configured")

// FolderLister is the subset of Client the resolver depends on, to keep it
// independently testable from the HTTP transport.
type FolderLister interface {
	GetImportFolders(ctx context.Context) ([]ImportFolder, error)
}

// Resolver implements correlator.PathResolver against the anime service's
// import-folder metadata, caching the folder list for ttl and collapsing
// concurrent refreshes into a single outbound call (§4B, §9).
type Resolver struct {
	lister FolderLister
	cache  cache.Cache
	ttl    time.Duration
	sfg    singleflight.Group
	logger zerolog.Logger
}

// NewResolver builds a Resolver. ttl controls how long a fetched
// import-folder list is trusted before the next resolve call refreshes it.
func NewResolver(lister FolderLister, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{lister: lister, cache: c, ttl: ttl, logger: logger}
}

// ResolveAbsolutePath joins relativePath onto the anime service's configured
// drop-destination import folder. kind is accepted to satisfy
// correlator.PathResolver's signature; the anime service does not segregate
// import folders by media kind.
func (r *Resolver) ResolveAbsolutePath(ctx context.Context, kind model.MediaKind, relativePath string) (string, error) {
	folders, err := r.importFolders(ctx)
	if err != nil {
		return "", fmt.Errorf("animeservice: resolve path: %w", err)
	}

	for _, f := range folders {
		if f.IsDropDestination {
			return filepath.Join(f.Path, relativePath), nil
		}
	}
	return "", ErrNoDropDestination
}

func (r *Resolver) importFolders(ctx context.Context) ([]ImportFolder, error) {
	if cached, ok := r.cache.Get(importFoldersCacheKey); ok {
		if folders, ok := cached.([]ImportFolder); ok {
			return folders, nil
		}
	}

	v, err, _ := r.sfg.Do(importFoldersCacheKey, func() (any, error) {
		folders, err := r.lister.GetImportFolders(ctx)
		if err != nil {
			return nil, err
		}
		r.cache.Set(importFoldersCacheKey, folders, r.ttl)
		return folders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ImportFolder), nil
}
