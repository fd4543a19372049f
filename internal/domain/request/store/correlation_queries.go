// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// EpisodeMatch pairs an Episode with its owning request's id for callers that
// only have a loose handle on the parent.
type EpisodeMatch struct {
	Episode   *model.Episode
	RequestID int64
}

// FindActiveEpisodeByContentHash resolves a TV content hash against episode
// rows owned by an active request (§4B rule 1, TV branch).
func (s *Store) FindActiveEpisodeByContentHash(ctx context.Context, hash string) (*EpisodeMatch, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+episodeColumnsPrefixed+`
		FROM episodes e
		JOIN requests r ON r.id = e.request_id
		WHERE LOWER(e.content_hash) = ? AND r.state NOT IN ('AVAILABLE','FAILED')
		ORDER BY r.created_at DESC LIMIT 1`, strings.ToLower(hash))

	ep, err := doScanEpisode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &EpisodeMatch{Episode: ep, RequestID: ep.RequestID}, nil
}

// FindActiveRequestsByFinalPathSuffix returns active requests of any kind whose
// final_path ends with suffix, newest first (§4B path rules).
func (s *Store) FindActiveRequestsByFinalPathSuffix(ctx context.Context, suffix string) ([]*model.MediaRequest, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE final_path LIKE ? AND state NOT IN ('AVAILABLE','FAILED') ORDER BY created_at DESC",
		"%"+suffix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// FindActiveEpisodesByFinalPathSuffix returns episodes of active requests
// whose final_path ends with suffix, newest-request-first (§4B path rules).
func (s *Store) FindActiveEpisodesByFinalPathSuffix(ctx context.Context, suffix string) ([]*EpisodeMatch, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+episodeColumnsPrefixed+`
		FROM episodes e
		JOIN requests r ON r.id = e.request_id
		WHERE e.final_path LIKE ? AND r.state NOT IN ('AVAILABLE','FAILED')
		ORDER BY r.created_at DESC`, "%"+suffix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EpisodeMatch
	for rows.Next() {
		ep, err := doScanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &EpisodeMatch{Episode: ep, RequestID: ep.RequestID})
	}
	return out, rows.Err()
}

// ListActiveByKindAndYear returns every active request of the given kind and
// (if nonzero) year, for the last-resort fuzzy title match (§4B rule 6).
func (s *Store) ListActiveByKindAndYear(ctx context.Context, kind model.MediaKind, year int) ([]*model.MediaRequest, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE kind = ? AND state NOT IN ('AVAILABLE','FAILED')"
	args := []interface{}{string(kind)}
	if year != 0 {
		query += " AND year = ?"
		args = append(args, year)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListStaleByStates returns active requests in one of the given states whose
// updated_at is older than the cutoff, for the verifier loop (§4G).
func (s *Store) ListStaleByStates(ctx context.Context, states []model.State, cutoffRFC3339 string) ([]*model.MediaRequest, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]interface{}, 0, len(states)+1)
	for i, st := range states {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, string(st))
	}
	args = append(args, cutoffRFC3339)

	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE state IN ("+placeholders+") AND updated_at < ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}
