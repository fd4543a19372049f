// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package correlator implements the six-key priority resolution that maps an
// inbound event's loose identifying fields onto at most one active
// MediaRequest (and, for TV, at most one of its Episodes) (§4B).
package correlator

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
)

// ErrNotFound is returned when no candidate matched any resolution rule.
var ErrNotFound = errors.New("correlator: no active request matched")

// ErrAmbiguous is returned when the first rule that matches finds two or more
// active requests tied on the newest created_at. Callers must not mutate state on this error;
// §4B requires only a warning to be logged/recorded.
var ErrAmbiguous = errors.New("correlator: multiple active requests matched")

// Candidate carries every identifying field an inbound event might supply.
// Callers set only the fields they actually have; zero values are treated as
// absent.
type Candidate struct {
	ContentHash      string
	RequestManagerID string
	ContentDBID      string
	TVDBID           string
	Kind             model.MediaKind

	// FinalPath is the event-relative path as reported by the source
	// (e.g. a torrent client's save path), not yet resolved to an
	// absolute import-folder path.
	FinalPath string

	Title string
	Year  int

	// Season/Episode are set for TV events that identify a specific
	// episode within the resolved request. Episode == 0 means "no
	// episode-level resolution requested" (e.g. season-pack or
	// request-level event).
	Season  int
	Episode int
}

// hasEpisode reports whether c carries an episode-level identifier.
func (c Candidate) hasEpisode() bool { return c.Episode > 0 }

// Result is the correlator's successful resolution.
type Result struct {
	Request *model.MediaRequest
	Episode *model.Episode
}

// PathResolver resolves an event-relative path to the absolute path an
// import-folder-aware service would report, since TV and movies live under
// different import folders and a single hardcoded prefix cannot be assumed
// (§4B). Implementations are expected to cache their answers (internal/cache,
// TTL + singleflight) rather than calling out on every correlation.
type PathResolver interface {
	ResolveAbsolutePath(ctx context.Context, kind model.MediaKind, relativePath string) (string, error)
}

// Store is the narrow persistence surface the correlator needs. Satisfied by
// *store.Store.
type Store interface {
	GetRequest(ctx context.Context, id int64) (*model.MediaRequest, error)
	FindAllActiveByCorrelationID(ctx context.Context, column, value string) ([]*model.MediaRequest, error)
	FindActiveEpisodeByContentHash(ctx context.Context, hash string) (*store.EpisodeMatch, error)
	FindActiveRequestsByFinalPathSuffix(ctx context.Context, suffix string) ([]*model.MediaRequest, error)
	FindActiveEpisodesByFinalPathSuffix(ctx context.Context, suffix string) ([]*store.EpisodeMatch, error)
	ListActiveByKindAndYear(ctx context.Context, kind model.MediaKind, year int) ([]*model.MediaRequest, error)
	ListEpisodesByRequest(ctx context.Context, requestID int64) ([]*model.Episode, error)
}

// Correlator resolves candidates against the store's active set.
type Correlator struct {
	store Store
	paths PathResolver
}

// New builds a Correlator. paths may be nil if the caller never supplies
// FinalPath candidates (rule 5 is then skipped).
func New(s Store, paths PathResolver) *Correlator {
	return &Correlator{store: s, paths: paths}
}

// Resolve applies the fixed priority order from §4B: content hash →
// request-manager id → content-DB id+kind → TV-DB id+kind → path →
// fuzzy title+year. Every rule is scoped to the active set by construction
// (the store methods only ever query non-terminal rows). The first rule with
// any active candidate wins, taking the newest by created_at; a rule whose
// newest candidates tie is ErrAmbiguous immediately rather than falling
// through to a weaker rule.
func (c *Correlator) Resolve(ctx context.Context, cand Candidate) (*Result, error) {
	if cand.ContentHash != "" {
		if res, err := c.resolveByContentHash(ctx, cand); err != errSkip {
			return res, err
		}
	}

	if cand.RequestManagerID != "" {
		if res, err := c.resolveBySingleColumn(ctx, "request_manager_id", cand.RequestManagerID, cand); err != errSkip {
			return res, err
		}
	}

	if cand.ContentDBID != "" && cand.Kind != "" {
		if res, err := c.resolveByColumnAndKind(ctx, "content_db_id", cand.ContentDBID, cand); err != errSkip {
			return res, err
		}
	}

	if cand.TVDBID != "" && cand.Kind != "" {
		if res, err := c.resolveByColumnAndKind(ctx, "tvdb_id", cand.TVDBID, cand); err != errSkip {
			return res, err
		}
	}

	if cand.FinalPath != "" {
		if res, err := c.resolveByPath(ctx, cand); err != errSkip {
			return res, err
		}
	}

	// Rule 6 is a last resort: never attempted when any upstream key was
	// present, even if every upstream rule came back empty.
	if !c.anyUpstreamKeyPresent(cand) && cand.Title != "" && cand.Kind != "" {
		return c.resolveByFuzzyTitle(ctx, cand)
	}

	return nil, ErrNotFound
}

// errSkip is an internal sentinel meaning "this rule found nothing; fall
// through to the next rule" as opposed to a real NotFound/Ambiguous verdict.
var errSkip = errors.New("correlator: rule produced no candidate")

func (c *Correlator) anyUpstreamKeyPresent(cand Candidate) bool {
	return cand.ContentHash != "" || cand.RequestManagerID != "" ||
		cand.ContentDBID != "" || cand.TVDBID != "" || cand.FinalPath != ""
}

// resolveByContentHash implements rule 1: movies match on MediaRequest,
// TV matches on any owned Episode.
func (c *Correlator) resolveByContentHash(ctx context.Context, cand Candidate) (*Result, error) {
	if cand.Kind == model.KindTV || cand.Kind == "" {
		match, err := c.store.FindActiveEpisodeByContentHash(ctx, strings.ToLower(cand.ContentHash))
		if err == nil {
			req, rerr := c.lookupRequestByID(ctx, match.RequestID)
			if rerr != nil {
				return nil, rerr
			}
			return &Result{Request: req, Episode: match.Episode}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if cand.Kind == model.KindTV {
			return nil, errSkip
		}
	}

	return c.resolveBySingleColumn(ctx, "content_hash", strings.ToLower(cand.ContentHash), cand)
}

// lookupRequestByID resolves an Episode's parent MediaRequest by numeric id,
// rejecting it if the request has since gone terminal.
func (c *Correlator) lookupRequestByID(ctx context.Context, id int64) (*model.MediaRequest, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.State.IsTerminal() {
		return nil, ErrNotFound
	}
	return req, nil
}

// resolveBySingleColumn implements rules that key off one exact column
// (content hash for movies, request-manager id). Ties are broken by
// created_at desc (§4B); only a genuine tie in created_at after that is
// ErrAmbiguous.
func (c *Correlator) resolveBySingleColumn(ctx context.Context, column, value string, cand Candidate) (*Result, error) {
	all, err := c.store.FindAllActiveByCorrelationID(ctx, column, value)
	if err != nil {
		return nil, err
	}
	winner, err := pickNewest(all)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, errSkip
	}
	return &Result{Request: winner, Episode: c.pickEpisode(ctx, winner, nil, cand)}, nil
}

// resolveByColumnAndKind implements rules 3 and 4 (content-DB id / TV-DB id,
// each paired with a media-kind match), tie-broken the same way.
func (c *Correlator) resolveByColumnAndKind(ctx context.Context, column, value string, cand Candidate) (*Result, error) {
	all, err := c.store.FindAllActiveByCorrelationID(ctx, column, value)
	if err != nil {
		return nil, err
	}
	var matches []*model.MediaRequest
	for _, r := range all {
		if r.Kind == cand.Kind {
			matches = append(matches, r)
		}
	}
	winner, err := pickNewest(matches)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, errSkip
	}
	return &Result{Request: winner, Episode: c.pickEpisode(ctx, winner, nil, cand)}, nil
}

// pickNewest returns the single most-recently-created request from matches,
// or ErrAmbiguous if two or more share the newest created_at timestamp
// (§4B: "ties at any level are broken by created_at desc"). A nil, nil
// result means matches was empty.
func pickNewest(matches []*model.MediaRequest) (*model.MediaRequest, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > 1 && matches[0].CreatedAt.Equal(matches[1].CreatedAt) {
		return nil, ErrAmbiguous
	}
	return matches[0], nil
}

// resolveByPath implements rule 5: resolve the event-relative path to an
// absolute candidate via the anime-service import-folder metadata, then
// match by exact path, normalized suffix, or basename-with-parent-dir
// disambiguation.
func (c *Correlator) resolveByPath(ctx context.Context, cand Candidate) (*Result, error) {
	relative := strings.TrimPrefix(cand.FinalPath, "/")
	absolute := relative
	if c.paths != nil {
		resolved, err := c.paths.ResolveAbsolutePath(ctx, cand.Kind, relative)
		if err == nil && resolved != "" {
			absolute = resolved
		}
	}

	if cand.Kind == model.KindTV {
		matches, err := c.store.FindActiveEpisodesByFinalPathSuffix(ctx, relative)
		if err != nil {
			return nil, err
		}
		matches = disambiguateEpisodesByBasename(matches, absolute)
		if len(matches) == 0 {
			return nil, errSkip
		}
		winner, werr := pickNewestEpisodeMatch(matches)
		if werr != nil {
			return nil, werr
		}
		req, err := c.lookupRequestByID(ctx, winner.RequestID)
		if err != nil {
			return nil, err
		}
		return &Result{Request: req, Episode: winner.Episode}, nil
	}

	matches, err := c.store.FindActiveRequestsByFinalPathSuffix(ctx, relative)
	if err != nil {
		return nil, err
	}
	matches = disambiguateRequestsByBasename(matches, absolute)
	winner, err := pickNewest(matches)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, errSkip
	}
	return &Result{Request: winner}, nil
}

// pickNewestEpisodeMatch applies the same created_at-desc tie-break as
// pickNewest, keyed off each match's owning request's episode CreatedAt
// (episodes inherit their request's resolution order since path matches are
// already scoped to one request per match).
func pickNewestEpisodeMatch(matches []*store.EpisodeMatch) (*store.EpisodeMatch, error) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Episode.CreatedAt.After(matches[j].Episode.CreatedAt)
	})
	if len(matches) > 1 && matches[0].Episode.CreatedAt.Equal(matches[1].Episode.CreatedAt) {
		return nil, ErrAmbiguous
	}
	return matches[0], nil
}

// disambiguateRequestsByBasename narrows a basename collision by requiring
// the stored final_path's parent directory to match the resolved absolute
// path's parent directory, per §4B's basename fallback rule.
func disambiguateRequestsByBasename(matches []*model.MediaRequest, absolute string) []*model.MediaRequest {
	if len(matches) <= 1 {
		return matches
	}
	wantDir := path.Dir(absolute)
	var narrowed []*model.MediaRequest
	for _, m := range matches {
		if path.Dir(m.FinalPath) == wantDir {
			narrowed = append(narrowed, m)
		}
	}
	if len(narrowed) == 0 {
		return matches
	}
	return narrowed
}

func disambiguateEpisodesByBasename(matches []*store.EpisodeMatch, absolute string) []*store.EpisodeMatch {
	if len(matches) <= 1 {
		return matches
	}
	wantDir := path.Dir(absolute)
	var narrowed []*store.EpisodeMatch
	for _, m := range matches {
		if path.Dir(m.Episode.FinalPath) == wantDir {
			narrowed = append(narrowed, m)
		}
	}
	if len(narrowed) == 0 {
		return matches
	}
	return narrowed
}

// resolveByFuzzyTitle implements rule 6, the last resort: normalized
// case/punctuation-insensitive title comparison within the given kind and
// year.
func (c *Correlator) resolveByFuzzyTitle(ctx context.Context, cand Candidate) (*Result, error) {
	candidates, err := c.store.ListActiveByKindAndYear(ctx, cand.Kind, cand.Year)
	if err != nil {
		return nil, err
	}
	want := normalizeTitle(cand.Title)
	var matches []*model.MediaRequest
	for _, r := range candidates {
		if normalizeTitle(r.Title) == want {
			matches = append(matches, r)
		}
	}
	winner, err := pickNewest(matches)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, ErrNotFound
	}
	return &Result{Request: winner}, nil
}

// normalizeTitle lowercases and strips everything but letters/digits, so
// "The Foo: Bar!" and "the foo bar" compare equal.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// pickEpisode resolves the episode-level portion of a candidate once the
// parent request is known. Returns nil when the candidate carries no
// episode identifier or the request is a movie.
func (c *Correlator) pickEpisode(ctx context.Context, req *model.MediaRequest, already *model.Episode, cand Candidate) *model.Episode {
	if already != nil {
		return already
	}
	if req.Kind != model.KindTV || !cand.hasEpisode() {
		return nil
	}
	episodes, err := c.store.ListEpisodesByRequest(ctx, req.ID)
	if err != nil {
		return nil
	}
	for _, ep := range episodes {
		if ep.Season == cand.Season && ep.Episode == cand.Episode {
			return ep
		}
	}
	return nil
}
