// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/persistence/sqlite"
)

const schemaVersion = 1

// ErrNotFound is returned when a lookup by id or correlation key matches no
// row.
var ErrNotFound = errors.New("request: not found")

// ErrDuplicateActive is returned by CreateRequest when a non-terminal request
// already owns the given request-manager id (§5 idempotent-ingest guard).
var ErrDuplicateActive = errors.New("request: active request already exists for this request-manager id")

// Store implements persistence for the request domain atop SQLite.
type Store struct {
	DB *sql.DB
}

// Open initializes the request store, applying its schema if needed.
func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("request store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting a handful of
// mutation methods run either standalone or inside a caller-owned
// transaction without duplicating their SQL.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WithTx runs fn against a single *sql.Tx, committing on success and rolling
// back on error or panic. Used to keep a state mutation and its TimelineEvent
// append in one transaction (§4C step 2: "Apply mutation and append a
// TimelineEvent in the same transaction").
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_manager_id TEXT,
		content_db_id TEXT,
		tvdb_id TEXT,
		indexer_movies_id TEXT,
		indexer_tv_id TEXT,
		content_hash TEXT,
		media_server_id TEXT,
		kind TEXT NOT NULL,
		is_anime TEXT NOT NULL,
		title TEXT NOT NULL,
		year INTEGER,
		poster_url TEXT,
		requested_by TEXT,
		quality TEXT,
		indexer_label TEXT,
		season_label TEXT,
		file_size_bytes INTEGER,
		release_group TEXT,
		state TEXT NOT NULL,
		source_marker TEXT,
		final_path TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		available_at TEXT
	);

	-- §5: at most one non-terminal request may own a given request-manager id.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_active_rm_id
		ON requests(request_manager_id)
		WHERE request_manager_id IS NOT NULL AND state NOT IN ('AVAILABLE', 'FAILED');

	CREATE INDEX IF NOT EXISTS idx_requests_state ON requests(state);
	CREATE INDEX IF NOT EXISTS idx_requests_content_hash ON requests(content_hash);
	CREATE INDEX IF NOT EXISTS idx_requests_media_server_id ON requests(media_server_id);
	CREATE INDEX IF NOT EXISTS idx_requests_indexer_movies_id ON requests(indexer_movies_id);
	CREATE INDEX IF NOT EXISTS idx_requests_indexer_tv_id ON requests(indexer_tv_id);
	CREATE INDEX IF NOT EXISTS idx_requests_content_db_id ON requests(content_db_id);
	CREATE INDEX IF NOT EXISTS idx_requests_tvdb_id ON requests(tvdb_id);

	CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id INTEGER NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		season INTEGER NOT NULL,
		episode INTEGER NOT NULL,
		title TEXT,
		content_hash TEXT,
		final_path TEXT,
		media_server_id TEXT,
		anime_file_id TEXT,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_request_id ON episodes(request_id);
	CREATE INDEX IF NOT EXISTS idx_episodes_content_hash ON episodes(content_hash);
	CREATE INDEX IF NOT EXISTS idx_episodes_media_server_id ON episodes(media_server_id);

	CREATE TABLE IF NOT EXISTS timeline_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id INTEGER NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		episode_id INTEGER,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		emitter TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detail TEXT,
		is_new INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timeline_events_request_id ON timeline_events(request_id, created_at);

	CREATE TABLE IF NOT EXISTS deletion_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_title TEXT NOT NULL,
		snapshot_kind TEXT NOT NULL,
		snapshot_year INTEGER,
		snapshot_poster_url TEXT,
		snapshot_request_manager_id TEXT,
		snapshot_content_db_id TEXT,
		snapshot_tvdb_id TEXT,
		snapshot_indexer_movies_id TEXT,
		snapshot_indexer_tv_id TEXT,
		snapshot_content_hash TEXT,
		snapshot_media_server_id TEXT,
		source TEXT NOT NULL,
		actor_id TEXT,
		actor_display_name TEXT NOT NULL,
		delete_files INTEGER NOT NULL,
		initiated_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deletion_sync_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		deletion_log_id INTEGER NOT NULL REFERENCES deletion_logs(id) ON DELETE CASCADE,
		service TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT,
		error TEXT,
		raw_response TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deletion_sync_events_log_id ON deletion_sync_events(deletion_log_id, created_at);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Requests ---

const requestColumns = `
	id, request_manager_id, content_db_id, tvdb_id, indexer_movies_id, indexer_tv_id,
	content_hash, media_server_id, kind, is_anime, title, year, poster_url,
	requested_by, quality, indexer_label, season_label, file_size_bytes, release_group,
	state, source_marker, final_path, created_at, updated_at, available_at`

// CreateRequest inserts req and sets req.ID. It returns ErrDuplicateActive if
// an active (non-terminal) request already exists for req.RequestManagerID.
func (s *Store) CreateRequest(ctx context.Context, req *model.MediaRequest) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO requests (
			request_manager_id, content_db_id, tvdb_id, indexer_movies_id, indexer_tv_id,
			content_hash, media_server_id, kind, is_anime, title, year, poster_url,
			requested_by, quality, indexer_label, season_label, file_size_bytes, release_group,
			state, source_marker, final_path, created_at, updated_at, available_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(req.RequestManagerID), nullableString(req.ContentDBID), nullableString(req.TVDBID),
		nullableString(req.IndexerMoviesID), nullableString(req.IndexerTVID), nullableString(req.ContentHash),
		nullableString(req.MediaServerID), string(req.Kind), string(req.IsAnime), req.Title, nullableInt(req.Year),
		nullableString(req.PosterURL), nullableString(req.RequestedBy), nullableString(req.Quality),
		nullableString(req.IndexerLabel), nullableString(req.SeasonLabel), nullableInt64(req.FileSizeBytes),
		nullableString(req.ReleaseGroup), string(req.State), nullableString(req.SourceMarker),
		nullableString(req.FinalPath), formatTime(req.CreatedAt), formatTime(req.UpdatedAt), formatTimePtr(req.AvailableAt),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateActive
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

// UpdateRequest persists every mutable field of req (full-row replace), used
// after a lifecycle.DispatchRequest call or a correlator field merge.
func (s *Store) UpdateRequest(ctx context.Context, req *model.MediaRequest) error {
	return s.updateRequest(ctx, s.DB, req)
}

// UpdateRequestTx is UpdateRequest run against a caller-owned transaction, so
// it can be committed atomically alongside an AppendTimelineEventTx call.
func (s *Store) UpdateRequestTx(ctx context.Context, tx *sql.Tx, req *model.MediaRequest) error {
	return s.updateRequest(ctx, tx, req)
}

func (s *Store) updateRequest(ctx context.Context, ex execer, req *model.MediaRequest) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE requests SET
			request_manager_id = ?, content_db_id = ?, tvdb_id = ?, indexer_movies_id = ?,
			indexer_tv_id = ?, content_hash = ?, media_server_id = ?, kind = ?, is_anime = ?,
			title = ?, year = ?, poster_url = ?, requested_by = ?, quality = ?, indexer_label = ?,
			season_label = ?, file_size_bytes = ?, release_group = ?, state = ?, source_marker = ?,
			final_path = ?, updated_at = ?, available_at = ?
		WHERE id = ?`,
		nullableString(req.RequestManagerID), nullableString(req.ContentDBID), nullableString(req.TVDBID),
		nullableString(req.IndexerMoviesID), nullableString(req.IndexerTVID), nullableString(req.ContentHash),
		nullableString(req.MediaServerID), string(req.Kind), string(req.IsAnime), req.Title, nullableInt(req.Year),
		nullableString(req.PosterURL), nullableString(req.RequestedBy), nullableString(req.Quality),
		nullableString(req.IndexerLabel), nullableString(req.SeasonLabel), nullableInt64(req.FileSizeBytes),
		nullableString(req.ReleaseGroup), string(req.State), nullableString(req.SourceMarker),
		nullableString(req.FinalPath), formatTime(req.UpdatedAt), formatTimePtr(req.AvailableAt), req.ID,
	)
	if err != nil && isUniqueConstraintErr(err) {
		return ErrDuplicateActive
	}
	return err
}

// GetRequest returns the request with the given id, or ErrNotFound.
func (s *Store) GetRequest(ctx context.Context, id int64) (*model.MediaRequest, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	return scanRequest(row)
}

// FindActiveByCorrelationID resolves one of the six correlation keys (§4B) to
// the single active (non-terminal) request that owns it, if any.
func (s *Store) FindActiveByCorrelationID(ctx context.Context, column, value string) (*model.MediaRequest, error) {
	if !isCorrelationColumn(column) {
		return nil, fmt.Errorf("request store: invalid correlation column %q", column)
	}
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE LOWER("+column+") = LOWER(?) AND state NOT IN ('AVAILABLE','FAILED') ORDER BY id DESC LIMIT 1",
		value)
	return scanRequest(row)
}

// FindByCorrelationID resolves one of the correlation keys (§4B) to the
// single request that owns it regardless of state, for library-sync's
// dedup check (§4K): a title already tracked under any state, including a
// past AVAILABLE request, must not be backfilled again.
func (s *Store) FindByCorrelationID(ctx context.Context, column, value string) (*model.MediaRequest, error) {
	if !isCorrelationColumn(column) {
		return nil, fmt.Errorf("request store: invalid correlation column %q", column)
	}
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE LOWER("+column+") = LOWER(?) ORDER BY id DESC LIMIT 1",
		value)
	return scanRequest(row)
}

// FindAllActiveByCorrelationID returns every active request matching value on
// column, used to detect the ambiguous-match case in §4B. Comparison is
// case-insensitive, since content hashes are canonicalized case-insensitively
// (§4B rule 1).
func (s *Store) FindAllActiveByCorrelationID(ctx context.Context, column, value string) ([]*model.MediaRequest, error) {
	if !isCorrelationColumn(column) {
		return nil, fmt.Errorf("request store: invalid correlation column %q", column)
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE LOWER("+column+") = LOWER(?) AND state NOT IN ('AVAILABLE','FAILED')",
		value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func isCorrelationColumn(column string) bool {
	switch column {
	case "request_manager_id", "content_db_id", "tvdb_id", "indexer_movies_id", "indexer_tv_id", "content_hash", "media_server_id":
		return true
	}
	return false
}

// ListActiveRequests returns every non-terminal request, the active set used
// by the correlator and the verifier (§4B, §4G).
func (s *Store) ListActiveRequests(ctx context.Context) ([]*model.MediaRequest, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE state NOT IN ('AVAILABLE','FAILED')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListRequests returns requests for the dashboard, optionally filtered by
// state; newest first, with limit/offset pagination (limit<=0 means
// unbounded).
func (s *Store) ListRequests(ctx context.Context, states []model.State, limit, offset int) ([]*model.MediaRequest, error) {
	query := "SELECT " + requestColumns + " FROM requests"
	args := []interface{}{}
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, st := range states {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE state IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// DeleteRequest hard-deletes req and its episodes/timeline rows (ON DELETE
// CASCADE), per §4H's "request row is removed, DeletionLog survives".
func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	return err
}

func scanRequest(row *sql.Row) (*model.MediaRequest, error) {
	req, err := doScanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

func scanRequests(rows *sql.Rows) ([]*model.MediaRequest, error) {
	var out []*model.MediaRequest
	for rows.Next() {
		req, err := doScanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func doScanRequest(scanner interface{ Scan(dest ...interface{}) error }) (*model.MediaRequest, error) {
	var req model.MediaRequest
	var rmID, contentDBID, tvdbID, imID, itID, hash, msID sql.NullString
	var posterURL, requestedBy, quality, indexerLabel, seasonLabel, releaseGroup sql.NullString
	var sourceMarker, finalPath sql.NullString
	var year, fileSize sql.NullInt64
	var createdAt, updatedAt string
	var availableAt sql.NullString
	var kind, isAnime, state string

	err := scanner.Scan(
		&req.ID, &rmID, &contentDBID, &tvdbID, &imID, &itID, &hash, &msID,
		&kind, &isAnime, &req.Title, &year, &posterURL, &requestedBy, &quality,
		&indexerLabel, &seasonLabel, &fileSize, &releaseGroup, &state, &sourceMarker,
		&finalPath, &createdAt, &updatedAt, &availableAt,
	)
	if err != nil {
		return nil, err
	}

	req.RequestManagerID = rmID.String
	req.ContentDBID = contentDBID.String
	req.TVDBID = tvdbID.String
	req.IndexerMoviesID = imID.String
	req.IndexerTVID = itID.String
	req.ContentHash = hash.String
	req.MediaServerID = msID.String
	req.Kind = model.MediaKind(kind)
	req.IsAnime = model.Tristate(isAnime)
	req.Year = int(year.Int64)
	req.PosterURL = posterURL.String
	req.RequestedBy = requestedBy.String
	req.Quality = quality.String
	req.IndexerLabel = indexerLabel.String
	req.SeasonLabel = seasonLabel.String
	req.FileSizeBytes = fileSize.Int64
	req.ReleaseGroup = releaseGroup.String
	req.State = model.State(state)
	req.SourceMarker = sourceMarker.String
	req.FinalPath = finalPath.String
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	if availableAt.Valid {
		t := parseTime(availableAt.String)
		req.AvailableAt = &t
	}
	return &req, nil
}

// --- Episodes ---

const episodeColumns = `id, request_id, season, episode, title, content_hash, final_path, media_server_id, anime_file_id, state, created_at, updated_at`

const episodeColumnsPrefixed = `e.id, e.request_id, e.season, e.episode, e.title, e.content_hash, e.final_path, e.media_server_id, e.anime_file_id, e.state, e.created_at, e.updated_at`

func (s *Store) CreateEpisode(ctx context.Context, ep *model.Episode) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO episodes (request_id, season, episode, title, content_hash, final_path, media_server_id, anime_file_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.RequestID, ep.Season, ep.Episode, nullableString(ep.Title), nullableString(ep.ContentHash),
		nullableString(ep.FinalPath), nullableString(ep.MediaServerID), nullableString(ep.AnimeFileID),
		string(ep.State), formatTime(ep.CreatedAt), formatTime(ep.UpdatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ep.ID = id
	return nil
}

func (s *Store) UpdateEpisode(ctx context.Context, ep *model.Episode) error {
	return s.updateEpisode(ctx, s.DB, ep)
}

// UpdateEpisodeTx is UpdateEpisode run against a caller-owned transaction.
func (s *Store) UpdateEpisodeTx(ctx context.Context, tx *sql.Tx, ep *model.Episode) error {
	return s.updateEpisode(ctx, tx, ep)
}

func (s *Store) updateEpisode(ctx context.Context, ex execer, ep *model.Episode) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE episodes SET title = ?, content_hash = ?, final_path = ?, media_server_id = ?,
			anime_file_id = ?, state = ?, updated_at = ? WHERE id = ?`,
		nullableString(ep.Title), nullableString(ep.ContentHash), nullableString(ep.FinalPath),
		nullableString(ep.MediaServerID), nullableString(ep.AnimeFileID), string(ep.State),
		formatTime(ep.UpdatedAt), ep.ID,
	)
	return err
}

func (s *Store) GetEpisode(ctx context.Context, id int64) (*model.Episode, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE id = ?", id)
	ep, err := doScanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ep, err
}

// ListEpisodesByRequest returns every episode for requestID, ordered for
// display (season, then episode number).
func (s *Store) ListEpisodesByRequest(ctx context.Context, requestID int64) ([]*model.Episode, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE request_id = ? ORDER BY season, episode", requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Episode
	for rows.Next() {
		ep, err := doScanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func doScanEpisode(scanner interface{ Scan(dest ...interface{}) error }) (*model.Episode, error) {
	var ep model.Episode
	var title, hash, finalPath, msID, animeID sql.NullString
	var state string
	var createdAt, updatedAt string

	err := scanner.Scan(&ep.ID, &ep.RequestID, &ep.Season, &ep.Episode, &title, &hash, &finalPath, &msID, &animeID, &state, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	ep.Title = title.String
	ep.ContentHash = hash.String
	ep.FinalPath = finalPath.String
	ep.MediaServerID = msID.String
	ep.AnimeFileID = animeID.String
	ep.State = model.State(state)
	ep.CreatedAt = parseTime(createdAt)
	ep.UpdatedAt = parseTime(updatedAt)
	return &ep, nil
}

// --- Timeline ---

// AppendTimelineEvent inserts an immutable audit row for a state transition
// (§3). Never updated or deleted except via the owning request's cascade.
func (s *Store) AppendTimelineEvent(ctx context.Context, ev *model.TimelineEvent) error {
	return s.appendTimelineEvent(ctx, s.DB, ev)
}

// AppendTimelineEventTx is AppendTimelineEvent run against a caller-owned
// transaction, so it commits atomically with the mutation it audits.
func (s *Store) AppendTimelineEventTx(ctx context.Context, tx *sql.Tx, ev *model.TimelineEvent) error {
	return s.appendTimelineEvent(ctx, tx, ev)
}

func (s *Store) appendTimelineEvent(ctx context.Context, ex execer, ev *model.TimelineEvent) error {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO timeline_events (request_id, episode_id, from_state, to_state, emitter, event_type, detail, is_new, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RequestID, nullableInt64(ev.EpisodeID), string(ev.FromState), string(ev.ToState),
		ev.Emitter, ev.EventType, nullableString(ev.Detail), boolToInt(ev.IsNew), formatTime(ev.CreatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

// ListTimelineByRequest returns the full append-only history for a request,
// oldest first, for the dashboard detail view.
func (s *Store) ListTimelineByRequest(ctx context.Context, requestID int64) ([]*model.TimelineEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, request_id, episode_id, from_state, to_state, emitter, event_type, detail, is_new, created_at
		FROM timeline_events WHERE request_id = ? ORDER BY created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TimelineEvent
	for rows.Next() {
		var ev model.TimelineEvent
		var episodeID sql.NullInt64
		var fromState, toState string
		var detail sql.NullString
		var isNew int
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.RequestID, &episodeID, &fromState, &toState, &ev.Emitter, &ev.EventType, &detail, &isNew, &createdAt); err != nil {
			return nil, err
		}
		ev.EpisodeID = episodeID.Int64
		ev.FromState = model.State(fromState)
		ev.ToState = model.State(toState)
		ev.Detail = detail.String
		ev.IsNew = isNew != 0
		ev.CreatedAt = parseTime(createdAt)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// --- Deletion ---

func (s *Store) CreateDeletionLog(ctx context.Context, dl *model.DeletionLog) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO deletion_logs (
			snapshot_title, snapshot_kind, snapshot_year, snapshot_poster_url,
			snapshot_request_manager_id, snapshot_content_db_id, snapshot_tvdb_id,
			snapshot_indexer_movies_id, snapshot_indexer_tv_id, snapshot_content_hash,
			snapshot_media_server_id, source, actor_id, actor_display_name, delete_files,
			initiated_at, completed_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dl.SnapshotTitle, string(dl.SnapshotKind), nullableInt(dl.SnapshotYear), nullableString(dl.SnapshotPosterURL),
		nullableString(dl.SnapshotRequestManagerID), nullableString(dl.SnapshotContentDBID), nullableString(dl.SnapshotTVDBID),
		nullableString(dl.SnapshotIndexerMoviesID), nullableString(dl.SnapshotIndexerTVID), nullableString(dl.SnapshotContentHash),
		nullableString(dl.SnapshotMediaServerID), string(dl.Source), nullableString(dl.ActorID), dl.ActorDisplayName,
		boolToInt(dl.DeleteFiles), formatTime(dl.InitiatedAt), formatTimePtr(dl.CompletedAt), string(dl.Status),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	dl.ID = id
	return nil
}

func (s *Store) UpdateDeletionLogStatus(ctx context.Context, id int64, status model.DeletionLogStatus, completedAt *time.Time) error {
	_, err := s.DB.ExecContext(ctx, "UPDATE deletion_logs SET status = ?, completed_at = ? WHERE id = ?",
		string(status), formatTimePtr(completedAt), id)
	return err
}

const deletionLogColumns = `id, snapshot_title, snapshot_kind, snapshot_year, snapshot_poster_url,
	snapshot_request_manager_id, snapshot_content_db_id, snapshot_tvdb_id,
	snapshot_indexer_movies_id, snapshot_indexer_tv_id, snapshot_content_hash,
	snapshot_media_server_id, source, actor_id, actor_display_name, delete_files,
	initiated_at, completed_at, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeletionLog(row rowScanner) (*model.DeletionLog, error) {
	var dl model.DeletionLog
	var year sql.NullInt64
	var posterURL, rmID, cdbID, tvdbID, imID, itID, hash, msID, actorID sql.NullString
	var kind, source, status string
	var deleteFiles int
	var initiatedAt string
	var completedAt sql.NullString

	err := row.Scan(&dl.ID, &dl.SnapshotTitle, &kind, &year, &posterURL, &rmID, &cdbID, &tvdbID, &imID, &itID,
		&hash, &msID, &source, &actorID, &dl.ActorDisplayName, &deleteFiles, &initiatedAt, &completedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	dl.SnapshotKind = model.MediaKind(kind)
	dl.SnapshotYear = int(year.Int64)
	dl.SnapshotPosterURL = posterURL.String
	dl.SnapshotRequestManagerID = rmID.String
	dl.SnapshotContentDBID = cdbID.String
	dl.SnapshotTVDBID = tvdbID.String
	dl.SnapshotIndexerMoviesID = imID.String
	dl.SnapshotIndexerTVID = itID.String
	dl.SnapshotContentHash = hash.String
	dl.SnapshotMediaServerID = msID.String
	dl.Source = model.DeletionSource(source)
	dl.ActorID = actorID.String
	dl.DeleteFiles = deleteFiles != 0
	dl.InitiatedAt = parseTime(initiatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		dl.CompletedAt = &t
	}
	dl.Status = model.DeletionLogStatus(status)
	return &dl, nil
}

func (s *Store) GetDeletionLog(ctx context.Context, id int64) (*model.DeletionLog, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+deletionLogColumns+" FROM deletion_logs WHERE id = ?", id)
	return scanDeletionLog(row)
}

// ListDeletionLogs returns the most recent deletion logs, newest first, for
// the admin dashboard's deletion history view (§6).
func (s *Store) ListDeletionLogs(ctx context.Context, limit int) ([]*model.DeletionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+deletionLogColumns+" FROM deletion_logs ORDER BY initiated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DeletionLog
	for rows.Next() {
		dl, err := scanDeletionLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

func (s *Store) AppendDeletionSyncEvent(ctx context.Context, ev *model.DeletionSyncEvent) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO deletion_sync_events (deletion_log_id, service, status, detail, error, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.DeletionLogID, string(ev.Service), string(ev.Status), nullableString(ev.Detail),
		nullableString(ev.Err), nullableString(ev.RawResponse), formatTime(ev.CreatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

func (s *Store) ListDeletionSyncEvents(ctx context.Context, deletionLogID int64) ([]*model.DeletionSyncEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, deletion_log_id, service, status, detail, error, raw_response, created_at
		FROM deletion_sync_events WHERE deletion_log_id = ? ORDER BY created_at ASC, id ASC`, deletionLogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DeletionSyncEvent
	for rows.Next() {
		var ev model.DeletionSyncEvent
		var service, status string
		var detail, errStr, raw sql.NullString
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.DeletionLogID, &service, &status, &detail, &errStr, &raw, &createdAt); err != nil {
			return nil, err
		}
		ev.Service = model.SyncService(service)
		ev.Status = model.SyncStatus(status)
		ev.Detail = detail.String
		ev.Err = errStr.String
		ev.RawResponse = raw.String
		ev.CreatedAt = parseTime(createdAt)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// --- Helpers ---

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func nullableInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
