// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package deletion implements the coordinated fan-out deletion across the
// six external collaborators described in §4H: snapshot, hard-delete,
// per-service acknowledge/confirm, and a delayed verification pass.
package deletion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/clients/animeservice"
	"github.com/arrwatch/arrwatch/internal/clients/indexermovies"
	"github.com/arrwatch/arrwatch/internal/clients/indexertv"
	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/clients/requestmanager"
	"github.com/arrwatch/arrwatch/internal/clients/torrentclient"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/metrics"
)

// verificationDelay is how long the orchestrator waits after a confirmed
// deletion before attempting to re-fetch the entity from each service
// (§4H step 7).
const verificationDelay = 30 * time.Second

// Deps collects everything the orchestrator needs to fan a deletion out
// across the six external collaborators.
type Deps struct {
	Store          *store.Store
	Bus            ports.Bus
	Audit          *audit.Logger
	TorrentClient  *torrentclient.Client
	IndexerMovies  *indexermovies.Client
	IndexerTV      *indexertv.Client
	AnimeService   *animeservice.Client
	MediaServer    *mediaserver.Client
	RequestManager *requestmanager.Client
	EnableSync     bool
	Logger         zerolog.Logger

	// Background is the long-lived context the 30s-delayed verification
	// pass runs under, outliving the HTTP request that triggered the
	// deletion (daemon's lifecycle context, not a per-request one).
	Background context.Context
}

// Orchestrator fans a deletion out across the applicable external services
// in the fixed order from §4H.6.
type Orchestrator struct {
	deps Deps
}

// New builds an Orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// InitiateDashboard starts a dashboard-triggered deletion (single or part of
// a bulk request), authenticated by the caller.
func (o *Orchestrator) InitiateDashboard(ctx context.Context, requestID int64, actorID, actorName string, deleteFiles bool) (*model.DeletionLog, error) {
	return o.initiate(ctx, requestID, model.SourceDashboard, actorID, actorName, deleteFiles)
}

// InitiateExternal starts a deletion triggered by an inbound webhook from
// one of the external services (indexer delete, media-server item-removed).
// The actor display name is resolved from the fixed table in §4H.
func (o *Orchestrator) InitiateExternal(ctx context.Context, requestID int64, source model.DeletionSource, deleteFiles bool) (*model.DeletionLog, error) {
	return o.initiate(ctx, requestID, source, "", model.ExternalActorDisplay(source), deleteFiles)
}

func (o *Orchestrator) initiate(ctx context.Context, requestID int64, source model.DeletionSource, actorID, actorName string, deleteFiles bool) (*model.DeletionLog, error) {
	req, err := o.deps.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("deletion: load request %d: %w", requestID, err)
	}
	episodes, err := o.deps.Store.ListEpisodesByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("deletion: load episodes for request %d: %w", requestID, err)
	}
	contentHash := firstNonEmptyContentHash(req, episodes)

	now := time.Now()
	dl := &model.DeletionLog{
		SnapshotTitle:            req.Title,
		SnapshotKind:             req.Kind,
		SnapshotYear:             req.Year,
		SnapshotPosterURL:        req.PosterURL,
		SnapshotRequestManagerID: req.RequestManagerID,
		SnapshotContentDBID:      req.ContentDBID,
		SnapshotTVDBID:           req.TVDBID,
		SnapshotIndexerMoviesID:  req.IndexerMoviesID,
		SnapshotIndexerTVID:      req.IndexerTVID,
		SnapshotContentHash:      contentHash,
		SnapshotMediaServerID:    req.MediaServerID,
		Source:                   source,
		ActorID:                  actorID,
		ActorDisplayName:         actorName,
		DeleteFiles:              deleteFiles,
		InitiatedAt:              now,
		Status:                   model.DeletionInProgress,
	}
	if err := o.deps.Store.CreateDeletionLog(ctx, dl); err != nil {
		return nil, fmt.Errorf("deletion: create deletion log: %w", err)
	}

	services := applicableServices(req, contentHash)
	for _, svc := range services {
		o.appendEvent(ctx, dl.ID, svc, model.SyncPending, "", "", "")
	}

	if err := o.deps.Store.DeleteRequest(ctx, requestID); err != nil {
		return nil, fmt.Errorf("deletion: hard-delete request %d: %w", requestID, err)
	}

	o.deps.Audit.DeletionStart(actorIDOrSource(actorID, source), requestID, syncServiceStrings(services))
	o.broadcast(ctx, "deletion-started", requestID, dl.ID)

	o.runFanOut(ctx, dl.ID, req, episodes, contentHash, services, deleteFiles)
	o.checkCompletion(ctx, dl.ID, requestID, now)

	if o.hasPendingVerification(ctx, dl.ID) {
		go o.scheduleVerification(dl.ID, requestID)
	}

	return dl, nil
}

func actorIDOrSource(actorID string, source model.DeletionSource) string {
	if actorID != "" {
		return actorID
	}
	return string(source)
}

func syncServiceStrings(services []model.SyncService) []string {
	out := make([]string, 0, len(services))
	for _, s := range services {
		out = append(out, string(s))
	}
	return out
}

func (o *Orchestrator) appendEvent(ctx context.Context, deletionLogID int64, svc model.SyncService, status model.SyncStatus, detail, errMsg, raw string) {
	ev := &model.DeletionSyncEvent{
		DeletionLogID: deletionLogID,
		Service:       svc,
		Status:        status,
		Detail:        detail,
		Err:           errMsg,
		RawResponse:   raw,
		CreatedAt:     time.Now(),
	}
	if err := o.deps.Store.AppendDeletionSyncEvent(ctx, ev); err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Str("service", string(svc)).Msg("deletion: failed to append sync event")
		return
	}
	if status.IsTerminal() {
		metrics.IncDeletionOutcome(string(svc), string(status))
	}
	if status == model.SyncNotNeeded {
		o.deps.Logger.Warn().Int64("deletion_log_id", deletionLogID).Str("service", string(svc)).Msg("deletion: service applicable but correlation id missing")
	}
}

func (o *Orchestrator) broadcast(ctx context.Context, eventType string, requestID, deletionLogID int64) {
	_ = o.deps.Bus.Publish(ctx, "requests", map[string]any{
		"event_type":      eventType,
		"request_id":      requestID,
		"deletion_log_id": deletionLogID,
	})
}

// checkCompletion finalizes the DeletionLog once every sync event has
// reached a genuinely terminal status (§4H step 8). Confirmed is excluded
// from model.SyncStatus.IsTerminal on purpose: a log cannot complete while
// any service is still waiting on its verification pass.
func (o *Orchestrator) checkCompletion(ctx context.Context, deletionLogID, requestID int64, initiatedAt time.Time) {
	events, err := o.deps.Store.ListDeletionSyncEvents(ctx, deletionLogID)
	if err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Msg("deletion: failed to list sync events for completion check")
		return
	}

	latest := latestPerService(events)
	succeeded, failed := 0, 0
	for _, ev := range latest {
		if !ev.Status.IsTerminal() {
			return
		}
		if ev.Status == model.SyncFailed {
			failed++
		} else {
			succeeded++
		}
	}

	status := model.DeletionComplete
	if failed > 0 {
		status = model.DeletionIncomplete
	}
	completedAt := time.Now()
	if err := o.deps.Store.UpdateDeletionLogStatus(ctx, deletionLogID, status, &completedAt); err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Msg("deletion: failed to finalize deletion log")
		return
	}

	durationMS := completedAt.Sub(initiatedAt).Milliseconds()
	actor := actorForLog(ctx, o, deletionLogID)
	if failed > 0 {
		o.deps.Audit.DeletionError(actor, requestID, fmt.Sprintf("%d of %d services failed", failed, failed+succeeded))
	}
	o.deps.Audit.DeletionComplete(actor, requestID, succeeded, failed, durationMS)
	o.broadcast(ctx, "deletion-completed", requestID, deletionLogID)
}

func actorForLog(ctx context.Context, o *Orchestrator, deletionLogID int64) string {
	dl, err := o.deps.Store.GetDeletionLog(ctx, deletionLogID)
	if err != nil {
		return "unknown"
	}
	if dl.ActorID != "" {
		return dl.ActorID
	}
	return string(dl.Source)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
