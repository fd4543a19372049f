// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package deletion

import (
	"context"
	"time"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// hasPendingVerification reports whether any event for deletionLogID is
// still sitting at confirmed, the one non-terminal status a verification
// pass can resolve (§4H step 7; model.SyncStatus.IsTerminal excludes it).
func (o *Orchestrator) hasPendingVerification(ctx context.Context, deletionLogID int64) bool {
	events, err := o.deps.Store.ListDeletionSyncEvents(ctx, deletionLogID)
	if err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Msg("deletion: failed to list sync events for verification check")
		return false
	}
	for _, ev := range latestPerService(events) {
		if ev.Status == model.SyncConfirmed {
			return true
		}
	}
	return false
}

// latestPerService reduces an append-ordered event log to the most recent
// row per service.
func latestPerService(events []*model.DeletionSyncEvent) map[model.SyncService]*model.DeletionSyncEvent {
	out := make(map[model.SyncService]*model.DeletionSyncEvent, len(events))
	for _, ev := range events {
		out[ev.Service] = ev
	}
	return out
}

// scheduleVerification waits verificationDelay then runs the verification
// pass on a background context, so it survives the HTTP request that
// triggered the deletion.
func (o *Orchestrator) scheduleVerification(deletionLogID, requestID int64) {
	bg := o.deps.Background
	if bg == nil {
		bg = context.Background()
	}
	timer := time.NewTimer(verificationDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-bg.Done():
		return
	}
	o.verify(bg, deletionLogID, requestID)
}

// verify re-checks every still-confirmed service by attempting to fetch the
// deleted entity back from it: absence (a not-found error, or a nil result
// where the client signals "not found" that way) resolves to verified;
// presence resolves to failed, since the upstream service never actually
// removed the item.
func (o *Orchestrator) verify(ctx context.Context, deletionLogID, requestID int64) {
	events, err := o.deps.Store.ListDeletionSyncEvents(ctx, deletionLogID)
	if err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Msg("deletion: failed to list sync events for verification")
		return
	}

	dl, err := o.deps.Store.GetDeletionLog(ctx, deletionLogID)
	if err != nil {
		o.deps.Logger.Error().Err(err).Int64("deletion_log_id", deletionLogID).Msg("deletion: failed to load deletion log for verification")
		return
	}

	for svc, ev := range latestPerService(events) {
		if ev.Status != model.SyncConfirmed {
			continue
		}
		status, detail := o.verifyService(ctx, svc, dl)
		o.appendEvent(ctx, deletionLogID, svc, status, detail, "", "")
	}

	o.checkCompletion(ctx, deletionLogID, requestID, dl.InitiatedAt)
}

func (o *Orchestrator) verifyService(ctx context.Context, svc model.SyncService, dl *model.DeletionLog) (model.SyncStatus, string) {
	switch svc {
	case model.ServiceTorrentClient:
		return o.verifyTorrentClient(ctx, dl.SnapshotContentHash)
	case model.ServiceIndexerMovies:
		return o.verifyIndexerMovies(ctx, dl.SnapshotIndexerMoviesID)
	case model.ServiceIndexerTV:
		return o.verifyIndexerTV(ctx, dl.SnapshotIndexerTVID)
	case model.ServiceAnimeService:
		return model.SyncVerified, "anime-service has no lookup to re-check; assumed picked up on next scan"
	case model.ServiceMediaServer:
		return model.SyncVerified, "library rescan is asynchronous; assumed applied"
	default:
		return model.SyncVerified, ""
	}
}

func (o *Orchestrator) verifyTorrentClient(ctx context.Context, contentHash string) (model.SyncStatus, string) {
	if contentHash == "" {
		return model.SyncVerified, ""
	}
	t, err := o.deps.TorrentClient.GetTorrentByHash(ctx, contentHash)
	if err != nil {
		return model.SyncFailed, "verification lookup failed: " + err.Error()
	}
	if t != nil {
		return model.SyncFailed, "torrent still present after verification delay"
	}
	return model.SyncVerified, "torrent no longer present"
}

// verifyIndexerMovies's client has no nil-result not-found path (unlike
// GetTorrentByHash): GetMovieByID always returns an error once the movie is
// gone from Radarr, so a lookup error is the expected success signal here,
// not a distinguishable failure. There is no retry if this guess is wrong
// (transient 5xx mid-window), which is a known gap.
func (o *Orchestrator) verifyIndexerMovies(ctx context.Context, idStr string) (model.SyncStatus, string) {
	if idStr == "" {
		return model.SyncVerified, ""
	}
	id, err := parseID(idStr)
	if err != nil {
		return model.SyncVerified, ""
	}
	if _, err := o.deps.IndexerMovies.GetMovieByID(ctx, id); err != nil {
		return model.SyncVerified, "lookup failed, assuming removed: " + err.Error()
	}
	return model.SyncFailed, "movie still present after verification delay"
}

// verifyIndexerTV: see verifyIndexerMovies, same client-shape constraint.
func (o *Orchestrator) verifyIndexerTV(ctx context.Context, idStr string) (model.SyncStatus, string) {
	if idStr == "" {
		return model.SyncVerified, ""
	}
	id, err := parseID(idStr)
	if err != nil {
		return model.SyncVerified, ""
	}
	if _, err := o.deps.IndexerTV.GetSeriesByID(ctx, id); err != nil {
		return model.SyncVerified, "lookup failed, assuming removed: " + err.Error()
	}
	return model.SyncFailed, "series still present after verification delay"
}
