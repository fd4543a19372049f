// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package deletion

import (
	"context"
	"strconv"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// runFanOut performs the acknowledged->confirmed/failed/skipped step for
// every applicable service, in fixed order (§4H.6). When sync is disabled
// every applicable service is recorded skipped without any outbound call.
func (o *Orchestrator) runFanOut(ctx context.Context, deletionLogID int64, req *model.MediaRequest, episodes []*model.Episode, contentHash string, services []model.SyncService, deleteFiles bool) {
	if !o.deps.EnableSync {
		for _, svc := range services {
			o.appendEvent(ctx, deletionLogID, svc, model.SyncSkipped, "deletion sync disabled", "", "")
		}
		return
	}

	for _, svc := range services {
		o.appendEvent(ctx, deletionLogID, svc, model.SyncAcknowledged, "", "", "")
		status, detail, errMsg := o.callService(ctx, svc, req, episodes, contentHash, deleteFiles)
		o.appendEvent(ctx, deletionLogID, svc, status, detail, errMsg, "")
	}
}

// callService issues the one outbound call svc needs to act on req's
// deletion, returning the resulting sync status (§4H.3/§4H.6).
func (o *Orchestrator) callService(ctx context.Context, svc model.SyncService, req *model.MediaRequest, episodes []*model.Episode, contentHash string, deleteFiles bool) (model.SyncStatus, string, string) {
	switch svc {
	case model.ServiceTorrentClient:
		return o.callTorrentClient(ctx, contentHash, episodes, deleteFiles)
	case model.ServiceIndexerMovies:
		return o.callIndexerMovies(ctx, req, deleteFiles)
	case model.ServiceIndexerTV:
		return o.callIndexerTV(ctx, req, deleteFiles)
	case model.ServiceAnimeService:
		return o.callAnimeService(req, deleteFiles)
	case model.ServiceMediaServer:
		return o.callMediaServer(ctx, deleteFiles)
	case model.ServiceRequestManager:
		return o.callRequestManager(ctx, req)
	default:
		return model.SyncNotApplicable, "unknown service", ""
	}
}

func (o *Orchestrator) callTorrentClient(ctx context.Context, contentHash string, episodes []*model.Episode, deleteFiles bool) (model.SyncStatus, string, string) {
	hashes := map[string]struct{}{contentHash: {}}
	for _, ep := range episodes {
		if ep.ContentHash != "" {
			hashes[ep.ContentHash] = struct{}{}
		}
	}
	list := make([]string, 0, len(hashes))
	for h := range hashes {
		if h != "" {
			list = append(list, h)
		}
	}
	if len(list) == 0 {
		return model.SyncNotNeeded, "no content hash recorded", ""
	}
	if err := o.deps.TorrentClient.DeleteTorrents(ctx, list, deleteFiles); err != nil {
		return model.SyncFailed, "", err.Error()
	}
	return model.SyncConfirmed, "torrent(s) removed, verification pending", ""
}

func (o *Orchestrator) callIndexerMovies(ctx context.Context, req *model.MediaRequest, deleteFiles bool) (model.SyncStatus, string, string) {
	if req.IndexerMoviesID == "" {
		return model.SyncNotNeeded, "no indexer-A id recorded", ""
	}
	id, err := strconv.ParseInt(req.IndexerMoviesID, 10, 64)
	if err != nil {
		return model.SyncFailed, "", "malformed indexer-A id: " + err.Error()
	}
	if err := o.deps.IndexerMovies.DeleteMovie(ctx, id, deleteFiles); err != nil {
		return model.SyncFailed, "", err.Error()
	}
	return model.SyncConfirmed, "movie removed, verification pending", ""
}

func (o *Orchestrator) callIndexerTV(ctx context.Context, req *model.MediaRequest, deleteFiles bool) (model.SyncStatus, string, string) {
	if req.IndexerTVID == "" {
		return model.SyncNotNeeded, "no indexer-B id recorded", ""
	}
	id, err := strconv.ParseInt(req.IndexerTVID, 10, 64)
	if err != nil {
		return model.SyncFailed, "", "malformed indexer-B id: " + err.Error()
	}
	if err := o.deps.IndexerTV.DeleteSeries(ctx, id, deleteFiles); err != nil {
		return model.SyncFailed, "", err.Error()
	}
	return model.SyncConfirmed, "series removed, verification pending", ""
}

// callAnimeService has no delete or file-match API to call (§4H.3): the
// anime service discovers a removed file on its own next library scan. The
// step records the intended outcome without an outbound request.
func (o *Orchestrator) callAnimeService(req *model.MediaRequest, deleteFiles bool) (model.SyncStatus, string, string) {
	if !deleteFiles {
		return model.SyncSkipped, "file retained, no anime-service action required", ""
	}
	return model.SyncConfirmed, "file removal will be picked up by the next anime-service scan", ""
}

// callMediaServer triggers a library rescan rather than a targeted delete:
// the media server has no per-item delete endpoint, and a rescan is how it
// learns the file is gone (§4H.3). When delete_files=false the file stays on
// disk, so there is nothing for a rescan to discover missing (§4H.6).
func (o *Orchestrator) callMediaServer(ctx context.Context, deleteFiles bool) (model.SyncStatus, string, string) {
	if !deleteFiles {
		return model.SyncSkipped, "file retained, no library rescan required", ""
	}
	if err := o.deps.MediaServer.TriggerLibraryRescan(ctx); err != nil {
		return model.SyncFailed, "", err.Error()
	}
	return model.SyncConfirmed, "library rescan triggered, verification pending", ""
}

func (o *Orchestrator) callRequestManager(ctx context.Context, req *model.MediaRequest) (model.SyncStatus, string, string) {
	if req.RequestManagerID == "" {
		return model.SyncNotNeeded, "no request-manager id recorded", ""
	}
	id, err := strconv.ParseInt(req.RequestManagerID, 10, 64)
	if err != nil {
		return model.SyncFailed, "", "malformed request-manager id: " + err.Error()
	}
	if err := o.deps.RequestManager.DeleteRequest(ctx, id); err != nil {
		return model.SyncFailed, "", err.Error()
	}
	// The request-manager client has no get-by-id call to re-check against,
	// so there is nothing for the verification pass to confirm; treat the
	// delete call's success as final.
	return model.SyncVerified, "request removed", ""
}
