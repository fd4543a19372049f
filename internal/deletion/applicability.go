// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package deletion

import "github.com/arrwatch/arrwatch/internal/domain/request/model"

// fanOutOrder is the fixed service order deletion calls run in (§4H.6).
var fanOutOrder = []model.SyncService{
	model.ServiceTorrentClient,
	model.ServiceIndexerMovies,
	model.ServiceIndexerTV,
	model.ServiceAnimeService,
	model.ServiceMediaServer,
	model.ServiceRequestManager,
}

// applicableServices implements the applicability matrix from §4H.3: which
// of the six services should receive a deletion step for req, in fan-out
// order. Kind and is_anime decide indexer-A vs indexer-B and whether the
// anime service participates; a known content hash is required for the
// torrent client.
func applicableServices(req *model.MediaRequest, contentHash string) []model.SyncService {
	isAnime := req.IsAnime == model.TristateTrue
	var out []model.SyncService
	for _, svc := range fanOutOrder {
		switch svc {
		case model.ServiceTorrentClient:
			if contentHash != "" {
				out = append(out, svc)
			}
		case model.ServiceIndexerMovies:
			if req.Kind == model.KindMovie {
				out = append(out, svc)
			}
		case model.ServiceIndexerTV:
			if req.Kind == model.KindTV {
				out = append(out, svc)
			}
		case model.ServiceAnimeService:
			if isAnime {
				out = append(out, svc)
			}
		case model.ServiceMediaServer, model.ServiceRequestManager:
			out = append(out, svc)
		}
	}
	return out
}

// firstNonEmptyContentHash returns req's own content hash if set, else the
// first non-empty hash among its episodes (TV season packs share one hash
// across episodes but the request row itself may never have it set).
func firstNonEmptyContentHash(req *model.MediaRequest, episodes []*model.Episode) string {
	if req.ContentHash != "" {
		return req.ContentHash
	}
	for _, ep := range episodes {
		if ep.ContentHash != "" {
			return ep.ContentHash
		}
	}
	return ""
}
