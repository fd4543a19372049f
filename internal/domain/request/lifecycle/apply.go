// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

// ApplyToRequest mutates req according to tr. Setting AvailableAt only
// happens on the edge into AVAILABLE, never touched again afterwards.
func ApplyToRequest(req *model.MediaRequest, tr Transition, now time.Time) {
	req.State = tr.To
	req.UpdatedAt = now
	if tr.To == model.StateAvailable && req.AvailableAt == nil {
		req.AvailableAt = &now
	}
}

// ApplyToEpisode mutates ep according to tr.
func ApplyToEpisode(ep *model.Episode, tr Transition, now time.Time) {
	ep.State = tr.To
	ep.UpdatedAt = now
}
