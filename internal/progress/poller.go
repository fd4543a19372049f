// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package progress implements the adaptive torrent-progress poller (§4F):
// it polls the torrent client on a fast/slow cadence, maps each torrent back
// onto the active request or episodes it belongs to by content hash, and
// drives the GRABBING->DOWNLOADING->DOWNLOADED transitions as the download
// advances.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/clients/torrentclient"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/metrics"
)

const emitter = "torrent-progress"

// significantDelta is the minimum percentage-point change worth a debug log
// line, so routine polling doesn't flood the log at info-adjacent volume.
const significantDelta = 5.0

// eventTargets mirrors internal/ingest's idempotency guard: a request or
// episode already sitting at an event's target state is a no-op rather than
// an illegal transition.
var eventTargets = map[lifecycle.EventKind]model.State{
	lifecycle.EvDownloadStarted: model.StateDownloading,
	lifecycle.EvDownloaded:      model.StateDownloaded,
}

// Deps collects the Poller's dependencies.
type Deps struct {
	Store         *store.Store
	TorrentClient *torrentclient.Client
	Bus           ports.Bus
	PollFast      time.Duration
	PollSlow      time.Duration
	Logger        zerolog.Logger
}

// Poller implements daemon.Runnable, polling the torrent client at an
// adaptive interval for as long as ctx stays alive.
type Poller struct {
	deps Deps

	mu          sync.Mutex
	lastPercent map[string]float64
}

// New builds a Poller.
func New(deps Deps) *Poller {
	return &Poller{deps: deps, lastPercent: make(map[string]float64)}
}

// Run polls until ctx is cancelled. The interval narrows to PollFast while
// at least one matched torrent is still actively downloading, and widens
// back to PollSlow once nothing is (§4F).
func (p *Poller) Run(ctx context.Context) error {
	interval := p.deps.PollSlow
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if p.pollOnce(ctx) {
				interval = p.deps.PollFast
			} else {
				interval = p.deps.PollSlow
			}
			timer.Reset(interval)
		}
	}
}

// pollOnce runs a single poll cycle and reports whether any matched torrent
// is still actively downloading (neither complete nor seeding).
func (p *Poller) pollOnce(ctx context.Context) bool {
	torrents, err := p.deps.TorrentClient.GetAllTorrents(ctx)
	if err != nil {
		p.deps.Logger.Warn().Err(err).Msg("progress: failed to list torrents")
		return false
	}

	anyActive := false
	for _, t := range torrents {
		pct := clampPercent(t.Progress)
		matched, inProgress := p.handleTorrent(ctx, t, pct)
		if matched {
			p.logDelta(t.Hash, pct)
		}
		if matched && inProgress {
			anyActive = true
		}
	}
	return anyActive
}

// handleTorrent maps t onto its active request or episodes and drives the
// appropriate transition. It returns whether t matched anything, and whether
// the matched record is still actively downloading.
func (p *Poller) handleTorrent(ctx context.Context, t torrentclient.Torrent, pct float64) (matched, inProgress bool) {
	if t.Hash == "" {
		return false, false
	}

	if req, err := p.deps.Store.FindActiveByCorrelationID(ctx, "content_hash", t.Hash); err == nil {
		p.applyRequestProgress(ctx, req, t, pct)
		return true, pct < 100 && !t.IsSeeding
	} else if !errors.Is(err, store.ErrNotFound) {
		p.deps.Logger.Error().Err(err).Str("hash", t.Hash).Msg("progress: lookup by content hash failed")
		return false, false
	}

	match, err := p.deps.Store.FindActiveEpisodeByContentHash(ctx, t.Hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.deps.Logger.Error().Err(err).Str("hash", t.Hash).Msg("progress: episode lookup by content hash failed")
		}
		return false, false
	}
	p.applyEpisodeProgress(ctx, match.RequestID, t, pct)
	return true, pct < 100 && !t.IsSeeding
}

func (p *Poller) applyRequestProgress(ctx context.Context, req *model.MediaRequest, t torrentclient.Torrent, pct float64) {
	if ev, ok := targetEvent(pct, t.IsSeeding); ok {
		if err := p.transitionRequest(ctx, req, ev); err != nil {
			p.deps.Logger.Error().Err(err).Int64("request_id", req.ID).Msg("progress: failed to transition request")
			return
		}
	}
	p.broadcastProgress(ctx, req.ID, pct)
}

func (p *Poller) applyEpisodeProgress(ctx context.Context, requestID int64, t torrentclient.Torrent, pct float64) {
	episodes, err := p.deps.Store.ListEpisodesByRequest(ctx, requestID)
	if err != nil {
		p.deps.Logger.Error().Err(err).Int64("request_id", requestID).Msg("progress: failed to list episodes")
		return
	}

	ev, ok := targetEvent(pct, t.IsSeeding)
	if ok {
		for _, ep := range episodes {
			if ep.ContentHash != t.Hash {
				continue
			}
			if err := p.transitionEpisode(ctx, ep, ev); err != nil {
				p.deps.Logger.Error().Err(err).Int64("episode_id", ep.ID).Msg("progress: failed to transition episode")
				return
			}
		}
	}

	req, err := p.deps.Store.GetRequest(ctx, requestID)
	if err != nil {
		p.deps.Logger.Error().Err(err).Int64("request_id", requestID).Msg("progress: failed to reload request")
		return
	}
	if err := p.reaggregate(ctx, req, episodes); err != nil {
		p.deps.Logger.Error().Err(err).Int64("request_id", requestID).Msg("progress: failed to reaggregate")
		return
	}
	p.broadcastProgress(ctx, requestID, pct)
}

// targetEvent maps a clamped percentage and seeding flag onto the lifecycle
// event it should drive, if any (§4F): the first positive progress moves a
// request out of GRABBING, completion or a seeding-class state moves it to
// DOWNLOADED.
func targetEvent(pct float64, seeding bool) (lifecycle.Event, bool) {
	switch {
	case pct >= 100 || seeding:
		return lifecycle.Event{Kind: lifecycle.EvDownloaded, Detail: "torrent complete"}, true
	case pct > 0:
		return lifecycle.Event{Kind: lifecycle.EvDownloadStarted, Detail: "torrent downloading"}, true
	default:
		return lifecycle.Event{}, false
	}
}

func (p *Poller) transitionRequest(ctx context.Context, req *model.MediaRequest, ev lifecycle.Event) error {
	if target, ok := eventTargets[ev.Kind]; ok && req.State == target {
		return nil
	}
	from := req.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchRequest(req, ev, now)
	if err != nil {
		metrics.IncTransition("request", string(from), "rejected")
		return nil
	}
	if err := p.deps.Store.UpdateRequest(ctx, req); err != nil {
		return err
	}
	if err := p.deps.Store.AppendTimelineEvent(ctx, &model.TimelineEvent{
		RequestID: req.ID, FromState: tr.From, ToState: tr.To, Emitter: emitter,
		EventType: emitter + ".transition", Detail: ev.Detail, CreatedAt: now,
	}); err != nil {
		return err
	}
	metrics.IncTransition("request", string(tr.To), "applied")
	return nil
}

func (p *Poller) transitionEpisode(ctx context.Context, ep *model.Episode, ev lifecycle.Event) error {
	if target, ok := eventTargets[ev.Kind]; ok && ep.State == target {
		return nil
	}
	from := ep.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchEpisode(ep, ev, now)
	if err != nil {
		metrics.IncTransition("episode", string(from), "rejected")
		return nil
	}
	if err := p.deps.Store.UpdateEpisode(ctx, ep); err != nil {
		return err
	}
	if err := p.deps.Store.AppendTimelineEvent(ctx, &model.TimelineEvent{
		RequestID: ep.RequestID, EpisodeID: ep.ID, FromState: tr.From, ToState: tr.To, Emitter: emitter,
		EventType: emitter + ".transition", Detail: ev.Detail, CreatedAt: now,
	}); err != nil {
		return err
	}
	metrics.IncTransition("episode", string(tr.To), "applied")
	return nil
}

// reaggregate recomputes req's state from episodes, same as internal/ingest's
// own aggregation step (§4D).
func (p *Poller) reaggregate(ctx context.Context, req *model.MediaRequest, episodes []*model.Episode) error {
	target := model.AggregateState(episodes)
	ev, ok := aggregationEvent(target)
	if !ok {
		return nil
	}
	return p.transitionRequest(ctx, req, ev)
}

func aggregationEvent(target model.State) (lifecycle.Event, bool) {
	switch target {
	case model.StateDownloading:
		return lifecycle.Event{Kind: lifecycle.EvDownloadStarted, Detail: "episode aggregation"}, true
	case model.StateDownloaded:
		return lifecycle.Event{Kind: lifecycle.EvDownloaded, Detail: "episode aggregation"}, true
	default:
		return lifecycle.Event{}, false
	}
}

func (p *Poller) broadcastProgress(ctx context.Context, requestID int64, pct float64) {
	_ = p.deps.Bus.Publish(ctx, "requests", map[string]any{
		"event_type": "request-progress",
		"request_id": requestID,
		"percent":    pct,
	})
}

func (p *Poller) logDelta(hash string, pct float64) {
	p.mu.Lock()
	last, seen := p.lastPercent[hash]
	p.lastPercent[hash] = pct
	p.mu.Unlock()

	if seen && abs(pct-last) < significantDelta {
		return
	}
	p.deps.Logger.Debug().Str("hash", hash).Float64("percent", pct).Msg("progress: torrent progress updated")
}

func clampPercent(progress float64) float64 {
	pct := progress * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
