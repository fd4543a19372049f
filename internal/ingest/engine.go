// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/deletion"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/ports"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/metrics"
)

// Engine holds the dependencies every adapter shares: the store, the
// correlator, the broadcast bus, and the deletion orchestrator (for the two
// external-triggered-deletion sources). One Engine is built at startup and
// embedded by every per-source Handler.
type Engine struct {
	Store      *store.Store
	Correlator *correlator.Correlator
	Bus        ports.Bus
	MediaServer *mediaserver.Client
	Deletion   *deletion.Orchestrator
	Logger     zerolog.Logger
}

// eventTargets maps each lifecycle event to the single state it always
// drives a record to, regardless of the record's current state. Used only to
// detect an idempotent replay (§4C/§8): a request already sitting at an
// event's target state is a no-op, not an illegal transition.
var eventTargets = map[lifecycle.EventKind]model.State{
	lifecycle.EvApproved:      model.StateApproved,
	lifecycle.EvGrabbed:       model.StateGrabbing,
	lifecycle.EvDownloadStarted: model.StateDownloading,
	lifecycle.EvDownloaded:    model.StateDownloaded,
	lifecycle.EvImporting:     model.StateImporting,
	lifecycle.EvAnimeMatching: model.StateAnimeMatching,
	lifecycle.EvAvailable:     model.StateAvailable,
	lifecycle.EvFailed:        model.StateFailed,
	lifecycle.EvRetry:         model.StateApproved,
}

// transitionRequest drives req through ev, persists the new state plus its
// TimelineEvent, and reports whether a mutation actually happened (false for
// an idempotent replay). Illegal transitions are logged and swallowed per
// §4C/§7: the inbound event is always considered processed.
func (e *Engine) transitionRequest(ctx context.Context, req *model.MediaRequest, ev lifecycle.Event, emitter string) (bool, error) {
	if target, ok := eventTargets[ev.Kind]; ok && req.State == target {
		return false, nil
	}

	from := req.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchRequest(req, ev, now)
	if err != nil {
		e.Logger.Info().Err(err).Int64("request_id", req.ID).Str("from", string(from)).Str("emitter", emitter).Msg("ingest: illegal transition, event discarded")
		metrics.IncTransition("request", string(from), "rejected")
		return false, nil
	}

	err = e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Store.UpdateRequestTx(ctx, tx, req); err != nil {
			return err
		}
		return e.Store.AppendTimelineEventTx(ctx, tx, &model.TimelineEvent{
			RequestID: req.ID,
			FromState: tr.From,
			ToState:   tr.To,
			Emitter:   emitter,
			EventType: emitter + ".transition",
			Detail:    ev.Detail,
			CreatedAt: now,
		})
	})
	if err != nil {
		return false, err
	}
	metrics.IncTransition("request", string(tr.To), "applied")
	return true, nil
}

// transitionEpisode is transitionRequest's episode-level counterpart.
func (e *Engine) transitionEpisode(ctx context.Context, ep *model.Episode, ev lifecycle.Event, emitter string) (bool, error) {
	if target, ok := eventTargets[ev.Kind]; ok && ep.State == target {
		return false, nil
	}

	from := ep.State
	now := time.Now().UTC()
	tr, err := lifecycle.DispatchEpisode(ep, ev, now)
	if err != nil {
		e.Logger.Info().Err(err).Int64("episode_id", ep.ID).Str("from", string(from)).Str("emitter", emitter).Msg("ingest: illegal episode transition, event discarded")
		metrics.IncTransition("episode", string(from), "rejected")
		return false, nil
	}

	err = e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Store.UpdateEpisodeTx(ctx, tx, ep); err != nil {
			return err
		}
		return e.Store.AppendTimelineEventTx(ctx, tx, &model.TimelineEvent{
			RequestID: ep.RequestID,
			EpisodeID: ep.ID,
			FromState: tr.From,
			ToState:   tr.To,
			Emitter:   emitter,
			EventType: emitter + ".transition",
			Detail:    ev.Detail,
			CreatedAt: now,
		})
	})
	if err != nil {
		return false, err
	}
	metrics.IncTransition("episode", string(tr.To), "applied")
	return true, nil
}

// reaggregate recomputes req's state from its episodes and drives it through
// the same transition machinery as any other event (§4D: "Request
// transitions produced by aggregation are fed through the state machine with
// the same validation").
func (e *Engine) reaggregate(ctx context.Context, req *model.MediaRequest, episodes []*model.Episode, emitter string) error {
	target := model.AggregateState(episodes)
	ev, ok := aggregationEvent(target)
	if !ok {
		return nil
	}
	_, err := e.transitionRequest(ctx, req, lifecycle.Event{Kind: ev, Detail: "episode aggregation"}, emitter)
	return err
}

// aggregationEvent maps an aggregated target state back to the event that
// would legally drive a request there, since DispatchRequest is event-keyed
// rather than state-keyed.
func aggregationEvent(target model.State) (lifecycle.EventKind, bool) {
	switch target {
	case model.StateDownloading:
		return lifecycle.EvDownloadStarted, true
	case model.StateDownloaded:
		return lifecycle.EvDownloaded, true
	case model.StateImporting:
		return lifecycle.EvImporting, true
	case model.StateAnimeMatching:
		return lifecycle.EvAnimeMatching, true
	case model.StateAvailable:
		return lifecycle.EvAvailable, true
	case model.StateFailed:
		return lifecycle.EvFailed, true
	default:
		return 0, false
	}
}

// broadcast publishes a mutation notice. Must only be called after the
// triggering transaction has committed (§4I).
func (e *Engine) broadcast(ctx context.Context, eventType string, requestID int64) {
	_ = e.Bus.Publish(ctx, "requests", map[string]any{
		"event_type": eventType,
		"request_id": requestID,
	})
}

// detach strips ctx's cancellation/deadline while keeping its values, for a
// background task that must outlive the inbound request that spawned it.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// recordIngest records the terminal outcome of handling one inbound event
// from source (§7/§9 observability surface).
func (e *Engine) recordIngest(source, outcome string) {
	metrics.IncIngestEvent(source, outcome)
}

// correlate resolves cand and classifies the result for logging/metrics per
// the error taxonomy in §7: CorrelationMiss is info-level and not an error to
// the caller, CorrelationAmbiguous is warn-level and never mutates state.
func (e *Engine) correlate(ctx context.Context, source string, cand correlator.Candidate) (*correlator.Result, error) {
	res, err := e.Correlator.Resolve(ctx, cand)
	switch {
	case err == nil:
		metrics.IncCorrelatorOutcome("matched")
		return res, nil
	case err == correlator.ErrNotFound:
		metrics.IncCorrelatorOutcome("not_found")
		e.Logger.Info().Str("source", source).Msg("ingest: correlation miss")
		e.recordIngest(source, "correlation-miss")
		return nil, err
	case err == correlator.ErrAmbiguous:
		metrics.IncCorrelatorOutcome("ambiguous")
		e.Logger.Warn().Str("source", source).Msg("ingest: correlation ambiguous, event discarded")
		e.recordIngest(source, "correlation-ambiguous")
		return nil, err
	default:
		return nil, err
	}
}
