// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/domain/request/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "requests.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Pragmas(t *testing.T) {
	s := openTestStore(t)

	var mode string
	require.NoError(t, s.DB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.DB.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	require.Equal(t, 5000, timeout)
}

func TestStore_CreateAndGetRequest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	req := &model.MediaRequest{
		RequestManagerID: "rm-1",
		Title:            "Example Movie",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		State:            model.StateRequested,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.CreateRequest(ctx, req))
	require.NotZero(t, req.ID)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, "Example Movie", got.Title)
	require.Equal(t, model.StateRequested, got.State)
}

func TestStore_CreateRequest_DuplicateActiveRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	mk := func() *model.MediaRequest {
		return &model.MediaRequest{
			RequestManagerID: "rm-dup",
			Title:            "Dup",
			Kind:             model.KindMovie,
			IsAnime:          model.TristateFalse,
			State:            model.StateRequested,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	require.NoError(t, s.CreateRequest(ctx, mk()))
	err := s.CreateRequest(ctx, mk())
	require.ErrorIs(t, err, ErrDuplicateActive)
}

func TestStore_CreateRequest_AllowsNewActiveAfterTerminal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	first := &model.MediaRequest{
		RequestManagerID: "rm-2",
		Title:            "First",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		State:            model.StateAvailable,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.CreateRequest(ctx, first))

	second := &model.MediaRequest{
		RequestManagerID: "rm-2",
		Title:            "Re-request",
		Kind:             model.KindMovie,
		IsAnime:          model.TristateFalse,
		State:            model.StateRequested,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.CreateRequest(ctx, second))
}

func TestStore_UpdateRequestPersists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	req := &model.MediaRequest{
		Title:     "Needs Update",
		Kind:      model.KindTV,
		IsAnime:   model.TristateUnknown,
		State:     model.StateRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateRequest(ctx, req))

	req.State = model.StateApproved
	req.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateRequest(ctx, req))

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateApproved, got.State)
}

func TestStore_FindActiveByCorrelationID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	req := &model.MediaRequest{
		ContentHash: "abc123",
		Title:       "Hash Match",
		Kind:        model.KindMovie,
		IsAnime:     model.TristateFalse,
		State:       model.StateDownloading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateRequest(ctx, req))

	found, err := s.FindActiveByCorrelationID(ctx, "content_hash", "abc123")
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)

	_, err = s.FindActiveByCorrelationID(ctx, "content_hash", "no-such-hash")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EpisodeCRUDAndAggregation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	req := &model.MediaRequest{Title: "Show", Kind: model.KindTV, IsAnime: model.TristateFalse, State: model.StateApproved, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateRequest(ctx, req))

	ep1 := &model.Episode{RequestID: req.ID, Season: 1, Episode: 1, State: model.StateGrabbing, CreatedAt: now, UpdatedAt: now}
	ep2 := &model.Episode{RequestID: req.ID, Season: 1, Episode: 2, State: model.StateGrabbing, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateEpisode(ctx, ep1))
	require.NoError(t, s.CreateEpisode(ctx, ep2))

	eps, err := s.ListEpisodesByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	require.Equal(t, model.StateGrabbing, model.AggregateState(eps))

	eps[0].State = model.StateAvailable
	require.NoError(t, s.UpdateEpisode(ctx, eps[0]))
	eps[1].State = model.StateAvailable
	require.NoError(t, s.UpdateEpisode(ctx, eps[1]))

	eps, err = s.ListEpisodesByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateAvailable, model.AggregateState(eps))
}

func TestStore_TimelineAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	req := &model.MediaRequest{Title: "Tracked", Kind: model.KindMovie, IsAnime: model.TristateFalse, State: model.StateRequested, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateRequest(ctx, req))

	ev := &model.TimelineEvent{
		RequestID: req.ID,
		FromState: "",
		ToState:   model.StateRequested,
		Emitter:   "request-manager",
		EventType: "created",
		IsNew:     true,
		CreatedAt: now,
	}
	require.NoError(t, s.AppendTimelineEvent(ctx, ev))

	events, err := s.ListTimelineByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].IsNew)
}

func TestStore_DeletionLogAndSyncEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	dl := &model.DeletionLog{
		SnapshotTitle:    "Deleted Movie",
		SnapshotKind:     model.KindMovie,
		Source:           model.SourceDashboard,
		ActorDisplayName: "alice",
		DeleteFiles:      true,
		InitiatedAt:      now,
		Status:           model.DeletionInProgress,
	}
	require.NoError(t, s.CreateDeletionLog(ctx, dl))

	ev := &model.DeletionSyncEvent{
		DeletionLogID: dl.ID,
		Service:       model.ServiceTorrentClient,
		Status:        model.SyncAcknowledged,
		CreatedAt:     now,
	}
	require.NoError(t, s.AppendDeletionSyncEvent(ctx, ev))

	events, err := s.ListDeletionSyncEvents(ctx, dl.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, model.ServiceTorrentClient, events[0].Service)

	completed := now.Add(time.Second)
	require.NoError(t, s.UpdateDeletionLogStatus(ctx, dl.ID, model.DeletionComplete, &completed))

	got, err := s.GetDeletionLog(ctx, dl.ID)
	require.NoError(t, err)
	require.Equal(t, model.DeletionComplete, got.Status)
	require.NotNil(t, got.CompletedAt)
}
