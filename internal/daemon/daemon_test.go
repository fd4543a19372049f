// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/log"
)

type stubRunnable struct {
	started chan struct{}
	err     error
}

func (s *stubRunnable) Run(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return s.err
}

func TestDaemon_StartAndShutdown(t *testing.T) {
	log.Configure(log.Config{Level: "error"})

	runnable := &stubRunnable{started: make(chan struct{})}

	var closed bool
	d, err := New(Config{ListenAddr: "127.0.0.1:0", ShutdownTimeout: 2 * time.Second}, Deps{
		Logger:     log.WithComponent("test"),
		Handler:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		Background: []Runnable{runnable},
		Closers:    []Closer{closerFunc(func() error { closed = true; return nil })},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	select {
	case <-runnable.started:
	case <-time.After(time.Second):
		t.Fatal("background runnable never started")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}

	require.True(t, closed)
}

func TestDaemon_StartTwiceFails(t *testing.T) {
	log.Configure(log.Config{Level: "error"})

	d, err := New(Config{ListenAddr: "127.0.0.1:0"}, Deps{
		Logger:  log.WithComponent("test"),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	err = d.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(Config{}, Deps{Logger: log.WithComponent("test")})
	require.ErrorIs(t, err, ErrMissingHandler)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
