// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"
)

// ShutdownHook is a cleanup function run during graceful shutdown. Hooks run
// in reverse registration order (LIFO), mirroring defer semantics.
type ShutdownHook func(ctx context.Context) error

// Config holds the HTTP server tuning knobs. Background-loop cadence is
// owned by each Runnable itself, not by the daemon.
type Config struct {
	Version         string
	ListenAddr      string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// Daemon owns process lifecycle: the dashboard/webhook HTTP server, the
// metrics server, every background Runnable, and the LIFO shutdown-hook
// chain that releases owned resources once the HTTP servers have stopped.
type Daemon struct {
	cfg  Config
	deps Deps

	logger zerolog.Logger

	apiServer     *http.Server
	metricsServer *http.Server

	mu            sync.Mutex
	started       bool
	shutdownHooks []namedHook
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// New validates deps and constructs a Daemon ready to Start.
func New(cfg Config, deps Deps) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("daemon: invalid dependencies: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Daemon{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// RegisterShutdownHook adds a cleanup step executed during Shutdown, in
// reverse order of registration.
func (d *Daemon) RegisterShutdownHook(name string, hook ShutdownHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdownHooks = append(d.shutdownHooks, namedHook{name: name, hook: hook})
}

// Start launches the HTTP servers and every background Runnable, then blocks
// until ctx is cancelled or any of them returns a fatal error. On return it
// has already run Shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	for _, c := range d.deps.Closers {
		closer := c
		d.RegisterShutdownHook("resource_close", func(context.Context) error {
			return closer.Close()
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	d.apiServer = &http.Server{
		Addr:           d.cfg.ListenAddr,
		Handler:        d.deps.Handler,
		ReadTimeout:    d.cfg.ReadTimeout,
		WriteTimeout:   d.cfg.WriteTimeout,
		IdleTimeout:    d.cfg.IdleTimeout,
		MaxHeaderBytes: d.cfg.MaxHeaderBytes,
	}
	g.Go(func() error {
		d.logger.Info().Str("addr", d.cfg.ListenAddr).Msg("api server listening")
		if err := d.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if d.deps.MetricsHandler != nil && d.cfg.MetricsAddr != "" {
		d.metricsServer = &http.Server{
			Addr:              d.cfg.MetricsAddr,
			Handler:           d.deps.MetricsHandler,
			ReadHeaderTimeout: d.cfg.ReadTimeout,
		}
		g.Go(func() error {
			d.logger.Info().Str("addr", d.cfg.MetricsAddr).Msg("metrics server listening")
			if err := d.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	for i, r := range d.deps.Background {
		runnable := r
		name := fmt.Sprintf("background[%d]", i)
		g.Go(func() error {
			if err := runnable.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	// Stop everything once ctx is cancelled, independent of which Runnable
	// (if any) triggers gctx's cancellation first.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ShutdownTimeout)
		defer cancel()
		return d.shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP servers and runs every registered
// shutdown hook in reverse order. Safe to call directly for tests; Start
// calls it automatically once ctx is cancelled.
func (d *Daemon) Shutdown(ctx context.Context) error {
	return d.shutdown(ctx)
}

func (d *Daemon) shutdown(ctx context.Context) error {
	d.logger.Info().Msg("shutting down")

	var errs []error
	if d.apiServer != nil {
		if err := d.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}
	if d.metricsServer != nil {
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	d.mu.Lock()
	hooks := append([]namedHook(nil), d.shutdownHooks...)
	d.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(ctx); err != nil {
			d.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	d.logger.Info().Msg("stopped cleanly")
	return nil
}
