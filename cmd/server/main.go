// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command server is arrwatch's composition root: it loads configuration,
// builds every external-service client and background loop, and runs the
// daemon until an interrupt signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/animehub"
	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/auth"
	"github.com/arrwatch/arrwatch/internal/bus"
	"github.com/arrwatch/arrwatch/internal/cache"
	"github.com/arrwatch/arrwatch/internal/clients/animeservice"
	"github.com/arrwatch/arrwatch/internal/clients/indexermovies"
	"github.com/arrwatch/arrwatch/internal/clients/indexertv"
	"github.com/arrwatch/arrwatch/internal/clients/mediaserver"
	"github.com/arrwatch/arrwatch/internal/clients/requestmanager"
	"github.com/arrwatch/arrwatch/internal/clients/torrentclient"
	"github.com/arrwatch/arrwatch/internal/config"
	"github.com/arrwatch/arrwatch/internal/control/middleware"
	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/daemon"
	"github.com/arrwatch/arrwatch/internal/deletion"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/health"
	"github.com/arrwatch/arrwatch/internal/httpapi"
	"github.com/arrwatch/arrwatch/internal/ingest"
	"github.com/arrwatch/arrwatch/internal/librarysync"
	"github.com/arrwatch/arrwatch/internal/log"
	"github.com/arrwatch/arrwatch/internal/progress"
	"github.com/arrwatch/arrwatch/internal/ratelimit"
	"github.com/arrwatch/arrwatch/internal/verifier"
)

// version is stamped by the release build; "dev" covers local builds.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("arrwatch " + version)
		return
	}

	// Configure logging before config.Load so its errors are logged; config
	// has no log-level setting, so run() repeats this same configuration.
	log.Configure(log.Config{Service: "arrwatch", Version: version})

	if err := run(); err != nil {
		log.L().Fatal().Err(err).Msg("arrwatch: fatal startup error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log.Configure(log.Config{Service: "arrwatch", Version: version})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	eventBus := bus.NewMemoryBus()

	rmClient, err := requestmanager.NewClient(cfg.RequestManager.BaseURL, cfg.RequestManager.APIKey, log.WithComponent("requestmanager"))
	if err != nil {
		return fmt.Errorf("request manager client: %w", err)
	}
	imClient, err := indexermovies.NewClient(cfg.IndexerMovies.BaseURL, cfg.IndexerMovies.APIKey, 30*time.Second, log.WithComponent("indexermovies"))
	if err != nil {
		return fmt.Errorf("indexer-movies client: %w", err)
	}
	itClient, err := indexertv.NewClient(cfg.IndexerTV.BaseURL, cfg.IndexerTV.APIKey, 30*time.Second, log.WithComponent("indexertv"))
	if err != nil {
		return fmt.Errorf("indexer-tv client: %w", err)
	}
	tcClient, err := torrentclient.NewClient(cfg.TorrentClient.BaseURL, cfg.TorrentClientUsername, cfg.TorrentClient.APIKey, log.WithComponent("torrentclient"))
	if err != nil {
		return fmt.Errorf("torrent client: %w", err)
	}
	asClient, err := animeservice.NewClient(cfg.AnimeService.BaseURL, cfg.AnimeService.APIKey, log.WithComponent("animeservice"))
	if err != nil {
		return fmt.Errorf("anime service client: %w", err)
	}
	msClient, err := mediaserver.NewClient(cfg.MediaServer.BaseURL, cfg.MediaServer.APIKey, log.WithComponent("mediaserver"))
	if err != nil {
		return fmt.Errorf("media server client: %w", err)
	}

	pathCache, err := buildCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	resolver := animeservice.NewResolver(asClient, pathCache, 5*time.Minute, log.WithComponent("animeservice-resolver"))
	corr := correlator.New(st, resolver)

	auditLogger := audit.NewLogger()

	del := deletion.New(deletion.Deps{
		Store:          st,
		Bus:            eventBus,
		Audit:          auditLogger,
		TorrentClient:  tcClient,
		IndexerMovies:  imClient,
		IndexerTV:      itClient,
		AnimeService:   asClient,
		MediaServer:    msClient,
		RequestManager: rmClient,
		EnableSync:     cfg.EnableDeletionSync,
		Logger:         log.WithComponent("deletion"),
		Background:     context.Background(),
	})

	engine := &ingest.Engine{
		Store:       st,
		Correlator:  corr,
		Bus:         eventBus,
		MediaServer: msClient,
		Deletion:    del,
		Logger:      log.WithComponent("ingest"),
	}

	animeHub, err := animehub.New(cfg.AnimeService.BaseURL, cfg.AnimeService.APIKey, log.WithComponent("animehub"))
	if err != nil {
		return fmt.Errorf("anime hub: %w", err)
	}
	animeHubHandler := ingest.NewAnimeHubHandler(engine, animeHub)

	poller := progress.New(progress.Deps{
		Store:         st,
		TorrentClient: tcClient,
		Bus:           eventBus,
		PollFast:      cfg.PollFast,
		PollSlow:      cfg.PollSlow,
		Logger:        log.WithComponent("progress"),
	})

	verify := verifier.New(verifier.Deps{
		Store:                st,
		MediaServer:          msClient,
		Bus:                  eventBus,
		StalenessWindow:      cfg.StalenessWindow,
		VFSRegenerationDelay: cfg.VFSRegenerationDelay,
		Logger:               log.WithComponent("verifier"),
	})

	syncer := librarysync.New(librarysync.Deps{
		Store:       st,
		MediaServer: msClient,
		Bus:         eventBus,
		Audit:       auditLogger,
		Logger:      log.WithComponent("librarysync"),
	})

	adminGate := auth.NewAdminGate(auth.ValidatorFunc(func(ctx context.Context, token string) (string, string, error) {
		user, err := msClient.ValidateToken(ctx, token)
		if err != nil {
			return "", "", err
		}
		return user.ID, user.Name, nil
	}), cfg.AdminUserIDs)

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewStoreChecker(func(ctx context.Context) error {
		return st.DB.PingContext(ctx)
	}))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("request-manager", false, rmClient.TestConnection))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("indexer-movies", false, imClient.TestConnection))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("indexer-tv", false, itClient.TestConnection))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("torrent-client", false, tcClient.TestConnection))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("anime-service", false, asClient.TestConnection))
	healthMgr.RegisterChecker(health.NewExternalServiceChecker("media-server", true, msClient.TestConnection))

	router := httpapi.NewRouter(httpapi.Deps{
		Store:          st,
		Bus:            eventBus,
		Deletion:       del,
		LibrarySync:    syncer,
		Health:         healthMgr,
		AdminGate:      adminGate,
		AdminRateLimit: ratelimit.New(ratelimit.AdminConfig()),
		RequestMgr:     ingest.NewRequestManagerHandler(engine),
		IndexerMov:     ingest.NewIndexerMoviesHandler(engine),
		IndexerTV:      ingest.NewIndexerTVHandler(engine),
		TorrentCli:     ingest.NewTorrentClientHandler(engine),
		MediaSrv:       ingest.NewMediaServerHandler(engine),
		SSEHeartbeat:   cfg.SSEHeartbeatInterval,
		Middleware: middleware.StackConfig{
			EnableCORS:            true,
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			EnableLogging:         true,
		},
		Logger: log.WithComponent("httpapi"),
	})

	d, err := daemon.New(daemon.Config{
		Version:         version,
		ListenAddr:      cfg.ListenAddr,
		MetricsAddr:     cfg.MetricsAddr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}, daemon.Deps{
		Logger:         log.WithComponent("daemon"),
		Handler:        router,
		MetricsHandler: promhttp.Handler(),
		Background: []daemon.Runnable{
			poller,
			verify,
			librarysync.NewScheduler(syncer),
			animeHub,
			animeHubHandler,
		},
		Closers: []daemon.Closer{st},
	})
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	return d.Start(ctx)
}

func buildCache(cfg config.Config, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.CacheRedisAddr == "" {
		return cache.NewMemoryCache(10 * time.Minute), nil
	}
	return cache.NewRedisCache(cache.RedisConfig{Addr: cfg.CacheRedisAddr}, logger)
}
