// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arrwatch/arrwatch/internal/config"
	"github.com/arrwatch/arrwatch/internal/log"
)

// PerformStartupChecks validates the environment and external-service
// configuration before the daemon starts listening, failing fast on a
// misconfigured deployment rather than discovering it on the first
// webhook (§6).
func PerformStartupChecks(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if cfg.MetricsAddr != "" {
		if err := checkListenAddr(logger, cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metrics address check failed: %w", err)
		}
	}
	checkStorePath(logger, cfg.StorePath)
	if err := checkServiceURLs(logger, cfg); err != nil {
		return fmt.Errorf("service URL check failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	logger.Info().Str("addr", addr).Str("port", port).Msg("listen address is valid")
	return nil
}

func checkStorePath(logger zerolog.Logger, path string) {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	logger.Info().Str("dir", dir).Msg("store directory resolved")
}

func checkServiceURLs(logger zerolog.Logger, cfg config.Config) error {
	services := []struct {
		name string
		svc  config.ServiceConfig
	}{
		{"request manager", cfg.RequestManager},
		{"indexer-movies", cfg.IndexerMovies},
		{"indexer-tv", cfg.IndexerTV},
		{"torrent client", cfg.TorrentClient},
		{"anime service", cfg.AnimeService},
		{"media server", cfg.MediaServer},
	}
	for _, s := range services {
		u, err := url.Parse(s.svc.BaseURL)
		if err != nil {
			return fmt.Errorf("%s base URL %q: %w", s.name, s.svc.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s base URL %q must use http or https, got %q", s.name, s.svc.BaseURL, u.Scheme)
		}
		logger.Info().Str("service", s.name).Str("url", s.svc.BaseURL).Msg("service URL is valid")
	}
	return nil
}
