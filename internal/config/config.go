// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads arrwatch's process configuration from the
// environment. There is no file format: every setting is one env var, one
// default, validated once at startup (§6).
package config

import (
	"fmt"
	"time"
)

// ServiceConfig groups the reachability settings for one external service:
// a base URL and the credential arrwatch presents to it.
type ServiceConfig struct {
	BaseURL string
	APIKey  string
}

// Config holds every setting arrwatch reads from its environment.
type Config struct {
	// ListenAddr is the dashboard/webhook HTTP listen address.
	ListenAddr string
	// MetricsAddr is the Prometheus listen address. Empty disables the
	// metrics server.
	MetricsAddr string

	// StorePath is the SQLite database file path.
	StorePath string

	// CacheRedisAddr, when set, backs internal/cache with Redis instead of
	// the in-process memory cache.
	CacheRedisAddr string

	// AdminUserIDs is the allowlist of media-server user ids permitted to
	// call admin-gated endpoints (§4J).
	AdminUserIDs []string

	// EnableDeletionSync toggles whether a request deletion fans out to the
	// external services or only removes the local record (§4H).
	EnableDeletionSync bool

	// MediaPathPrefix is read from MEDIA_PATH_PREFIX. No component reads
	// this field; reported paths are compared against stored final paths
	// without any prefix stripped.
	MediaPathPrefix string

	// PollFast and PollSlow bound the progress provider's adaptive poll
	// interval (§4F).
	PollFast time.Duration
	PollSlow time.Duration

	// VFSRegenerationDelay is how long the verifier waits after a media
	// server rescan trigger before it expects the item to be browsable
	// (§4G).
	VFSRegenerationDelay time.Duration

	// StalenessWindow is how long a request may sit in a non-terminal state
	// before the verifier loop considers it eligible for a fallback check
	// (§4G).
	StalenessWindow time.Duration

	// SSEHeartbeatInterval is how often the dashboard SSE stream emits a
	// keepalive comment when idle (§4I).
	SSEHeartbeatInterval time.Duration

	RequestManager ServiceConfig
	IndexerMovies  ServiceConfig
	IndexerTV      ServiceConfig
	TorrentClient  ServiceConfig
	AnimeService   ServiceConfig
	MediaServer    ServiceConfig

	// TorrentClientUsername is the qBittorrent WebUI account name; the
	// matching password rides in TorrentClient.APIKey since ServiceConfig's
	// second field is just a bearer credential for every other service.
	TorrentClientUsername string
}

// Load reads Config from the process environment, applying one default per
// field and validating the result in a single pass.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:  parseString("LISTEN_ADDR", ":8080"),
		MetricsAddr: parseString("METRICS_ADDR", ""),
		StorePath:   parseString("STORE_PATH", "arrwatch.db"),

		CacheRedisAddr: parseString("CACHE_REDIS_ADDR", ""),

		AdminUserIDs:       parseCommaSeparated("ADMIN_USER_IDS"),
		EnableDeletionSync: parseBool("ENABLE_DELETION_SYNC", true),
		MediaPathPrefix:    parseString("MEDIA_PATH_PREFIX", ""),

		PollFast:             parseDuration("POLL_FAST", 5*time.Second),
		PollSlow:             parseDuration("POLL_SLOW", 60*time.Second),
		VFSRegenerationDelay: parseDuration("VFS_REGENERATION_DELAY", 10*time.Second),
		StalenessWindow:      time.Duration(parseInt("STALENESS_WINDOW_MINUTES", 5)) * time.Minute,
		SSEHeartbeatInterval: time.Duration(parseInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 15)) * time.Second,

		RequestManager: ServiceConfig{
			BaseURL: parseString("REQUEST_MANAGER_URL", ""),
			APIKey:  parseString("REQUEST_MANAGER_API_KEY", ""),
		},
		IndexerMovies: ServiceConfig{
			BaseURL: parseString("INDEXER_MOVIES_URL", ""),
			APIKey:  parseString("INDEXER_MOVIES_API_KEY", ""),
		},
		IndexerTV: ServiceConfig{
			BaseURL: parseString("INDEXER_TV_URL", ""),
			APIKey:  parseString("INDEXER_TV_API_KEY", ""),
		},
		TorrentClient: ServiceConfig{
			BaseURL: parseString("TORRENT_CLIENT_URL", ""),
			APIKey:  parseString("TORRENT_CLIENT_PASSWORD", ""),
		},
		TorrentClientUsername: parseString("TORRENT_CLIENT_USERNAME", ""),
		AnimeService: ServiceConfig{
			BaseURL: parseString("ANIME_SERVICE_URL", ""),
			APIKey:  parseString("ANIME_SERVICE_API_KEY", ""),
		},
		MediaServer: ServiceConfig{
			BaseURL: parseString("MEDIA_SERVER_URL", ""),
			APIKey:  parseString("MEDIA_SERVER_API_KEY", ""),
		},
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present and internally
// consistent. It is called once by Load; exported so tests can exercise it
// directly against hand-built Configs.
func Validate(cfg Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: LISTEN_ADDR must not be empty")
	}
	if cfg.StorePath == "" {
		return fmt.Errorf("config: STORE_PATH must not be empty")
	}
	if cfg.PollFast <= 0 || cfg.PollSlow <= 0 {
		return fmt.Errorf("config: POLL_FAST and POLL_SLOW must be positive")
	}
	if cfg.PollFast > cfg.PollSlow {
		return fmt.Errorf("config: POLL_FAST (%s) must not exceed POLL_SLOW (%s)", cfg.PollFast, cfg.PollSlow)
	}
	if cfg.StalenessWindow <= 0 {
		return fmt.Errorf("config: STALENESS_WINDOW_MINUTES must be positive")
	}
	if cfg.SSEHeartbeatInterval <= 0 {
		return fmt.Errorf("config: SSE_HEARTBEAT_INTERVAL_SECONDS must be positive")
	}
	if len(cfg.AdminUserIDs) == 0 {
		return fmt.Errorf("config: ADMIN_USER_IDS must name at least one admin user id")
	}

	services := []struct {
		name string
		svc  ServiceConfig
	}{
		{"request manager", cfg.RequestManager},
		{"indexer-movies", cfg.IndexerMovies},
		{"indexer-tv", cfg.IndexerTV},
		{"torrent client", cfg.TorrentClient},
		{"anime service", cfg.AnimeService},
		{"media server", cfg.MediaServer},
	}
	for _, s := range services {
		if s.svc.BaseURL == "" {
			return fmt.Errorf("config: %s base URL must be configured", s.name)
		}
	}

	return nil
}
