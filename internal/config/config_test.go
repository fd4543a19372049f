// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearServiceEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LISTEN_ADDR", "METRICS_ADDR", "STORE_PATH", "CACHE_REDIS_ADDR",
		"ADMIN_USER_IDS", "ENABLE_DELETION_SYNC", "MEDIA_PATH_PREFIX",
		"POLL_FAST", "POLL_SLOW", "VFS_REGENERATION_DELAY",
		"STALENESS_WINDOW_MINUTES", "SSE_HEARTBEAT_INTERVAL_SECONDS",
		"REQUEST_MANAGER_URL", "REQUEST_MANAGER_API_KEY",
		"INDEXER_MOVIES_URL", "INDEXER_MOVIES_API_KEY",
		"INDEXER_TV_URL", "INDEXER_TV_API_KEY",
		"TORRENT_CLIENT_URL", "TORRENT_CLIENT_PASSWORD",
		"ANIME_SERVICE_URL", "ANIME_SERVICE_API_KEY",
		"MEDIA_SERVER_URL", "MEDIA_SERVER_API_KEY",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func setMinimalValidEnv(t *testing.T) {
	t.Helper()
	clearServiceEnv(t)
	os.Setenv("ADMIN_USER_IDS", "1,2")
	os.Setenv("REQUEST_MANAGER_URL", "http://overseerr:5055")
	os.Setenv("INDEXER_MOVIES_URL", "http://radarr:7878")
	os.Setenv("INDEXER_TV_URL", "http://sonarr:8989")
	os.Setenv("TORRENT_CLIENT_URL", "http://qbt:8080")
	os.Setenv("ANIME_SERVICE_URL", "http://shoko:8111")
	os.Setenv("MEDIA_SERVER_URL", "http://jellyfin:8096")
}

func TestLoad_Defaults(t *testing.T) {
	setMinimalValidEnv(t)
	defer clearServiceEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "arrwatch.db", cfg.StorePath)
	assert.Equal(t, []string{"1", "2"}, cfg.AdminUserIDs)
	assert.True(t, cfg.EnableDeletionSync)
	assert.Equal(t, 5*time.Second, cfg.PollFast)
	assert.Equal(t, 60*time.Second, cfg.PollSlow)
	assert.Equal(t, 5*time.Minute, cfg.StalenessWindow)
	assert.Equal(t, 15*time.Second, cfg.SSEHeartbeatInterval)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	setMinimalValidEnv(t)
	defer clearServiceEnv(t)

	os.Setenv("POLL_FAST", "2s")
	os.Setenv("POLL_SLOW", "30s")
	os.Setenv("STALENESS_WINDOW_MINUTES", "10")
	os.Setenv("ENABLE_DELETION_SYNC", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.PollFast)
	assert.Equal(t, 30*time.Second, cfg.PollSlow)
	assert.Equal(t, 10*time.Minute, cfg.StalenessWindow)
	assert.False(t, cfg.EnableDeletionSync)
}

func TestLoad_MissingAdminUserIDs(t *testing.T) {
	setMinimalValidEnv(t)
	defer clearServiceEnv(t)
	os.Unsetenv("ADMIN_USER_IDS")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_USER_IDS")
}

func TestValidate_PollFastMustNotExceedPollSlow(t *testing.T) {
	cfg := Config{
		ListenAddr:           ":8080",
		StorePath:            "arrwatch.db",
		AdminUserIDs:         []string{"1"},
		PollFast:             time.Minute,
		PollSlow:             time.Second,
		StalenessWindow:      time.Minute,
		SSEHeartbeatInterval: time.Second,
		RequestManager:       ServiceConfig{BaseURL: "http://x"},
		IndexerMovies:        ServiceConfig{BaseURL: "http://x"},
		IndexerTV:            ServiceConfig{BaseURL: "http://x"},
		TorrentClient:        ServiceConfig{BaseURL: "http://x"},
		AnimeService:         ServiceConfig{BaseURL: "http://x"},
		MediaServer:          ServiceConfig{BaseURL: "http://x"},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_FAST")
}

func TestValidate_MissingServiceURL(t *testing.T) {
	setMinimalValidEnv(t)
	defer clearServiceEnv(t)
	os.Unsetenv("MEDIA_SERVER_URL")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media server")
}
