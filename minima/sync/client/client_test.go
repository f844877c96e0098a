package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	data := []byte(`base_url: http://localhost:8000
cache_path: /tmp/minima/state.db
probe_interval: 10s
session_queue: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "/tmp/minima/state.db", cfg.CachePath)
	assert.Equal(t, Duration(10*time.Second), cfg.ProbeInterval)
	assert.True(t, cfg.SessionQueue)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8000/"}
	require.NoError(t, cfg.fillDefaults())
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "ws://localhost:8000/realtime/ws", cfg.FeedURL)
	assert.Equal(t, "http://localhost:8000/api/health", cfg.HealthURL)
}

func TestConfigRequiresBaseURL(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.fillDefaults())
}

func TestNewWiresClient(t *testing.T) {
	c, err := New(Config{
		BaseURL:   "http://localhost:8000",
		CachePath: filepath.Join(t.TempDir(), "state.db"),
	})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsAuthenticated())
	assert.True(t, c.Loading())
	assert.Empty(t, c.ListSessions())
}
