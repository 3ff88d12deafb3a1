package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("VOICE_PORT", "9090")
	t.Setenv("VOICE_ROOMS_MAX_MEMBERS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5, cfg.Rooms.MaxMembers)
	assert.Equal(t, 5*time.Second, cfg.Rooms.JoinTimeout)
	assert.Equal(t, 3, cfg.Rooms.CleanupRetries)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "kick", cfg.Rooms.Backpressure)
}

func TestLoadRejectsBadStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")

	t.Setenv("VOICE_STORE_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("VOICE_STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "store.dsn")
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll("config", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.test.yaml"), []byte(body), 0o644))
}

func TestLoadWatchedReloads(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")
	writeConfig(t, "port: 7000\nlog_level: info\nrooms:\n  max_members: 3\n")

	var reloaded atomic.Pointer[Config]
	cfg, err := LoadWatched(func(c *Config) { reloaded.Store(c) })
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 3, cfg.Rooms.MaxMembers)

	writeConfig(t, "port: 7000\nlog_level: debug\nrooms:\n  max_members: 6\n")
	assert.Eventually(t, func() bool {
		c := reloaded.Load()
		return c != nil && c.Rooms.MaxMembers == 6 && c.LogLevel == "debug"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ApplyLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	ApplyLogLevel("loud")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
