package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestWatcherReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "stagehand.json")
	writeConfig(t, configPath, `{"budget":{"enabled":true,"enforce":true,"per_session_tokens":1000}}`)

	loader := NewLoader(configPath)
	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Stop()

	writeConfig(t, configPath, `{"budget":{"enabled":true,"enforce":true,"per_session_tokens":7777}}`)

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7777, cfg.Budget.PerSessionTokens)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherKeepsPreviousOnBadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "stagehand.json")
	writeConfig(t, configPath, `{"budget":{"enabled":true,"enforce":true}}`)

	loader := NewLoader(configPath)
	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Stop()

	writeConfig(t, configPath, `{broken`)

	select {
	case <-reloaded:
		t.Fatal("callback fired for an unparseable config")
	case <-time.After(time.Second):
		// Reload was skipped; the previous config stays in effect.
	}
}

func TestWatcherMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"))
	_, err := NewWatcher(loader, zerolog.Nop(), func(*Config) {})
	assert.Error(t, err)
}
