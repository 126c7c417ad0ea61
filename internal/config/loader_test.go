package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file does not exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		loader := NewLoader(filepath.Join(tmpDir, "nope.json"))

		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Models.Provider)
		assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Default)
		assert.Equal(t, 10, cfg.Agents.MaxIterations)
		assert.Equal(t, 30, cfg.Agents.MaxExecutionSeconds)
		assert.Equal(t, 1_000_000, cfg.Budget.GlobalDailyTokens)
		assert.Equal(t, 50_000, cfg.Budget.PerSessionTokens)
		assert.True(t, cfg.Guardrail.Enabled)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "stagehand.json")
		testConfig := `{
			"models": {"provider": "openai", "openai_api_key": "sk-test"},
			"agents": {"max_iterations": 5},
			"budget": {"enabled": true, "enforce": true, "per_session_tokens": 9000}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Models.Provider)
		assert.Equal(t, "sk-test", cfg.Models.OpenAIAPIKey)
		assert.Equal(t, 5, cfg.Agents.MaxIterations)
		assert.Equal(t, 9000, cfg.Budget.PerSessionTokens)
		// Untouched sections keep their defaults.
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("derived paths are filled in", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "stagehand.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "`+tmpDir+`"}`), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "stagehand.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "audit.jsonl"), cfg.Guardrail.AuditLogFile)
		assert.Equal(t, filepath.Join(tmpDir, "stagehand.db"), cfg.Catalog.Path)
	})

	t.Run("api key falls back to the environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
		tmpDir := t.TempDir()
		loader := NewLoader(filepath.Join(tmpDir, "nope.json"))

		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.Models.AnthropicAPIKey)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})

	t.Run("invalid provider is rejected", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "stagehand.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"models":{"provider":"cohere"}}`), 0644))

		_, err := NewLoader(configPath).Load()
		assert.ErrorContains(t, err, "unknown model provider")
	})
}

func TestValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("rejects non-positive loop bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Agents.MaxIterations = 0
		assert.ErrorContains(t, cfg.Validate(), "max_iterations")

		cfg = DefaultConfig()
		cfg.Agents.MaxExecutionSeconds = -1
		assert.ErrorContains(t, cfg.Validate(), "max_execution_seconds")
	})

	t.Run("rejects out-of-range port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 99999
		assert.ErrorContains(t, cfg.Validate(), "port")
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sub", "stagehand.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.Models.Provider = "openai"
	cfg.Budget.PerSessionTokens = 12345
	require.NoError(t, loader.Save(cfg))

	reloaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", reloaded.Models.Provider)
	assert.Equal(t, 12345, reloaded.Budget.PerSessionTokens)
}
