package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "FoodieBot", cfg.Name)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, 200, cfg.Recommend.CandidateCap)
	assert.Equal(t, 20*time.Second, cfg.LLMTimeout())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("llm:\n  model: test-model\n  timeout: 5s\nserver:\n  addr: \":9000\"\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout())
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// Untouched sections keep defaults.
	assert.Equal(t, "data/foodie_products.db", cfg.Storage.CatalogPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GROQ_API_KEY sets key, keeps provider", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gq-key")
		t.Setenv("GEMINI_API_KEY", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gq-key", cfg.LLM.APIKey)
		assert.Equal(t, "groq", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY overrides provider", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gq-key")
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gm-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("FOODIE_DB overrides catalog path", func(t *testing.T) {
		t.Setenv("FOODIE_DB", "/tmp/cat.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/cat.db", cfg.Storage.CatalogPath)
	})
}

func TestTimeoutFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "garbage"
	cfg.Server.ShutdownTimeout = ""

	assert.Equal(t, 20*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 10*time.Second, cfg.ServerShutdownTimeout())
}
