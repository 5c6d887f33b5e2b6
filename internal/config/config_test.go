package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthguardlabs/verifyd/internal/vectorstore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, vectorstore.BackendQdrant, cfg.Store.Backend)
	assert.Equal(t, "localhost", cfg.Store.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Store.Qdrant.Port)

	assert.Equal(t, "tei", cfg.Embeddings.Text.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Text.TEI.Dimension)
	assert.Equal(t, 512, cfg.Embeddings.Image.Dimension)

	assert.Equal(t, "gpt-4o-mini", cfg.Generator.Model)
	assert.False(t, cfg.Generator.Enabled())

	assert.Equal(t, "user_memory", cfg.Memory.Collection)
	assert.Equal(t, 3, cfg.Memory.TopK)

	assert.InDelta(t, 0.20, cfg.Verdict.Threshold, 1e-6)
	assert.InDelta(t, 0.15, cfg.Verdict.FallbackThreshold, 1e-6)
	assert.Equal(t, "medical_facts", cfg.Verdict.FactsCollection)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9100
logging:
  level: debug
  format: console
store:
  backend: chromem
  chromem:
    path: /tmp/verifyd-data
verdict:
  threshold: 0.35
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, vectorstore.BackendChromem, cfg.Store.Backend)
	assert.Equal(t, "/tmp/verifyd-data", cfg.Store.Chromem.Path)
	assert.InDelta(t, 0.35, cfg.Verdict.Threshold, 1e-6)
	// Untouched sections keep defaults.
	assert.InDelta(t, 0.15, cfg.Verdict.FallbackThreshold, 1e-6)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0600))

	t.Setenv("VERIFYD_SERVER__PORT", "9200")
	t.Setenv("VERIFYD_STORE__QDRANT__HOST", "qdrant.internal")
	t.Setenv("VERIFYD_GENERATOR__API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "qdrant.internal", cfg.Store.Qdrant.Host)
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
	assert.True(t, cfg.Generator.Enabled())
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = '#'
	}
	require.NoError(t, os.WriteFile(path, big, 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidatePortRange(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Server.Port = 70000

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
