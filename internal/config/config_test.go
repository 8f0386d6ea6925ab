package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-identity/reconvalidator/internal/recon"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, recon.DefaultConcurrency, cfg.Validation.Concurrency)
	assert.Equal(t, recon.DefaultPageSize, cfg.Validation.PageSize)
	assert.Equal(t, recon.DefaultSampleRatio, cfg.Validation.SampleRatio)
	assert.Equal(t, time.Hour, cfg.Validation.ArtifactTTL)
}

func TestLoad_FileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  address: ":9090"
log:
  level: debug
profile_store:
  baseurl: https://accounts.example.com
  apikey: key-1
validation:
  concurrency: 10
  page_size: 50
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://accounts.example.com", cfg.ProfileStore.BaseURL)
	assert.Equal(t, "key-1", cfg.ProfileStore.APIKey)
	assert.Equal(t, 10, cfg.Validation.Concurrency)
	assert.Equal(t, 50, cfg.Validation.PageSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECON_PROFILE_STORE_SECRET", "from-env")
	t.Setenv("RECON_VALIDATION_CONCURRENCY", "42")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ProfileStore.Secret)
	assert.Equal(t, 42, cfg.Validation.Concurrency)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "validation:\n  concurrency: 1000\n"))
	assert.ErrorContains(t, err, "validation.concurrency")

	_, err = Load(writeConfig(t, "validation:\n  sample_ratio: 2.0\n"))
	assert.ErrorContains(t, err, "sample_ratio")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
