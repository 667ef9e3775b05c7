package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Check.Concurrency)
	assert.Equal(t, 3, cfg.Discovery.MaxPerVariant)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 40.0, cfg.Scoring.Tier1)
	assert.Equal(t, -25.0, cfg.Scoring.ListContext)
}

func TestLoadEnvOverride(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("PRICEWATCH_STORE_DRIVER", "postgres")
	t.Setenv("PRICEWATCH_CHECK_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Check.Concurrency)
}

func TestLoadBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`categories:
  gpu:
    min: 100
    max: 5000
  psu:
    min: 30
    max: 600
`), 0o644))

	bounds, err := LoadBounds(path)
	require.NoError(t, err)
	require.Len(t, bounds, 2)
	assert.Equal(t, model.Bounds{Min: 100, Max: 5000}, bounds[model.CategoryGPU])
	assert.Equal(t, model.Bounds{Min: 30, Max: 600}, bounds[model.CategoryPSU])
}

func TestLoadBoundsInvalidRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`categories:
  gpu:
    min: 5000
    max: 100
`), 0o644))

	_, err := LoadBounds(path)
	assert.ErrorContains(t, err, "invalid bounds")
}

func TestLoadBoundsMissingFile(t *testing.T) {
	_, err := LoadBounds(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
