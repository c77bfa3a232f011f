package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, RegistrySourceCSV, cfg.Registry.Source)
	assert.Equal(t, "license_plate_db.csv", cfg.Registry.Path)
	assert.Equal(t, time.Minute, cfg.Alert.Cooldown)
	assert.Equal(t, 30*time.Second, cfg.Detector.Timeout)
	assert.False(t, cfg.DatabaseEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PLATEWATCH_HTTP_PORT", "9191")
	t.Setenv("PLATEWATCH_REGISTRY_PATH", "/data/plates.csv")
	t.Setenv("PLATEWATCH_ALERT_COOLDOWN", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.HTTP.Port)
	assert.Equal(t, "/data/plates.csv", cfg.Registry.Path)
	assert.Equal(t, 5*time.Second, cfg.Alert.Cooldown)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platewatch.yaml")
	yaml := []byte(`
registry:
  source: database
database:
  dsn: postgres://localhost/platewatch
detector:
  url: http://detector:8000/predict
  confidence: 0.5
ocr:
  enabled: true
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RegistrySourceDatabase, cfg.Registry.Source)
	assert.True(t, cfg.DatabaseEnabled())
	assert.Equal(t, "http://detector:8000/predict", cfg.Detector.URL)
	assert.InDelta(t, 0.5, cfg.Detector.Confidence, 1e-9)
	assert.True(t, cfg.OCR.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("PLATEWATCH_REGISTRY_SOURCE", "database")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn is required")

	t.Setenv("PLATEWATCH_REGISTRY_SOURCE", "ldap")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown registry.source")
}
