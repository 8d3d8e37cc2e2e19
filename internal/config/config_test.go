package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROJECT_ID", "proj")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, "documents", cfg.DocumentsCollection)
	assert.Equal(t, "us-central1", cfg.VertexAIRegion)
	assert.Equal(t, "gemini-1.5-pro", cfg.VertexModel)
	assert.Equal(t, 100, cfg.CacheCapacity)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL())
	assert.InDelta(t, 0.1, cfg.VisibilityThreshold, 1e-9)
	assert.InDelta(t, 1.5, cfg.RenderScale, 1e-9)
	assert.Equal(t, 10, cfg.BatchConcurrency)
	assert.Equal(t, int64(50<<20), cfg.MaxContentBytes)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.RequireProject())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_CAPACITY", "5")
	t.Setenv("CACHE_TTL_MILLIS", "1000")
	t.Setenv("VISIBILITY_THRESHOLD", "0.5")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CacheCapacity)
	assert.Equal(t, time.Second, cfg.CacheTTL())
	assert.InDelta(t, 0.5, cfg.VisibilityThreshold, 1e-9)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("CACHE_CAPACITY", "0")
	t.Setenv("VISIBILITY_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_CAPACITY")
	assert.Contains(t, err.Error(), "VISIBILITY_THRESHOLD")
}

func TestRequireProject(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireProject()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJECT_ID")
}
