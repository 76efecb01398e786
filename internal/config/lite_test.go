package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "lab-analysis-engine", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "1.0.0", cfg.ServerVersion)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("LAB_ENGINE_DATA_DIR", "/tmp/test-lab-engine")
	os.Setenv("LAB_ENGINE_CACHE_MAX_ITEMS", "500")
	os.Setenv("LAB_ENGINE_CACHE_TTL", "12h")
	os.Setenv("LAB_ENGINE_MCP_SERVER_NAME", "labs")
	os.Setenv("LAB_ENGINE_LOG_LEVEL", "debug")
	os.Setenv("LAB_ENGINE_LOG_FORMAT", "text")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-lab-engine", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "labs", cfg.ServerName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValuesIgnored(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("LAB_ENGINE_CACHE_MAX_ITEMS", "-3")
	os.Setenv("LAB_ENGINE_CACHE_TTL", "forever")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestLiteConfig_FeedbackDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.lab-analysis-engine"}

	path := cfg.FeedbackDBPath()

	assert.Equal(t, "/home/user/.lab-analysis-engine/feedback.db", path)
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.lab-analysis-engine"}

	path := cfg.ExportDir()

	assert.Equal(t, "/home/user/.lab-analysis-engine/exports", path)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "lab")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"LAB_ENGINE_DATA_DIR",
		"LAB_ENGINE_CACHE_MAX_ITEMS",
		"LAB_ENGINE_CACHE_TTL",
		"LAB_ENGINE_MCP_SERVER_NAME",
		"LAB_ENGINE_MCP_SERVER_VERSION",
		"LAB_ENGINE_LOG_LEVEL",
		"LAB_ENGINE_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
