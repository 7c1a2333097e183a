package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", s.Catalog.URL)
	assert.Equal(t, 30*time.Second, s.Catalog.Timeout)
	assert.True(t, s.Sync.Strict)
	assert.Equal(t, "info", s.Log.Level)
	assert.False(t, s.Log.Development)
	assert.Equal(t, ".snapshots", s.Snapshot.Dir)
	assert.Equal(t, "catalogmodel:snapshot:", s.Snapshot.RedisPrefix)
	assert.Error(t, s.RequireCatalog())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
catalog:
  url: https://example.org/ermrest/catalog/1
  token: abc
  timeout: 5s
sync:
  strict: false
log:
  level: debug
snapshot:
  redis_addr: localhost:6379
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/ermrest/catalog/1", s.Catalog.URL)
	assert.Equal(t, "abc", s.Catalog.Token)
	assert.Equal(t, 5*time.Second, s.Catalog.Timeout)
	assert.False(t, s.Sync.Strict)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "localhost:6379", s.Snapshot.RedisAddr)
	assert.NoError(t, s.RequireCatalog())
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".catalogmodel.yaml"),
		[]byte("log:\n  level: warn\n"), 0644))
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("CATALOGMODEL_LOG_LEVEL", "error")
	t.Setenv("CATALOGMODEL_CATALOG_URL", "https://example.org/ermrest/catalog/2")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", s.Log.Level)
	assert.Equal(t, "https://example.org/ermrest/catalog/2", s.Catalog.URL)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "unknown log level",
			config:  "log:\n  level: loud\n",
			wantErr: "log.level: failed oneof",
		},
		{
			name:    "bad catalog url",
			config:  "catalog:\n  url: not a url\n",
			wantErr: "catalog.url: failed url",
		},
		{
			name:    "zero timeout",
			config:  "catalog:\n  timeout: 0s\n",
			wantErr: "catalog.timeout: failed gt",
		},
		{
			name:    "bad redis address",
			config:  "snapshot:\n  redis_addr: nowhere\n",
			wantErr: "snapshot.redis_addr: failed hostname_port",
		},
		{
			name:    "no snapshot store",
			config:  "snapshot:\n  dir: \"\"\n",
			wantErr: "snapshot.dir: failed required_without",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
