package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.2.2:3000", cfg.Server.URL)
	assert.Equal(t, 10*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.False(t, cfg.Sync.PreserveUnsynced)
	assert.Equal(t, cfg.Server.URL, cfg.Network.ProbeURL, "probe falls back to server url")
}

func TestFromViper_trimsTrailingSlash(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.url", "https://api.letsdonate.example/")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "https://api.letsdonate.example", cfg.Server.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"empty url", "server.url", ""},
		{"non http url", "server.url", "ftp://x"},
		{"zero poll", "sync.poll_interval", 0},
		{"zero retries", "sync.max_retries", 0},
		{"empty dir", "db.dir", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.val)

			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_configFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "letsdonate.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  url: http://192.168.1.10:3000
sync:
  poll_interval: 30s
db:
  dir: `+dir+`
`), 0o644))

	t.Setenv("LETSDONATE_SYNC_PRESERVE_UNSYNCED", "true")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.10:3000", cfg.Server.URL)
	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, dir, cfg.DB.Dir)
	assert.True(t, cfg.Sync.PreserveUnsynced)
}

func TestLoad_missingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
