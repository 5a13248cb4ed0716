package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerWithPath(filepath.Join(dir, "config.json")).WithGetenv(env(nil))

	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIPath, cfg.APIPath)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "Poseidon/2.0", cfg.UserAgent)
	assert.Equal(t, 120, cfg.TimeoutSeconds)
	assert.Equal(t, CacheFile, cfg.Cache)
	assert.Equal(t, filepath.Join(dir, SessionFileName), cfg.SessionFile)
	assert.Equal(t, filepath.Join(dir, CacheFileName), cfg.CacheFile)
	assert.Error(t, cfg.Validate(), "credentials are required")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	m := NewManagerWithPath(filepath.Join(t.TempDir(), ".poseidon", "config.json"))
	require.NoError(t, m.Save(&Config{ClientID: "file-id", ClientSecret: "file-secret", APIPath: "https://api.example.com/rest/"}))

	m.WithGetenv(env(map[string]string{
		"POSEIDON_CLIENT_ID":         "env-id",
		"POSEIDON_TIMEOUT":           "30",
		"POSEIDON_CACHE":             "memcached",
		"POSEIDON_MEMCACHED_SERVERS": "10.0.0.1:11211,10.0.0.2:11211",
	}))
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.ClientID)
	assert.Equal(t, "file-secret", cfg.ClientSecret)
	assert.Equal(t, "https://api.example.com/rest/", cfg.APIPath)
	assert.Equal(t, 30, int(cfg.Timeout().Seconds()))
	assert.Equal(t, []string{"10.0.0.1:11211", "10.0.0.2:11211"}, cfg.MemcachedServers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidTimeout(t *testing.T) {
	m := NewManagerWithPath(filepath.Join(t.TempDir(), "config.json")).
		WithGetenv(env(map[string]string{"POSEIDON_TIMEOUT": "soon"}))

	_, err := m.Load()
	assert.Error(t, err)
}

func TestSaveClientCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".poseidon", "config.json")
	m := NewManagerWithPath(path).WithGetenv(env(map[string]string{"POSEIDON_API_PATH": "https://env.example.com/rest/"}))

	require.NoError(t, m.SaveClientCredentials("id", "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env.example.com", "overrides are not persisted")

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, "secret", cfg.ClientSecret)

	require.NoError(t, m.Delete())
	require.NoError(t, m.Delete())
}

func TestValidate_CacheBackends(t *testing.T) {
	base := Config{ClientID: "id", ClientSecret: "secret"}

	for _, tt := range []struct {
		cache   string
		mutate  func(*Config)
		wantErr bool
	}{
		{cache: CacheFile},
		{cache: CacheMemory},
		{cache: CacheRedis, wantErr: true},
		{cache: CacheRedis, mutate: func(c *Config) { c.RedisURL = "redis://localhost:6379/0" }},
		{cache: CacheMemcached, wantErr: true},
		{cache: "etcd", wantErr: true},
	} {
		cfg := base
		cfg.Cache = tt.cache
		if tt.mutate != nil {
			tt.mutate(&cfg)
		}
		if tt.wantErr {
			assert.Error(t, cfg.Validate(), tt.cache)
		} else {
			assert.NoError(t, cfg.Validate(), tt.cache)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, LoadDotEnv(path), "missing file is ignored")

	require.NoError(t, os.WriteFile(path, []byte("POSEIDON_TEST_DOTENV=loaded\n"), 0600))
	t.Setenv("POSEIDON_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("POSEIDON_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("POSEIDON_TEST_DOTENV"))
}
