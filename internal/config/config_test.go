package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/prefer"
)

const sampleYAML = `
server:
  address: ":9090"
  read_timeout: 5
storage:
  driver: sqlite
  path: /tmp/prefs.db
  namespace: app
cache:
  driver: memory
  ttl: 60
logging:
  level: debug
  format: console
groups:
  - type: Settings
    title: Settings
    summary: General settings
    prefs:
      - name: IsEnabled
        kind: bool
        default: "true"
        title: Enabled
      - name: IntervalMs
        kind: int
        default: "100"
      - name: Username
        kind: string
        default: guest
      - name: Ratio
        kind: float
        default: "0.5"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeoutDuration())
	assert.Equal(t, 15*time.Second, cfg.WriteTimeoutDuration(), "default kept")
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "app", cfg.Storage.Namespace)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, "console", cfg.Logging.Format)
	require.Len(t, cfg.Groups, 1)
	assert.Len(t, cfg.Groups[0].Prefs, 4)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DriverNone, cfg.Cache.Driver)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Groups)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PREFER_SERVER_ADDRESS", ":7070")
	t.Setenv("PREFER_STORAGE_DRIVER", "postgres")
	t.Setenv("PREFER_STORAGE_DSN", "postgres://localhost/prefs")
	t.Setenv("PREFER_STORAGE_LISTEN", "true")
	t.Setenv("PREFER_REDIS_ADDR", "redis:6379")
	t.Setenv("PREFER_REDIS_DB", "3")
	t.Setenv("PREFER_CACHE_DRIVER", "redis")
	t.Setenv("PREFER_ENCRYPTION_ENABLED", "1")
	t.Setenv("PREFER_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/prefs", cfg.Storage.DSN)
	assert.True(t, cfg.Storage.Listen)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, 3, cfg.Cache.Redis.DB)
	assert.Equal(t, DriverRedis, cfg.Cache.Driver)
	assert.True(t, cfg.Encryption.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_BadEnvBool(t *testing.T) {
	t.Setenv("PREFER_STORAGE_LISTEN", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "PREFER_STORAGE_LISTEN")
}

func TestLoad_BadEnvRedisDB(t *testing.T) {
	t.Setenv("PREFER_REDIS_DB", "zero")
	_, err := Load("")
	assert.ErrorContains(t, err, "PREFER_REDIS_DB")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PREFER_LOG_FORMAT=console\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("PREFER_LOG_FORMAT")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.dsn"},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = DriverSQLite; c.Storage.Path = "" }, "storage.path"},
		{"unknown cache", func(c *Config) { c.Cache.Driver = "memcached" }, "cache.driver"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"group without type", func(c *Config) { c.Groups = []GroupConfig{{}} }, "groups[0].type"},
		{"duplicate group", func(c *Config) {
			c.Groups = []GroupConfig{{Type: "A"}, {Type: "A"}}
		}, "declared twice"},
		{"bad kind", func(c *Config) {
			c.Groups = []GroupConfig{{Type: "A", Prefs: []PrefConfig{{Name: "x", Kind: "map"}}}}
		}, "A:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// memStore is a minimal prefer.Store for registering groups.
type memStore struct {
	values map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", prefer.ErrNotFound
	}
	return v, nil
}
func (s *memStore) Set(_ context.Context, key, value string) error { s.values[key] = value; return nil }
func (s *memStore) Contains(_ context.Context, key string) (bool, error) {
	_, ok := s.values[key]
	return ok, nil
}
func (s *memStore) Delete(_ context.Context, key string) error { delete(s.values, key); return nil }
func (s *memStore) SetChangeHandler(prefer.ChangeHandler)      {}
func (s *memStore) Close() error                               { return nil }

func TestRegisterGroups(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	p, err := prefer.New(&memStore{values: map[string]string{}})
	require.NoError(t, err)
	require.NoError(t, cfg.RegisterGroups(p))

	g, ok := p.FindGroupByName("Settings")
	require.True(t, ok)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, "General settings", g.Meta().Summary)

	pref, err := p.FindPref("Settings:IsEnabled")
	require.NoError(t, err)
	assert.Equal(t, prefer.KindBool, pref.Kind())
	assert.Equal(t, true, pref.AnyDefault())
	assert.Equal(t, "Enabled", pref.Meta().Title)

	pref, err = p.FindPref("Settings:Ratio")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), pref.AnyDefault())

	// A second registration declares a new key type under a taken name.
	assert.ErrorIs(t, cfg.RegisterGroups(p), prefer.ErrDuplicateKeyType)
}

func TestRegisterGroups_BadDefault(t *testing.T) {
	cfg := defaultConfig()
	cfg.Groups = []GroupConfig{{Type: "A", Prefs: []PrefConfig{{Name: "n", Kind: "int", Default: "many"}}}}

	p, err := prefer.New(&memStore{values: map[string]string{}})
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.RegisterGroups(p), prefer.ErrInvalidValue)
}
