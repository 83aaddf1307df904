// Package config loads the prefer server configuration.
//
// Configuration is read from a YAML file, then overridden by PREFER_*
// environment variables. A .env file in the working directory is loaded into
// the environment first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/CreativeUnicorns/prefer"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverNone     = "none"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    LoggingConfig    `yaml:"logging"`
	Groups     []GroupConfig    `yaml:"groups"`
}

// ServerConfig contains HTTP API settings. Timeouts are in seconds.
type ServerConfig struct {
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
}

// StorageConfig selects and configures the backing store.
type StorageConfig struct {
	Driver    string      `yaml:"driver"`
	Namespace string      `yaml:"namespace"`
	Path      string      `yaml:"path"`
	DSN       string      `yaml:"dsn"`
	Listen    bool        `yaml:"listen"`
	Redis     RedisConfig `yaml:"redis"`
}

// CacheConfig selects the read cache in front of the store.
type CacheConfig struct {
	Driver string      `yaml:"driver"`
	TTL    int         `yaml:"ttl"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EncryptionConfig enables value encryption. The key itself is only read
// from the PREFER_ENCRYPTION_KEY environment variable.
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GroupConfig declares a group of prefs sharing one key type.
type GroupConfig struct {
	Type    string       `yaml:"type"`
	Title   string       `yaml:"title"`
	Summary string       `yaml:"summary"`
	Prefs   []PrefConfig `yaml:"prefs"`
}

// PrefConfig declares one pref. Default is given in its text form.
type PrefConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Default string `yaml:"default"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

// Load reads the configuration at path. An empty path yields the defaults
// with environment overrides applied.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Storage: StorageConfig{
			Driver:    DriverMemory,
			Namespace: "default",
			Path:      "./prefer.db",
			Redis:     RedisConfig{Addr: "localhost:6379"},
		},
		Cache: CacheConfig{
			Driver: DriverNone,
			TTL:    3600,
			Redis:  RedisConfig{Addr: "localhost:6379"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies PREFER_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PREFER_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}

	if v := os.Getenv("PREFER_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("PREFER_STORAGE_NAMESPACE"); v != "" {
		cfg.Storage.Namespace = v
	}
	if v := os.Getenv("PREFER_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PREFER_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PREFER_STORAGE_LISTEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PREFER_STORAGE_LISTEN: %w", err)
		}
		cfg.Storage.Listen = b
	}

	// Redis settings apply to both the store and the cache.
	if v := os.Getenv("PREFER_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("PREFER_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("PREFER_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PREFER_REDIS_DB: %w", err)
		}
		cfg.Storage.Redis.DB = db
		cfg.Cache.Redis.DB = db
	}

	if v := os.Getenv("PREFER_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}

	if v := os.Getenv("PREFER_ENCRYPTION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PREFER_ENCRYPTION_ENABLED: %w", err)
		}
		cfg.Encryption.Enabled = b
	}

	if v := os.Getenv("PREFER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PREFER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Address == "" {
		errs = append(errs, "server.address is required")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not one of memory, sqlite, postgres, redis", c.Storage.Driver))
	}

	switch c.Cache.Driver {
	case DriverNone, DriverMemory, DriverRedis:
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of none, memory, redis", c.Cache.Driver))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not one of json, console", c.Logging.Format))
	}

	seen := make(map[string]bool)
	for i, g := range c.Groups {
		if g.Type == "" {
			errs = append(errs, fmt.Sprintf("groups[%d].type is required", i))
			continue
		}
		if seen[g.Type] {
			errs = append(errs, fmt.Sprintf("group %s is declared twice", g.Type))
		}
		seen[g.Type] = true
		for j, p := range g.Prefs {
			if p.Name == "" {
				errs = append(errs, fmt.Sprintf("groups[%d].prefs[%d].name is required", i, j))
			}
			if _, err := prefer.ParseValueKind(p.Kind); err != nil {
				errs = append(errs, fmt.Sprintf("%s:%s: %v", g.Type, p.Name, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ReadTimeoutDuration returns the API read timeout as a Duration.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the API write timeout as a Duration.
func (c *Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// CacheTTL returns the cache lifetime as a Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// RegisterGroups creates the declared groups and prefs on p.
func (c *Config) RegisterGroups(p *prefer.Prefer) error {
	for _, gc := range c.Groups {
		names := make([]string, 0, len(gc.Prefs))
		for _, pc := range gc.Prefs {
			names = append(names, pc.Name)
		}
		if len(names) == 0 {
			return fmt.Errorf("group %s declares no prefs", gc.Type)
		}

		kt, err := prefer.NewKeyType(gc.Type, names...)
		if err != nil {
			return fmt.Errorf("group %s: %w", gc.Type, err)
		}
		g, err := p.AddNewGroup(kt, prefer.WithGroupMeta(gc.Title, gc.Summary))
		if err != nil {
			return fmt.Errorf("group %s: %w", gc.Type, err)
		}

		for _, pc := range gc.Prefs {
			kind, err := prefer.ParseValueKind(pc.Kind)
			if err != nil {
				return fmt.Errorf("pref %s:%s: %w", gc.Type, pc.Name, err)
			}
			if _, err := g.AddNew(kind, kt.MustKey(pc.Name), pc.Default,
				prefer.WithTitle(pc.Title), prefer.WithSummary(pc.Summary)); err != nil {
				return fmt.Errorf("pref %s:%s: %w", gc.Type, pc.Name, err)
			}
		}
	}
	return nil
}
