package main

import (
	"errors"
	"fmt"

	"github.com/CreativeUnicorns/prefer"
	"github.com/CreativeUnicorns/prefer/cache"
	"github.com/CreativeUnicorns/prefer/encryption"
	"github.com/CreativeUnicorns/prefer/internal/config"
	"github.com/CreativeUnicorns/prefer/storage"
)

// app holds everything built from the configuration.
type app struct {
	cfg     *config.Config
	logger  prefer.LeveledLogger
	backend prefer.Store
	store   prefer.Store
	prefer  *prefer.Prefer
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := wrapStore(cfg, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	p, err := prefer.New(store, prefer.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := cfg.RegisterGroups(p); err != nil {
		_ = store.Close()
		return nil, err
	}
	p.Initialize()

	return &app{cfg: cfg, logger: logger, backend: backend, store: store, prefer: p}, nil
}

func (a *app) Close() error {
	a.prefer.Dispose()
	return a.store.Close()
}

func newLogger(cfg config.LoggingConfig) (prefer.LeveledLogger, error) {
	level := prefer.ParseLogLevel(cfg.Level)
	if cfg.Format == "console" {
		return prefer.NewZapLogger(level)
	}
	logger := prefer.NewDefaultLogger()
	logger.SetLevel(level)
	return logger, nil
}

func openBackend(cfg *config.Config, logger prefer.Logger) (prefer.Store, error) {
	opts := []storage.Option{
		storage.WithNamespace(cfg.Storage.Namespace),
		storage.WithLogger(logger),
	}
	if cfg.Storage.Listen {
		opts = append(opts, storage.WithListen())
	}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverSQLite:
		return storage.NewSQLiteStore(cfg.Storage.Path, opts...)
	case config.DriverPostgres:
		return storage.NewPostgresStore(cfg.Storage.DSN, opts...)
	case config.DriverRedis:
		r := cfg.Storage.Redis
		return storage.NewRedisStore(r.Addr, r.Password, r.DB, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// wrapStore layers the cache and then encryption over backend, so cached
// values stay sealed.
func wrapStore(cfg *config.Config, backend prefer.Store, logger prefer.Logger) (prefer.Store, error) {
	store := backend

	var c cache.Cache
	switch cfg.Cache.Driver {
	case config.DriverNone, "":
	case config.DriverMemory:
		c = cache.NewMemoryCache()
	case config.DriverRedis:
		r := cfg.Cache.Redis
		rc, err := cache.NewRedisCache(r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, err
		}
		c = rc
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
	if c != nil {
		store = storage.NewCachedStore(store, c,
			storage.WithNamespace(cfg.Storage.Namespace),
			storage.WithCacheTTL(cfg.CacheTTL()),
			storage.WithLogger(logger))
	}

	if cfg.Encryption.Enabled {
		m, err := encryption.NewManager()
		if err != nil {
			if c != nil {
				_ = c.Close()
			}
			return nil, fmt.Errorf("encryption: %w", err)
		}
		store = storage.NewEncryptedStore(store, m)
	}

	return store, nil
}

// lookupPref resolves a "Type:Name" argument against the configured groups.
func (a *app) lookupPref(arg string) (prefer.Preference, error) {
	pref, err := a.prefer.FindPref(arg)
	if errors.Is(err, prefer.ErrUnknownKey) || errors.Is(err, prefer.ErrNotFound) {
		return nil, fmt.Errorf("no pref %q is configured", arg)
	}
	return pref, err
}
