package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/cache"
	"github.com/sells-group/forest-cli/internal/store"
	"github.com/sells-group/forest-cli/pkg/earthengine"
)

// env bundles what analysis commands need.
type env struct {
	Service *analysis.Service
	Store   store.Store
	Cache   cache.Cache
}

// Close releases the store and cache.
func (e *env) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

func initCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "none":
		return cache.Noop{}, nil
	case "redis":
		r := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.Prefix)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	case "memory", "":
		return cache.NewMemory(cfg.Cache.MaxEntries), nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

func initClient() earthengine.Client {
	timeout := time.Duration(cfg.Platform.TimeoutSecs) * time.Second
	return earthengine.NewClient(cfg.Platform.Token, cfg.Platform.Project,
		earthengine.WithBaseURL(cfg.Platform.BaseURL),
		earthengine.WithRateLimit(cfg.Platform.RateLimit),
		earthengine.WithPolicy(cfg.Policy()),
		earthengine.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// initEnv validates the config for mode and wires the client, cache and
// store into an analysis service.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	c, err := initCache(ctx)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init cache")
	}

	svc := analysis.NewService(initClient(), c, st, cfg.AnalysisService())
	zap.L().Debug("analysis environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Driver),
	)
	return &env{Service: svc, Store: st, Cache: c}, nil
}
