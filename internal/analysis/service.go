// Package analysis runs forest-change reductions against the remote analysis
// platform, caching results and recording each run.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forest-cli/internal/cache"
	"github.com/sells-group/forest-cli/internal/model"
	"github.com/sells-group/forest-cli/internal/store"
	"github.com/sells-group/forest-cli/pkg/earthengine"
)

var (
	// ErrForma marks a failed FORMA 250 analysis.
	ErrForma = errors.New("error in Forma250 analysis")
	// ErrExtent marks a failed extent analysis.
	ErrExtent = errors.New("error in extent analysis")
	// ErrInvalidRequest marks a request rejected before any remote call.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// Error is a failed remote analysis. errors.Is matches both its kind
// (ErrForma, ErrExtent) and the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string { return e.Kind.Error() + ": " + e.Err.Error() }

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

func invalid(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidRequest, format, args...)
}

// Config holds asset IDs and tuning for the service.
type Config struct {
	// FormaAsset is the FORMA 250 image collection.
	FormaAsset string
	// Admin0Asset and Admin1Asset hold country and state boundaries.
	Admin0Asset string
	Admin1Asset string
	// ExtentAsset and ExtentBand are used when an extent request names none.
	ExtentAsset string
	ExtentBand  string
	// Concurrency bounds per-tile reductions.
	Concurrency int
	// CacheTTL is how long results stay cached. Zero disables caching.
	CacheTTL time.Duration
}

// Service orchestrates remote reductions.
type Service struct {
	client earthengine.Client
	cache  cache.Cache
	store  store.Store
	cfg    Config
}

// NewService wires a platform client with an optional cache and run store.
// A nil cache or store disables that concern.
func NewService(client earthengine.Client, c cache.Cache, s store.Store, cfg Config) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{client: client, cache: c, store: s, cfg: cfg}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// lookup returns a cached result for key, if any. Cache failures are logged
// and treated as misses.
func (s *Service) lookup(ctx context.Context, key string, out any) bool {
	if s.cfg.CacheTTL <= 0 {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("analysis: cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		zap.L().Warn("analysis: discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) remember(ctx context.Context, key string, result any) {
	if s.cfg.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		zap.L().Warn("analysis: cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// run tracks one recorded analysis. A nil run is a no-op so callers need
// not check whether a store is configured.
type run struct {
	store store.Store
	id    string
}

func (s *Service) startRun(ctx context.Context, kind model.RunKind, params any) *run {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		zap.L().Warn("analysis: marshal run params", zap.Error(err))
		return nil
	}
	r, err := s.store.CreateRun(ctx, kind, data)
	if err != nil {
		zap.L().Warn("analysis: record run", zap.String("kind", string(kind)), zap.Error(err))
		return nil
	}
	return &run{store: s.store, id: r.ID}
}

// ID returns the stored run ID, or "" when runs are not recorded.
func (r *run) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

func (r *run) complete(ctx context.Context, result any, cacheHit bool) {
	if r == nil {
		return
	}
	data, err := json.Marshal(result)
	if err == nil {
		err = r.store.CompleteRun(ctx, r.id, data, cacheHit)
	}
	if err != nil {
		zap.L().Warn("analysis: complete run", zap.String("run_id", r.id), zap.Error(err))
	}
}

func (r *run) fail(ctx context.Context, cause error) {
	if r == nil {
		return
	}
	// The request context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := r.store.FailRun(ctx, r.id, cause.Error()); err != nil {
		zap.L().Warn("analysis: fail run", zap.String("run_id", r.id), zap.Error(err))
	}
}
