package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/obs"
)

const refreshLockKey = "bundles:catalog:refresh"

var (
	// ErrRefreshInProgress is returned when another replica holds the refresh lock.
	ErrRefreshInProgress = errors.New("catalog: refresh already in progress")
	// ErrNotLoaded is returned when no catalog could be loaded yet.
	ErrNotLoaded = errors.New("catalog: not loaded")
)

// Source yields bundle definitions in priority order.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]bundle.Definition, error)
}

// Locker guards refreshes across replicas.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source  Source
	Cache   *Cache
	Locker  Locker
	LockTTL time.Duration
	// MaxAge bounds how long a loaded catalog is served before Current reloads it. Zero disables reloads.
	MaxAge time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// Snapshot describes the catalog currently served.
type Snapshot struct {
	Source   string      `json:"source"`
	LoadedAt time.Time   `json:"loadedAt"`
	Count    int         `json:"count"`
	Bundles  []BundleDTO `json:"bundles"`
}

// Service owns the active static catalog and its reload lifecycle.
type Service struct {
	source  Source
	cache   *Cache
	locker  Locker
	lockTTL time.Duration
	maxAge  time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	loadMu   sync.Mutex
	mu       sync.RWMutex
	current  *bundle.Catalog
	origin   string
	loadedAt time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		source:  cfg.Source,
		cache:   cfg.Cache,
		locker:  cfg.Locker,
		lockTTL: ttl,
		maxAge:  cfg.MaxAge,
		logger:  cfg.Logger,
		now:     now,
	}
}

// Current returns the active catalog, loading it on first use and reloading
// it once stale. A failed reload keeps serving the previous catalog.
func (s *Service) Current(ctx context.Context) (*bundle.Catalog, error) {
	s.mu.RLock()
	cat, loadedAt := s.current, s.loadedAt
	s.mu.RUnlock()

	if cat != nil && (s.maxAge <= 0 || s.now().Sub(loadedAt) < s.maxAge) {
		return cat, nil
	}
	fresh, err := s.reload(ctx, loadedAt)
	if err != nil {
		if cat != nil {
			s.logger.Warn().Err(err).Msg("catalog reload failed, serving previous catalog")
			return cat, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Load installs a catalog from the cache when present, otherwise from the source.
func (s *Service) Load(ctx context.Context) (*bundle.Catalog, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.load(ctx)
}

// reload loads unless another caller installed a catalog after observed.
func (s *Service) reload(ctx context.Context, observed time.Time) (*bundle.Catalog, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.RLock()
	cat, loadedAt := s.current, s.loadedAt
	s.mu.RUnlock()
	if cat != nil && loadedAt.After(observed) {
		return cat, nil
	}
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) (*bundle.Catalog, error) {
	if doc, ok, err := s.cache.Get(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	} else if ok {
		cat, err := catalogFromDocument(doc)
		if err == nil {
			obs.RecordCatalogLoad("cache", "ok", cat.Len())
			s.install(cat, "cache")
			return cat, nil
		}
		obs.RecordCatalogLoad("cache", "rejected", 0)
		s.logger.Warn().Err(err).Msg("cached catalog rejected")
	}
	return s.loadFromSource(ctx)
}

// Refresh reloads from the source, bypassing the cache, and rewrites the cache.
// When a Locker is configured only one replica refreshes at a time.
func (s *Service) Refresh(ctx context.Context) (*bundle.Catalog, error) {
	if s.locker == nil {
		return s.refresh(ctx)
	}
	var cat *bundle.Catalog
	err := s.locker.TryWithLock(ctx, refreshLockKey, s.lockTTL, func(ctx context.Context) error {
		var err error
		cat, err = s.refresh(ctx)
		return err
	})
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrRefreshInProgress
	}
	return cat, err
}

func (s *Service) refresh(ctx context.Context) (*bundle.Catalog, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.loadFromSource(ctx)
}

func (s *Service) loadFromSource(ctx context.Context) (*bundle.Catalog, error) {
	if s.source == nil {
		return nil, ErrNotLoaded
	}
	name := s.source.Name()
	defs, err := s.source.Load(ctx)
	if err != nil {
		obs.RecordCatalogLoad(name, resultFor(err), 0)
		return nil, fmt.Errorf("load catalog from %s: %w", name, err)
	}
	cat, err := bundle.NewCatalog(defs)
	if err != nil {
		obs.RecordCatalogLoad(name, "rejected", 0)
		return nil, fmt.Errorf("load catalog from %s: %w", name, err)
	}
	obs.RecordCatalogLoad(name, "ok", cat.Len())
	if err := s.cache.Set(ctx, NewDocument(cat.Definitions())); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	s.install(cat, name)
	s.logger.Info().Str("source", name).Int("definitions", cat.Len()).Msg("catalog loaded")
	return cat, nil
}

func (s *Service) install(cat *bundle.Catalog, origin string) {
	s.mu.Lock()
	s.current = cat
	s.origin = origin
	s.loadedAt = s.now()
	s.mu.Unlock()
}

// Snapshot reports the catalog currently installed without triggering a load.
func (s *Service) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, ErrNotLoaded
	}
	doc := NewDocument(s.current.Definitions())
	return Snapshot{
		Source:   s.origin,
		LoadedAt: s.loadedAt,
		Count:    s.current.Len(),
		Bundles:  doc.Bundles,
	}, nil
}

func catalogFromDocument(doc Document) (*bundle.Catalog, error) {
	defs, err := doc.Definitions()
	if err != nil {
		return nil, err
	}
	return bundle.NewCatalog(defs)
}

func resultFor(err error) string {
	if errors.Is(err, bundle.ErrMalformedDefinition) {
		return "rejected"
	}
	return "error"
}
