package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/lock"
)

type stubSource struct {
	mu    sync.Mutex
	defs  []bundle.Definition
	err   error
	calls int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(context.Context) ([]bundle.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.defs, s.err
}

func (s *stubSource) set(defs []bundle.Definition, err error) {
	s.mu.Lock()
	s.defs, s.err = defs, err
	s.mu.Unlock()
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func duo(parent string) bundle.Definition {
	return bundle.Definition{
		ParentVariantID: parent,
		Components:      []bundle.Component{{VariantID: "A", Quantity: 1}, {VariantID: "B", Quantity: 1}},
	}
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestServiceLoadsFromSourceAndCaches(t *testing.T) {
	client, mr := newRedis(t)
	src := &stubSource{defs: []bundle.Definition{duo("P1")}}
	svc := NewService(ServiceConfig{Source: src, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})

	cat, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())
	require.True(t, mr.Exists(CacheKey))

	snap, err := svc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "stub", snap.Source)
	require.Equal(t, 1, snap.Count)
	require.Equal(t, "P1", snap.Bundles[0].ParentVariantID)

	// A second replica starts from the cache without touching the source.
	other := &stubSource{err: errors.New("unreachable")}
	replica := NewService(ServiceConfig{Source: other, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})
	cat, err = replica.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "P1", firstParent(t, cat))
	require.Zero(t, other.count())

	snap, err = replica.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "cache", snap.Source)
}

func TestServiceIgnoresCorruptCache(t *testing.T) {
	client, mr := newRedis(t)
	require.NoError(t, mr.Set(CacheKey, `{"bundles":[{"parentVariantId":"P","components":[]}]}`))
	src := &stubSource{defs: []bundle.Definition{duo("P1")}}
	svc := NewService(ServiceConfig{Source: src, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})

	cat, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "P1", firstParent(t, cat))
	require.Equal(t, 1, src.count())
}

func TestServiceRejectsMalformedSource(t *testing.T) {
	src := &stubSource{defs: []bundle.Definition{{ParentVariantID: "P"}}}
	svc := NewService(ServiceConfig{Source: src, Logger: zerolog.Nop()})

	_, err := svc.Current(context.Background())
	require.ErrorIs(t, err, bundle.ErrMalformedDefinition)

	_, err = svc.Snapshot()
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestServiceKeepsPreviousCatalogWhenReloadFails(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{defs: []bundle.Definition{duo("P1")}}
	svc := NewService(ServiceConfig{
		Source: src,
		MaxAge: time.Minute,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return now },
	})

	first, err := svc.Current(context.Background())
	require.NoError(t, err)

	src.set([]bundle.Definition{{ParentVariantID: "broken"}}, nil)
	now = now.Add(2 * time.Minute)

	got, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Same(t, first, got)
	require.Equal(t, 2, src.count())

	src.set([]bundle.Definition{duo("P2"), duo("P3")}, nil)
	got, err = svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
}

func TestServiceReloadsStaleCatalogOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var clock sync.Mutex
	now := start
	src := &stubSource{defs: []bundle.Definition{duo("P1")}}
	svc := NewService(ServiceConfig{
		Source: src,
		MaxAge: time.Minute,
		Logger: zerolog.Nop(),
		Now: func() time.Time {
			clock.Lock()
			defer clock.Unlock()
			return now
		},
	})
	_, err := svc.Current(context.Background())
	require.NoError(t, err)

	clock.Lock()
	now = start.Add(5 * time.Minute)
	clock.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Current(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 2, src.count())
}

func TestServiceServesFreshCatalogWithoutReloading(t *testing.T) {
	src := &stubSource{defs: []bundle.Definition{duo("P1")}}
	svc := NewService(ServiceConfig{Source: src, MaxAge: time.Hour, Logger: zerolog.Nop()})

	for i := 0; i < 3; i++ {
		_, err := svc.Current(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, src.count())
}

func TestServiceRefreshBypassesCache(t *testing.T) {
	client, _ := newRedis(t)
	cache := NewCache(client, time.Minute)
	require.NoError(t, cache.Set(context.Background(), NewDocument([]bundle.Definition{duo("stale")})))

	src := &stubSource{defs: []bundle.Definition{duo("fresh")}}
	locker := lock.Locker{R: client, RetryBackoff: time.Millisecond}
	svc := NewService(ServiceConfig{Source: src, Cache: cache, Locker: locker, Logger: zerolog.Nop()})

	cat, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", firstParent(t, cat))

	doc, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", doc.Bundles[0].ParentVariantID)
}

func TestServiceRefreshReportsHeldLock(t *testing.T) {
	client, _ := newRedis(t)
	locker := lock.Locker{R: client}
	svc := NewService(ServiceConfig{Source: &stubSource{defs: []bundle.Definition{duo("P")}}, Locker: locker, Logger: zerolog.Nop()})

	err := locker.TryWithLock(context.Background(), refreshLockKey, time.Second, func(ctx context.Context) error {
		_, err := svc.Refresh(ctx)
		return err
	})
	require.ErrorIs(t, err, ErrRefreshInProgress)
}

func firstParent(t *testing.T, cat *bundle.Catalog) string {
	t.Helper()
	def, ok := cat.Definition(0)
	require.True(t, ok, "catalog is empty")
	return def.ParentVariantID
}
