// Package caching provides a source.Fetcher that keeps decoded payloads in
// memory and only forwards cache misses to the wrapped fetcher.
package caching

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wdgraph/wdgraph/internal/build"
	"github.com/wdgraph/wdgraph/internal/keys"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/source"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

const (
	DefaultMaxSize = 10000
	DefaultTTL     = 10 * time.Minute
)

var (
	cacheLookupCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "fetch_cache_lookups_total",
		Help:      "The total number of entity lookups in the fetch cache.",
	})

	cacheHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "fetch_cache_hits_total",
		Help:      "The total number of entity lookups served from the fetch cache.",
	})
)

// Fetcher caches payloads per ID and fetch options.
type Fetcher struct {
	delegate source.Fetcher
	cache    storage.InMemoryCache[*entity.Payload]
	maxSize  int64
	ttl      time.Duration
	logger   logger.Logger
}

var _ source.Fetcher = (*Fetcher)(nil)

type FetcherOpt func(*Fetcher)

func WithMaxSize(size int64) FetcherOpt {
	return func(f *Fetcher) {
		f.maxSize = size
	}
}

// WithTTL sets how long a payload is served from the cache. A non-positive
// value keeps payloads until they are evicted.
func WithTTL(ttl time.Duration) FetcherOpt {
	return func(f *Fetcher) {
		f.ttl = ttl
	}
}

func WithLogger(logger logger.Logger) FetcherOpt {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func NewFetcher(delegate source.Fetcher, opts ...FetcherOpt) (*Fetcher, error) {
	f := &Fetcher{
		delegate: delegate,
		maxSize:  DefaultMaxSize,
		ttl:      DefaultTTL,
		logger:   logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	cache, err := storage.NewInMemoryLRUCache(storage.WithMaxCacheSize[*entity.Payload](f.maxSize))
	if err != nil {
		return nil, err
	}
	f.cache = cache

	return f, nil
}

// FetchBatch serves cached payloads and fetches the remaining IDs from the
// delegate in one call. Delegate failures are returned as is; payloads already
// found in the cache are not returned in that case.
func (f *Fetcher) FetchBatch(ctx context.Context, ids []entity.ID, opts source.FetchOptions) (map[entity.ID]*entity.Payload, error) {
	out := make(map[entity.ID]*entity.Payload, len(ids))
	misses := make([]entity.ID, 0, len(ids))

	for _, id := range ids {
		cacheLookupCounter.Inc()
		if p, ok := f.cache.Get(cacheKey(id, opts)); ok {
			cacheHitCounter.Inc()
			out[id] = p
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := f.delegate.FetchBatch(ctx, misses, opts)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetch cache miss",
		zap.Int("hits", len(ids)-len(misses)),
		zap.Int("misses", len(misses)),
	)

	for id, p := range fetched {
		f.cache.Set(cacheKey(id, opts), p, f.ttl)
		out[id] = p
	}

	return out, nil
}

// Close releases the cache.
func (f *Fetcher) Close() {
	f.cache.Stop()
}

func cacheKey(id entity.ID, opts source.FetchOptions) string {
	return keys.EntityKey(id, opts).String()
}
