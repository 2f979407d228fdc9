// Package loader implements the round-based graph loader: it fetches entities
// in batches through a [source.Fetcher], follows configured relations to new
// entities depth by depth, and finishes with one enrichment round for entities
// that were referenced but not followed.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wdgraph/wdgraph/internal/build"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/source"
	"github.com/wdgraph/wdgraph/pkg/storage"
	"github.com/wdgraph/wdgraph/pkg/telemetry"
)

var tracer = otel.Tracer("wdgraph/pkg/loader")

// DefaultMaxConcurrentFetches bounds the fetches in flight across all sessions of a Loader.
const DefaultMaxConcurrentFetches = 8

var (
	// ErrNilStore is returned by New when no entity store is given.
	ErrNilStore = errors.New("loader: nil entity store")

	// ErrNilFetcher is returned by New when no fetcher is given.
	ErrNilFetcher = errors.New("loader: nil fetcher")
)

var (
	fetchBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "loader_fetch_batches_total",
		Help:      "The total number of batch fetches issued by the loader.",
	})

	failedFetchBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "loader_fetch_batch_failures_total",
		Help:      "The total number of batch fetches that failed and were treated as empty.",
	})

	loadedEntitiesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "loader_loaded_entities_total",
		Help:      "The total number of entities stored as loaded.",
	})

	sessionDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "loader_session_duration_seconds",
		Help:      "Time from the start of a load session until its finished callback.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// Config describes one top-level load.
type Config struct {
	// Follow lists the relations whose item targets are fetched in the next
	// round, depth permitting. Numeric values are read as property IDs.
	Follow []string

	// Preload lists the relations whose item targets are fetched once in the
	// final enrichment round, without following them further.
	Preload []string

	// PreloadAllForRoot preloads the targets of every relation present on the
	// seed entities instead of Preload, for the seed round only.
	PreloadAllForRoot bool

	// MaxDepth bounds following: 0 fetches the seeds only, 1 follows one hop
	// and so on. nil means unlimited.
	MaxDepth *int

	// Languages is forwarded to the fetcher for the follow rounds after the
	// seed round. The seed and post-load rounds fetch every language.
	Languages []string

	// OnStatus is invoked when the session starts and whenever a round is
	// issued or completes.
	OnStatus func(*Session)

	// OnLoaded is invoked once per entity stored as loaded by the session.
	OnLoaded func(entity.ID, *Session)

	// OnFinished is invoked exactly once, after every round has completed.
	OnFinished func(*Session)
}

// Depth returns a MaxDepth budget of n.
func Depth(n int) *int {
	return &n
}

// Loader issues load sessions against a shared entity store. A Loader is safe
// for concurrent use; overlapping sessions observe each other's loaded entities.
type Loader struct {
	store   storage.EntityStore
	fetcher source.Fetcher
	logger  logger.Logger

	maxBatchSize         int
	smallBatchSize       int
	smallListThreshold   int
	maxConcurrentFetches int64
	props                []string

	fetchSlots *semaphore.Weighted
}

// LoaderOption defines an option that can be used to change the behavior of a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used by the loader and its sessions.
func WithLogger(logger logger.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMaxBatchSize sets the per-call limit for large requests.
func WithMaxBatchSize(size int) LoaderOption {
	return func(l *Loader) {
		l.maxBatchSize = size
	}
}

// WithSmallBatchSize sets the per-call limit for requests of at most the small
// list threshold unique IDs.
func WithSmallBatchSize(size int) LoaderOption {
	return func(l *Loader) {
		l.smallBatchSize = size
	}
}

// WithSmallListThreshold sets the unique ID count up to which the small batch
// size applies.
func WithSmallListThreshold(n int) LoaderOption {
	return func(l *Loader) {
		l.smallListThreshold = n
	}
}

// WithMaxConcurrentFetches bounds the number of batch fetches in flight across
// all sessions of the loader.
func WithMaxConcurrentFetches(n int) LoaderOption {
	return func(l *Loader) {
		l.maxConcurrentFetches = int64(n)
	}
}

// WithProps sets the property selector sent with every fetch.
func WithProps(props []string) LoaderOption {
	return func(l *Loader) {
		l.props = props
	}
}

// New creates a Loader that stores into store and fetches through fetcher.
func New(store storage.EntityStore, fetcher source.Fetcher, opts ...LoaderOption) (*Loader, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	l := &Loader{
		store:                store,
		fetcher:              fetcher,
		logger:               logger.NewNoopLogger(),
		maxBatchSize:         DefaultMaxBatchSize,
		smallBatchSize:       DefaultSmallBatchSize,
		smallListThreshold:   DefaultSmallListThreshold,
		maxConcurrentFetches: DefaultMaxConcurrentFetches,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.maxBatchSize < 1 {
		l.maxBatchSize = DefaultMaxBatchSize
	}
	if l.smallBatchSize < 1 || l.smallBatchSize > l.maxBatchSize {
		l.smallBatchSize = l.maxBatchSize
	}
	if l.maxConcurrentFetches < 1 {
		l.maxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	l.fetchSlots = semaphore.NewWeighted(l.maxConcurrentFetches)

	return l, nil
}

// Store returns the entity store the loader writes to.
func (l *Loader) Store() storage.EntityStore {
	return l.store
}

// Start canonicalizes seeds (numeric values are read as item IDs) and the
// configured relations, then issues the seed round and returns without waiting.
// Callbacks run on the goroutines that complete fetches, serialized per session.
//
// Cancelling ctx does not stop a session: outstanding fetches fail fast, their
// groups count as empty and the session still finishes.
func (l *Loader) Start(ctx context.Context, seeds []string, cfg Config) (*Session, error) {
	ids, err := entity.CanonicalizeMany(seeds, entity.TypeItem)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	follow, err := entity.CanonicalizeMany(cfg.Follow, entity.TypeProperty)
	if err != nil {
		return nil, fmt.Errorf("invalid follow relation: %w", err)
	}
	preload, err := entity.CanonicalizeMany(cfg.Preload, entity.TypeProperty)
	if err != nil {
		return nil, fmt.Errorf("invalid preload relation: %w", err)
	}

	s := newSession(ctx, l, cfg, follow, preload)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("load session started",
		zap.Int("seeds", len(ids)),
		zap.Stringers("follow", follow),
		zap.Stringers("preload", preload),
	)
	s.notifyStatusLocked()

	if s.issueLocked(ids, budgetFrom(cfg.MaxDepth), phaseExpand, true) == 0 {
		s.finishLocked()
	}

	return s, nil
}

// Load starts a session and waits for it to finish or for ctx to be done.
func (l *Loader) Load(ctx context.Context, seeds []string, cfg Config) (*Session, error) {
	s, err := l.Start(ctx, seeds, cfg)
	if err != nil {
		return nil, err
	}

	if err := s.Wait(ctx); err != nil {
		return s, err
	}

	return s, nil
}

// fetchBatch performs one remote call for ids. Any failure, including a
// panicking fetcher, yields a nil result.
func (l *Loader) fetchBatch(ctx context.Context, s *Session, ids []entity.ID, opts source.FetchOptions) map[entity.ID]*entity.Payload {
	ctx, span := tracer.Start(ctx, "fetchBatch", trace.WithAttributes(
		attribute.String("session_id", s.ID()),
		attribute.Int("batch_size", len(ids)),
	))
	defer span.End()

	fetchBatchCounter.Inc()

	fail := func(err error) map[entity.ID]*entity.Payload {
		failedFetchBatchCounter.Inc()
		s.failedBatches.Add(1)
		telemetry.TraceError(span, err)
		s.logger.WarnWithContext(ctx, "batch fetch failed, entities stay placeholders",
			zap.Int("batch_size", len(ids)),
			zap.Error(err),
		)
		return nil
	}

	if err := l.fetchSlots.Acquire(ctx, 1); err != nil {
		return fail(fmt.Errorf("%w: %w", source.ErrFetchFailed, err))
	}
	defer l.fetchSlots.Release(1)

	var (
		payloads map[entity.ID]*entity.Payload
		err      error
		catcher  panics.Catcher
	)
	catcher.Try(func() {
		payloads, err = l.fetcher.FetchBatch(ctx, ids, opts)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = fmt.Errorf("%w: %w", source.ErrFetchFailed, recovered.AsError())
	}
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.Int("entities", len(payloads)))
	return payloads
}
