package loader

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/source"
)

type phase int

const (
	// phaseExpand rounds follow relations and collect post-load IDs.
	phaseExpand phase = iota
	// phasePostLoad rounds only fetch.
	phasePostLoad
)

func (p phase) String() string {
	if p == phasePostLoad {
		return "post_load"
	}
	return "expand"
}

// depthBudget is the remaining follow depth of a round. An unlimited budget
// never runs out.
type depthBudget struct {
	limited   bool
	remaining int
}

func budgetFrom(maxDepth *int) depthBudget {
	if maxDepth == nil {
		return depthBudget{}
	}
	return depthBudget{limited: true, remaining: *maxDepth}
}

func (d depthBudget) exhausted() bool {
	return d.limited && d.remaining < 0
}

func (d depthBudget) next() depthBudget {
	if !d.limited {
		return d
	}
	return depthBudget{limited: true, remaining: d.remaining - 1}
}

// round carries what a fetch completion needs to know about the round it
// belongs to.
type round struct {
	// budget is handed to rounds started from this round's completions.
	budget depthBudget
	phase  phase
	// root marks the seed round of the session.
	root bool
}

// Session is the state of one top-level load. It is created by [Loader.Start]
// and shared by every round the load issues.
//
// Fetch completions are processed one at a time under the session lock; the
// configured callbacks run under that lock too and must not call back into
// the same session. The accessor methods below are safe to call from callbacks.
type Session struct {
	id     ulid.ULID
	ctx    context.Context
	loader *Loader
	logger logger.Logger

	follow            []entity.ID
	preload           []entity.ID
	preloadAllForRoot bool
	languages         []string

	onStatus   func(*Session)
	onLoaded   func(entity.ID, *Session)
	onFinished func(*Session)

	mu        sync.Mutex
	requested map[entity.ID]struct{} // GUARDED_BY(mu).
	postLoad  *linkedhashset.Set     // GUARDED_BY(mu).
	finished  bool                   // GUARDED_BY(mu).

	// running is the in-flight round counter. It is only mutated under mu.
	running        atomic.Int64
	requestedCount atomic.Int64
	loadedCount    atomic.Int64
	failedBatches  atomic.Int64
	postLoadSize   atomic.Int64
	done           chan struct{}
	startedAt      time.Time
}

func newSession(ctx context.Context, l *Loader, cfg Config, follow, preload []entity.ID) *Session {
	id := ulid.Make()
	return &Session{
		id:                id,
		ctx:               ctx,
		loader:            l,
		logger:            l.logger.With(zap.String("session_id", id.String())),
		follow:            follow,
		preload:           preload,
		preloadAllForRoot: cfg.PreloadAllForRoot,
		languages:         cfg.Languages,
		onStatus:          cfg.OnStatus,
		onLoaded:          cfg.OnLoaded,
		onFinished:        cfg.OnFinished,
		requested:         make(map[entity.ID]struct{}),
		postLoad:          linkedhashset.New(),
		done:              make(chan struct{}),
		startedAt:         time.Now(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id.String()
}

// Follow returns the canonical follow relations.
func (s *Session) Follow() []entity.ID {
	return s.follow
}

// Preload returns the canonical preload relations.
func (s *Session) Preload() []entity.ID {
	return s.preload
}

// Running returns the number of rounds whose fetch has not completed yet.
func (s *Session) Running() int {
	return int(s.running.Load())
}

// Requested returns the number of IDs the session has issued fetches for.
func (s *Session) Requested() int {
	return int(s.requestedCount.Load())
}

// Loaded returns the number of entities the session stored as loaded.
func (s *Session) Loaded() int {
	return int(s.loadedCount.Load())
}

// FailedBatches returns the number of batch fetches that failed.
func (s *Session) FailedBatches() int {
	return int(s.failedBatches.Load())
}

// PostLoadSize returns the number of IDs collected for the enrichment round.
func (s *Session) PostLoadSize() int {
	return int(s.postLoadSize.Load())
}

// Done returns a channel that is closed once the finished callback returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finished or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// issueLocked partitions the IDs of ids that still need fetching and starts
// one fetch per group. It returns the number of groups started.
func (s *Session) issueLocked(ids []entity.ID, budget depthBudget, ph phase, root bool) int {
	if budget.exhausted() {
		return 0
	}

	pending := s.pendingLocked(ids)
	if len(pending) == 0 {
		return 0
	}

	groups := Partition(pending, s.loader.Capacity(len(pending)))
	r := round{budget: budget.next(), phase: ph, root: root}

	opts := source.FetchOptions{Props: s.loader.props}
	if !root && ph != phasePostLoad {
		opts.Languages = s.languages
	}

	s.logger.Debug("issuing round",
		zap.Stringer("phase", ph),
		zap.Int("ids", len(pending)),
		zap.Int("batches", len(groups)),
	)

	for _, group := range groups {
		for _, id := range group {
			s.loader.store.EnsurePlaceholder(id)
			s.requested[id] = struct{}{}
		}
		s.requestedCount.Add(int64(len(group)))
		s.running.Add(1)
		s.notifyStatusLocked()

		go s.fetch(group, r, opts)
	}

	return len(groups)
}

// pendingLocked returns ids deduplicated, in order, without those already
// loaded or already requested by the session.
func (s *Session) pendingLocked(ids []entity.ID) []entity.ID {
	seen := make(map[entity.ID]struct{}, len(ids))
	pending := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if s.knownLocked(id) {
			continue
		}
		pending = append(pending, id)
	}
	return pending
}

// knownLocked reports whether id is loaded or already requested by the
// session. A placeholder owned by another session does not count.
func (s *Session) knownLocked(id entity.ID) bool {
	if _, ok := s.requested[id]; ok {
		return true
	}
	return s.loader.store.IsLoaded(id)
}

func (s *Session) fetch(ids []entity.ID, r round, opts source.FetchOptions) {
	payloads := s.loader.fetchBatch(s.ctx, s, ids, opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.completeLocked(ids, payloads, r)
}

// completeLocked processes one fetch response, starts the follow-up round if
// any, and closes the session when it was the last round in flight.
func (s *Session) completeLocked(requested []entity.ID, payloads map[entity.ID]*entity.Payload, r round) {
	next := linkedhashset.New()

	for _, key := range responseOrder(requested, payloads) {
		payload := payloads[key]
		if payload == nil {
			continue
		}
		id, err := entity.Canonicalize(string(key), entity.TypeItem)
		if err != nil {
			s.logger.Warn("skipping entity with invalid id", zap.String("id", string(key)), zap.Error(err))
			continue
		}

		s.loader.store.PutLoaded(id, payload)
		s.loadedCount.Add(1)
		loadedEntitiesCounter.Inc()
		if s.onLoaded != nil {
			s.onLoaded(id, s)
		}

		if r.phase == phaseExpand {
			s.discoverLocked(entity.NewLoaded(id, payload), r.root, next)
		}
	}

	if next.Size() > 0 {
		s.issueLocked(setToIDs(next), r.budget, phaseExpand, false)
	}

	s.running.Add(-1)
	s.notifyStatusLocked()

	if s.running.Load() != 0 {
		return
	}

	if r.phase == phaseExpand && s.postLoad.Size() > 0 {
		// The enrichment round only fetches: a zero budget keeps it from following.
		if s.issueLocked(setToIDs(s.postLoad), depthBudget{limited: true}, phasePostLoad, false) > 0 {
			return
		}
	}

	s.finishLocked()
}

// discoverLocked collects the session's next-round and post-load IDs from a
// freshly loaded entity.
func (s *Session) discoverLocked(e *entity.Entity, root bool, next *linkedhashset.Set) {
	props := e.PropertyIDs()

	// Relation identities are enriched too.
	for _, p := range props {
		s.addPostLoadLocked(p)
	}

	for _, p := range s.follow {
		for _, q := range e.ItemTargets(p) {
			if s.knownLocked(q) || next.Contains(q) {
				continue
			}
			next.Add(q)
		}
	}

	for _, p := range props {
		for _, c := range e.ClaimsFor(p) {
			for _, qp := range qualifierProperties(c) {
				s.addPostLoadLocked(qp)
				for _, snak := range c.Qualifiers[qp] {
					if snak.Value.Kind == entity.KindItem {
						s.addPostLoadLocked(snak.Value.Item)
					}
				}
			}
		}
	}

	preload := s.preload
	if root && s.preloadAllForRoot {
		preload = props
	}
	for _, p := range preload {
		for _, q := range e.ItemTargets(p) {
			if s.knownLocked(q) || s.postLoad.Contains(q) {
				continue
			}
			s.addPostLoadLocked(q)
		}
	}
}

func (s *Session) addPostLoadLocked(id entity.ID) {
	if s.postLoad.Contains(id) {
		return
	}
	s.postLoad.Add(id)
	s.postLoadSize.Store(int64(s.postLoad.Size()))
}

func (s *Session) notifyStatusLocked() {
	if s.onStatus != nil {
		s.onStatus(s)
	}
}

func (s *Session) finishLocked() {
	if s.finished {
		return
	}
	s.finished = true

	elapsed := time.Since(s.startedAt)
	sessionDurationHistogram.Observe(elapsed.Seconds())
	s.logger.Info("load session finished",
		zap.Int("requested", s.Requested()),
		zap.Int("loaded", s.Loaded()),
		zap.Int("failed_batches", s.FailedBatches()),
		zap.Duration("elapsed", elapsed),
	)

	if s.onFinished != nil {
		s.onFinished(s)
	}
	close(s.done)
}

// responseOrder returns the keys of payloads, requested IDs first in request
// order, then any extra keys sorted.
func responseOrder(requested []entity.ID, payloads map[entity.ID]*entity.Payload) []entity.ID {
	keys := make([]entity.ID, 0, len(payloads))
	seen := make(map[entity.ID]struct{}, len(requested))
	for _, id := range requested {
		seen[id] = struct{}{}
		if _, ok := payloads[id]; ok {
			keys = append(keys, id)
		}
	}

	var extra []entity.ID
	for id := range payloads {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(keys, extra...)
}

// qualifierProperties returns the qualifier relations of c in the source's
// order when known, sorted otherwise.
func qualifierProperties(c entity.Claim) []entity.ID {
	if len(c.Qualifiers) == 0 {
		return nil
	}
	if len(c.QualifierOrder) == len(c.Qualifiers) {
		return c.QualifierOrder
	}
	props := make([]entity.ID, 0, len(c.Qualifiers))
	for p := range c.Qualifiers {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	return props
}

func setToIDs(set *linkedhashset.Set) []entity.ID {
	values := set.Values()
	ids := make([]entity.ID, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.(entity.ID))
	}
	return ids
}
