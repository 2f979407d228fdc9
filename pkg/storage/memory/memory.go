package memory

import (
	"sort"
	"sync"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

// Store provides an ephemeral memory-backed implementation of [storage.EntityStore].
// Instances may be safely shared by multiple go-routines and by several
// overlapping loader sessions.
type Store struct {
	entities map[entity.ID]*entity.Entity // GUARDED_BY(mu).
	mu       sync.RWMutex
}

var _ storage.EntityStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		entities: make(map[entity.ID]*entity.Entity),
	}
}

// Get see [storage.Reader].Get.
func (s *Store) Get(id entity.ID) (*entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// IsLoaded see [storage.Reader].IsLoaded.
func (s *Store) IsLoaded(id entity.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	return ok && !e.IsPlaceholder()
}

// Len see [storage.Reader].Len.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entities)
}

// CountLoadedItems see [storage.Reader].CountLoadedItems.
func (s *Store) CountLoadedItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entities {
		if e.IsItem() {
			count++
		}
	}
	return count
}

// IDs see [storage.Reader].IDs.
func (s *Store) IDs() []entity.ID {
	s.mu.RLock()
	ids := make([]entity.ID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EnsurePlaceholder see [storage.Writer].EnsurePlaceholder.
func (s *Store) EnsurePlaceholder(id entity.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; ok {
		return false
	}
	s.entities[id] = entity.NewPlaceholder(id)
	return true
}

// PutLoaded see [storage.Writer].PutLoaded.
func (s *Store) PutLoaded(id entity.ID, payload *entity.Payload) {
	if payload == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[id] = entity.NewLoaded(id, payload)
}

// Reset see [storage.Writer].Reset.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[entity.ID]*entity.Entity)
}
