// Package chain finds the longest simple relation path starting at an entity
// of a populated store.
package chain

import (
	"fmt"

	"github.com/wdgraph/wdgraph/internal/stack"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

// Follow returns the longest path that starts at start and steps along any of
// relations to item targets, visiting each entity at most once. Only loaded
// entities are traversed: a target that is missing or still a placeholder is a
// dead end and is not part of the path. The start itself is always the first
// entry. Among paths of equal length the first one found wins, in relation
// order and then claim order.
//
// The search is exhaustive over simple paths and therefore exponential on
// dense graphs.
func Follow(store storage.Reader, start entity.ID, relations []entity.ID) []entity.ID {
	s := &searcher{
		store:     store,
		relations: relations,
		onPath:    make(map[entity.ID]struct{}),
	}
	s.visit(start, nil)
	return s.longest
}

// FollowRaw is like Follow but canonicalizes start as an item ID and relations
// as property IDs first.
func FollowRaw(store storage.Reader, start string, relations []string) ([]entity.ID, error) {
	id, err := entity.Canonicalize(start, entity.TypeItem)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}
	props, err := entity.CanonicalizeMany(relations, entity.TypeProperty)
	if err != nil {
		return nil, fmt.Errorf("invalid relation: %w", err)
	}
	return Follow(store, id, props), nil
}

type searcher struct {
	store     storage.Reader
	relations []entity.ID

	onPath  map[entity.ID]struct{}
	longest []entity.ID
}

func (s *searcher) visit(id entity.ID, path *stack.Stack[entity.ID]) {
	s.onPath[id] = struct{}{}
	defer delete(s.onPath, id)

	path = stack.Push(path, id)
	if path.Len() > len(s.longest) {
		s.longest = stack.Slice(path)
	}

	e, ok := s.store.Get(id)
	if !ok || e.IsPlaceholder() {
		return
	}

	tried := make(map[entity.ID]struct{})
	for _, p := range s.relations {
		for _, q := range e.ItemTargets(p) {
			if _, ok := s.onPath[q]; ok {
				continue
			}
			if _, ok := tried[q]; ok {
				continue
			}
			tried[q] = struct{}{}

			if !s.store.IsLoaded(q) {
				continue
			}
			s.visit(q, path)
		}
	}
}
