// Package storage contains the entity store interfaces shared by the loader
// and the chain search.
package storage

import (
	"github.com/wdgraph/wdgraph/pkg/entity"
)

// Reader is the read side of an entity store. Implementations must be safe for
// concurrent use.
type Reader interface {
	// Get returns the entity for id, loaded or placeholder.
	Get(id entity.ID) (*entity.Entity, bool)

	// IsLoaded reports whether a non-placeholder entity exists for id.
	IsLoaded(id entity.ID) bool

	// Len returns the number of entities, placeholders included.
	Len() int

	// CountLoadedItems returns the number of loaded entities in the item namespace.
	CountLoadedItems() int

	// IDs returns every stored ID in ascending order.
	IDs() []entity.ID
}

// Writer is the mutation side of an entity store.
type Writer interface {
	// EnsurePlaceholder creates a placeholder for id unless an entity already
	// exists. It reports whether a placeholder was created.
	EnsurePlaceholder(id entity.ID) bool

	// PutLoaded stores a loaded entity for id, replacing any placeholder or
	// earlier payload.
	PutLoaded(id entity.ID, payload *entity.Payload)

	// Reset removes every entity.
	Reset()
}

// EntityStore maps canonical IDs to at most one entity each. A non-placeholder
// entity for X implies X's fetch has completed.
type EntityStore interface {
	Reader
	Writer
}
