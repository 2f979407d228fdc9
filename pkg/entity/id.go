// Package entity contains the data model shared by the loader, the store and
// the chain search: canonical entity IDs, loaded or placeholder entities, and
// the decoded claim values attached to them.
package entity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrAmbiguousID is returned when a purely numeric raw ID is canonicalized
	// without a type hint.
	ErrAmbiguousID = errors.New("ambiguous entity id: numeric value without type hint")

	// ErrEmptyID is returned when a raw ID has no characters left after
	// whitespace removal.
	ErrEmptyID = errors.New("empty entity id")
)

// ID is a canonical entity identifier such as "Q42" or "P31".
type ID string

func (id ID) String() string {
	return string(id)
}

// IsItem reports whether the ID names an item.
func (id ID) IsItem() bool {
	return len(id) > 1 && id[0] == byte(TypeItem)
}

// IsProperty reports whether the ID names a property.
func (id ID) IsProperty() bool {
	return len(id) > 1 && id[0] == byte(TypeProperty)
}

// Type is the tag prefixed to purely numeric raw IDs.
type Type byte

const (
	NoType       Type = 0
	TypeItem     Type = 'Q'
	TypeProperty Type = 'P'
)

// Canonicalize strips all whitespace from raw and upper-cases it. A purely
// numeric result is prefixed with hint; without a hint it is rejected with
// ErrAmbiguousID. Canonicalize is idempotent.
func Canonicalize(raw string, hint Type) (ID, error) {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	digits := true
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		if r < '0' || r > '9' {
			digits = false
		}
		b.WriteRune(unicode.ToUpper(r))
	}

	id := b.String()
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyID, raw)
	}
	if digits {
		if hint == NoType {
			return "", fmt.Errorf("%w: %q", ErrAmbiguousID, raw)
		}
		id = string(unicode.ToUpper(rune(hint))) + id
	}

	return ID(id), nil
}

// MustCanonicalize is like Canonicalize but panics on error.
func MustCanonicalize(raw string, hint Type) ID {
	id, err := Canonicalize(raw, hint)
	if err != nil {
		panic(err)
	}
	return id
}

// CanonicalizeMany canonicalizes every raw value in order. It does not
// deduplicate. The first invalid value aborts with its error.
func CanonicalizeMany(raws []string, hint Type) ([]ID, error) {
	ids := make([]ID, 0, len(raws))
	for _, raw := range raws {
		id, err := Canonicalize(raw, hint)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
