package entity

import "sort"

const (
	NamespaceItem     = 0
	NamespaceProperty = 120
)

// LangValue is a language-tagged string.
type LangValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Sitelink links an entity to a page on another wiki.
type Sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

// Payload is the decoded body of a fetched entity.
type Payload struct {
	ID           ID                     `json:"id"`
	Title        string                 `json:"title,omitempty"`
	Type         string                 `json:"type,omitempty"`
	Namespace    int                    `json:"ns"`
	DataType     string                 `json:"datatype,omitempty"`
	Labels       map[string]LangValue   `json:"labels,omitempty"`
	Descriptions map[string]LangValue   `json:"descriptions,omitempty"`
	Aliases      map[string][]LangValue `json:"aliases,omitempty"`
	Sitelinks    map[string]Sitelink    `json:"sitelinks,omitempty"`
	Claims       map[ID][]Claim         `json:"claims,omitempty"`
}

// Entity is either a placeholder (requested, payload absent) or loaded.
type Entity struct {
	ID      ID       `json:"id"`
	Payload *Payload `json:"payload,omitempty"`
}

// NewPlaceholder returns an entity that has been requested but not loaded.
func NewPlaceholder(id ID) *Entity {
	return &Entity{ID: id}
}

// NewLoaded returns a loaded entity.
func NewLoaded(id ID, payload *Payload) *Entity {
	return &Entity{ID: id, Payload: payload}
}

func (e *Entity) IsPlaceholder() bool {
	return e == nil || e.Payload == nil
}

func (e *Entity) IsItem() bool {
	return !e.IsPlaceholder() && e.Payload.Namespace == NamespaceItem
}

func (e *Entity) IsProperty() bool {
	return !e.IsPlaceholder() && e.Payload.Namespace == NamespaceProperty
}

// PropertyIDs returns the relation IDs that have claims on the entity, sorted.
func (e *Entity) PropertyIDs() []ID {
	if e.IsPlaceholder() {
		return nil
	}
	props := make([]ID, 0, len(e.Payload.Claims))
	for p := range e.Payload.Claims {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	return props
}

// ClaimsFor returns the claims for relation p.
func (e *Entity) ClaimsFor(p ID) []Claim {
	if e.IsPlaceholder() {
		return nil
	}
	return e.Payload.Claims[p]
}

// ItemTargets returns the item-reference targets of the claims for relation p,
// in claim order. Duplicates are kept.
func (e *Entity) ItemTargets(p ID) []ID {
	var targets []ID
	for _, c := range e.ClaimsFor(p) {
		if q, ok := c.TargetItem(); ok {
			targets = append(targets, q)
		}
	}
	return targets
}

// HasItemLink reports whether any claim for relation p targets item q.
func (e *Entity) HasItemLink(p, q ID) bool {
	for _, target := range e.ItemTargets(p) {
		if target == q {
			return true
		}
	}
	return false
}

// Label returns the label in the first of the given languages that has one,
// falling back to the ID.
func (e *Entity) Label(languages ...string) string {
	if e.IsPlaceholder() {
		return string(e.ID)
	}
	for _, lang := range languages {
		if l, ok := e.Payload.Labels[lang]; ok && l.Value != "" {
			return l.Value
		}
	}
	return string(e.ID)
}
