package keys

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/source"
)

type hasher interface {
	WriteString(value string) error
}

// NewFetchOptionsHasher returns a hasher for opts. Props and languages are
// sorted first, so options that only differ in order hash the same. Empty
// props hash like the default props they stand for.
func NewFetchOptionsHasher(opts source.FetchOptions) *fetchOptionsHasher {
	return &fetchOptionsHasher{opts}
}

type fetchOptionsHasher struct {
	opts source.FetchOptions
}

func (f *fetchOptionsHasher) Append(h hasher) error {
	props := slices.Sorted(slices.Values(f.opts.PropsOrDefault()))
	languages := slices.Sorted(slices.Values(f.opts.Languages))

	// prefix to avoid overlap with previous strings written
	if err := h.WriteString("props"); err != nil {
		return err
	}
	for _, p := range props {
		if err := h.WriteString(p); err != nil {
			return err
		}
	}

	if err := h.WriteString("languages"); err != nil {
		return err
	}
	for _, l := range languages {
		if err := h.WriteString(l); err != nil {
			return err
		}
	}

	return nil
}

// EntityKey is the key of the payload of id fetched with opts.
func EntityKey(id entity.ID, opts source.FetchOptions) StableCacheKey {
	h := NewCacheKeyHasher(xxhash.New())
	_ = h.WriteString(string(id))
	_ = NewFetchOptionsHasher(opts).Append(h)
	return h.Key()
}

// BatchKey is the key of a request for ids with opts. The order of ids does
// not matter.
func BatchKey(ids []entity.ID, opts source.FetchOptions) StableCacheKey {
	h := NewCacheKeyHasher(xxhash.New())
	_ = h.WriteString("ids")
	for _, id := range slices.Sorted(slices.Values(ids)) {
		_ = h.WriteString(string(id))
	}
	_ = NewFetchOptionsHasher(opts).Append(h)
	return h.Key()
}
