// Package source defines the remote fetch port the loader batches requests
// against.
//
//go:generate mockgen -source source.go -destination ./mocks/mock_source.go -package mocks Fetcher
package source

import (
	"context"
	"errors"

	"github.com/wdgraph/wdgraph/pkg/entity"
)

// ErrFetchFailed wraps every failure a Fetcher reports for a batch.
var ErrFetchFailed = errors.New("fetch batch failed")

// DefaultProps is the property selector requested when FetchOptions.Props is empty.
var DefaultProps = []string{"info", "aliases", "labels", "descriptions", "claims", "sitelinks"}

// FetchOptions selects what the data source returns for each entity.
type FetchOptions struct {
	// Props lists the entity parts to return. Empty means DefaultProps.
	Props []string

	// Languages restricts labels, descriptions and aliases. Empty means all.
	Languages []string
}

// PropsOrDefault returns o.Props, or DefaultProps when unset.
func (o FetchOptions) PropsOrDefault() []string {
	if len(o.Props) == 0 {
		return DefaultProps
	}
	return o.Props
}

// Fetcher retrieves decoded entity payloads for a batch of IDs with a single
// remote call. The returned map is keyed by canonical ID and may be partial:
// IDs the source does not know are simply absent. Implementations must be safe
// for concurrent use; retry policy and timeouts are their concern.
type Fetcher interface {
	FetchBatch(ctx context.Context, ids []entity.ID, opts FetchOptions) (map[entity.ID]*entity.Payload, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ids []entity.ID, opts FetchOptions) (map[entity.ID]*entity.Payload, error)

// FetchBatch calls f.
func (f FetcherFunc) FetchBatch(ctx context.Context, ids []entity.ID, opts FetchOptions) (map[entity.ID]*entity.Payload, error) {
	return f(ctx, ids, opts)
}
