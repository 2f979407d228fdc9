// Package testutils contains code that is useful in tests.
package testutils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/source"
)

var (
	IDCmpTransformer = cmp.Transformer("Sort", func(in []entity.ID) []entity.ID {
		out := append([]entity.ID(nil), in...) // Copy input to avoid mutating it

		sort.Slice(out, func(i, j int) bool {
			return out[i] < out[j]
		})

		return out
	})
)

// Link is a relation instance used to build test payloads.
type Link struct {
	Property string
	Target   string
	// Qualifiers maps qualifier relations to item targets.
	Qualifiers map[string]string
}

// ItemPayload returns a loaded item with an English label equal to its ID and
// one item-valued claim per link.
func ItemPayload(id string, links ...Link) *entity.Payload {
	p := &entity.Payload{
		ID:        entity.ID(id),
		Title:     id,
		Type:      "item",
		Namespace: entity.NamespaceItem,
		Labels: map[string]entity.LangValue{
			"en": {Language: "en", Value: id},
		},
		Claims: map[entity.ID][]entity.Claim{},
	}
	for i, l := range links {
		claim := entity.Claim{
			ID:       fmt.Sprintf("%s$%d", id, i),
			Rank:     entity.RankNormal,
			MainSnak: itemSnak(l.Property, l.Target),
		}
		for qp, qv := range l.Qualifiers {
			if claim.Qualifiers == nil {
				claim.Qualifiers = map[entity.ID][]entity.Snak{}
			}
			claim.Qualifiers[entity.ID(qp)] = append(claim.Qualifiers[entity.ID(qp)], itemSnak(qp, qv))
			claim.QualifierOrder = append(claim.QualifierOrder, entity.ID(qp))
		}
		sort.Slice(claim.QualifierOrder, func(i, j int) bool { return claim.QualifierOrder[i] < claim.QualifierOrder[j] })
		p.Claims[entity.ID(l.Property)] = append(p.Claims[entity.ID(l.Property)], claim)
	}
	return p
}

// PropertyPayload returns a loaded property with an item datatype.
func PropertyPayload(id string) *entity.Payload {
	return &entity.Payload{
		ID:        entity.ID(id),
		Title:     "Property:" + id,
		Type:      "property",
		Namespace: entity.NamespaceProperty,
		DataType:  "wikibase-item",
		Labels: map[string]entity.LangValue{
			"en": {Language: "en", Value: id},
		},
	}
}

func itemSnak(property, target string) entity.Snak {
	return entity.Snak{
		Property: entity.ID(property),
		SnakType: "value",
		DataType: "wikibase-item",
		Value:    entity.Value{Kind: entity.KindItem, Item: entity.ID(target)},
	}
}

// Graph is an in-memory [source.Fetcher] that serves the payloads added to it
// and records every batch it is asked for. Unknown IDs are omitted from
// responses, like missing entities of a real source.
type Graph struct {
	mu       sync.Mutex
	payloads map[entity.ID]*entity.Payload
	calls    [][]entity.ID
	options  []source.FetchOptions
	counts   map[entity.ID]int
}

var _ source.Fetcher = (*Graph)(nil)

// NewGraph returns a Graph serving payloads.
func NewGraph(payloads ...*entity.Payload) *Graph {
	g := &Graph{
		payloads: make(map[entity.ID]*entity.Payload, len(payloads)),
		counts:   make(map[entity.ID]int),
	}
	for _, p := range payloads {
		g.payloads[p.ID] = p
	}
	return g
}

func (g *Graph) FetchBatch(ctx context.Context, ids []entity.ID, opts source.FetchOptions) (map[entity.ID]*entity.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, append([]entity.ID(nil), ids...))
	g.options = append(g.options, opts)

	out := make(map[entity.ID]*entity.Payload, len(ids))
	for _, id := range ids {
		g.counts[id]++
		if p, ok := g.payloads[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Calls returns a copy of the batches requested so far.
func (g *Graph) Calls() [][]entity.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]entity.ID(nil), g.calls...)
}

// Options returns the fetch options of every call so far.
func (g *Graph) Options() []source.FetchOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]source.FetchOptions(nil), g.options...)
}

// FetchCount returns how many times id was requested.
func (g *Graph) FetchCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[entity.ID(id)]
}

// Requested returns every ID requested so far, each once, sorted.
func (g *Graph) Requested() []entity.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]entity.ID, 0, len(g.counts))
	for id := range g.counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EnsureMetricsHealthy is a test helper that ensures that a metrics endpoint is responding OK.
// If the endpoint doesn't respond in 10 seconds it fails the test.
func EnsureMetricsHealthy(t testing.TB, addr string) {
	t.Helper()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 10 * time.Second

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 0

	err := backoff.Retry(func() error {
		resp, err := client.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			t.Log(time.Now(), "not serving yet at address", addr, err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.New("not serving")
		}

		return nil
	}, policy)
	require.NoError(t, err, "metrics endpoint did not become healthy")
}

// TCPRandomPort tries to find a random TCP Port. If it can't find one, it panics. Else, it returns the port and a function that releases the port.
// It is the responsibility of the caller to call the release function right before trying to listen on the given port.
func TCPRandomPort() (int, func()) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic(err)
	}
	return l.Addr().(*net.TCPAddr).Port, func() {
		l.Close()
	}
}
