package entitygraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage/memory"
	"github.com/wdgraph/wdgraph/pkg/testutils"
)

func newStore() *memory.Store {
	store := memory.New()
	for _, p := range []*entity.Payload{
		testutils.ItemPayload("Q1",
			testutils.Link{Property: "P31", Target: "Q2"},
			testutils.Link{Property: "P279", Target: "Q2"},
			testutils.Link{Property: "P31", Target: "Q9"},
		),
		testutils.ItemPayload("Q2", testutils.Link{Property: "P279", Target: "Q3"}),
		testutils.ItemPayload("Q3"),
		testutils.ItemPayload("Q4"),
		testutils.PropertyPayload("P31"),
	} {
		store.PutLoaded(p.ID, p)
	}
	// Q9 was requested but never loaded.
	store.EnsurePlaceholder("Q9")
	return store
}

func TestNew(t *testing.T) {
	store := newStore()

	g := New(store, nil)
	require.Equal(t, 5, g.Nodes().Len())
	require.Nil(t, g.getNode("Q9"))

	// Q1 reaches Q2 through two relations.
	require.Equal(t, 2, g.Lines(g.mapping["Q1"], g.mapping["Q2"]).Len())

	only := New(store, []entity.ID{"P31"})
	require.Equal(t, 1, only.Lines(only.mapping["Q1"], only.mapping["Q2"]).Len())
	require.Zero(t, only.Lines(only.mapping["Q2"], only.mapping["Q3"]).Len())
}

func TestGetDOT(t *testing.T) {
	store := newStore()

	dotOutput := New(store, nil, "en").GetDOT()
	require.Equal(t, dotOutput, New(store, nil, "en").GetDOT(), "output must be stable")

	require.Contains(t, dotOutput, "rankdir=LR")
	require.Contains(t, dotOutput, "Q1 -> Q2")
	require.Contains(t, dotOutput, "P279")
	require.Contains(t, dotOutput, "shape=box")
	require.NotContains(t, dotOutput, "Q9")
}

func TestReachable(t *testing.T) {
	g := New(newStore(), []entity.ID{"P31", "P279"})

	ok, err := g.Reachable("Q1", "Q3")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Reachable("Q3", "Q1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = g.Reachable("Q1", "Q4")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = g.Reachable("Q9", "Q1")
	require.Error(t, err)

	_, err = g.Reachable("Q1", "Q404")
	require.Error(t, err)
}
