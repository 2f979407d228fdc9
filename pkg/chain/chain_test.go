package chain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage/memory"
	"github.com/wdgraph/wdgraph/pkg/testutils"
)

func newStore(payloads ...*entity.Payload) *memory.Store {
	store := memory.New()
	for _, p := range payloads {
		store.PutLoaded(p.ID, p)
	}
	return store
}

func link(p, q string) testutils.Link {
	return testutils.Link{Property: p, Target: q}
}

func TestFollow(t *testing.T) {
	tests := []struct {
		name      string
		store     *memory.Store
		start     entity.ID
		relations []entity.ID
		expected  []entity.ID
	}{
		{
			name: "cycle_stops_before_closing",
			store: newStore(
				testutils.ItemPayload("QA", link("P1", "QB")),
				testutils.ItemPayload("QB", link("P1", "QC")),
				testutils.ItemPayload("QC", link("P1", "QA")),
			),
			start:     "QA",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"QA", "QB", "QC"},
		},
		{
			name:      "disconnected",
			store:     newStore(testutils.ItemPayload("QX", link("P2", "QY")), testutils.ItemPayload("QY")),
			start:     "QX",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"QX"},
		},
		{
			name:      "start_not_in_store",
			store:     newStore(),
			start:     "Q1",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"Q1"},
		},
		{
			name: "longest_branch_wins",
			store: newStore(
				testutils.ItemPayload("Q1", link("P1", "Q2"), link("P1", "Q3")),
				testutils.ItemPayload("Q2"),
				testutils.ItemPayload("Q3", link("P1", "Q4")),
				testutils.ItemPayload("Q4"),
			),
			start:     "Q1",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"Q1", "Q3", "Q4"},
		},
		{
			name: "unloaded_target_is_dead_end",
			store: func() *memory.Store {
				s := newStore(
					testutils.ItemPayload("Q1", link("P1", "Q2"), link("P1", "Q5")),
					testutils.ItemPayload("Q5"),
				)
				s.EnsurePlaceholder("Q2")
				return s
			}(),
			start:     "Q1",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"Q1", "Q5"},
		},
		{
			name: "several_relations",
			store: newStore(
				testutils.ItemPayload("Q1", link("P1", "Q2")),
				testutils.ItemPayload("Q2", link("P2", "Q3")),
				testutils.ItemPayload("Q3", link("P1", "Q1")),
			),
			start:     "Q1",
			relations: []entity.ID{"P1", "P2"},
			expected:  []entity.ID{"Q1", "Q2", "Q3"},
		},
		{
			name: "same_target_via_two_relations",
			store: newStore(
				testutils.ItemPayload("Q1", link("P1", "Q2"), link("P2", "Q2")),
				testutils.ItemPayload("Q2"),
			),
			start:     "Q1",
			relations: []entity.ID{"P1", "P2"},
			expected:  []entity.ID{"Q1", "Q2"},
		},
		{
			name: "revisits_entity_on_other_branch",
			// Q4 is reached early through the short branch and must still be
			// usable by the longer one.
			store: newStore(
				testutils.ItemPayload("Q1", link("P1", "Q4"), link("P1", "Q2")),
				testutils.ItemPayload("Q2", link("P1", "Q3")),
				testutils.ItemPayload("Q3", link("P1", "Q4")),
				testutils.ItemPayload("Q4", link("P1", "Q5")),
				testutils.ItemPayload("Q5"),
			),
			start:     "Q1",
			relations: []entity.ID{"P1"},
			expected:  []entity.ID{"Q1", "Q2", "Q3", "Q4", "Q5"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Follow(test.store, test.start, test.relations)
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("unexpected chain (-want +got):\n%s", diff)
			}

			seen := make(map[entity.ID]struct{}, len(got))
			for _, id := range got {
				_, dup := seen[id]
				require.False(t, dup, "repeated id %s", id)
				seen[id] = struct{}{}
			}
		})
	}
}

func TestFollowDenseGraphHasNoRepeats(t *testing.T) {
	ids := []string{"Q1", "Q2", "Q3", "Q4", "Q5", "Q6"}
	payloads := make([]*entity.Payload, 0, len(ids))
	for _, from := range ids {
		var links []testutils.Link
		for _, to := range ids {
			if to != from {
				links = append(links, link("P1", to))
			}
		}
		payloads = append(payloads, testutils.ItemPayload(from, links...))
	}

	got := Follow(newStore(payloads...), "Q1", []entity.ID{"P1"})
	require.Len(t, got, len(ids))
	require.Equal(t, entity.ID("Q1"), got[0])
	if diff := cmp.Diff([]entity.ID{"Q1", "Q2", "Q3", "Q4", "Q5", "Q6"}, got, testutils.IDCmpTransformer); diff != "" {
		t.Fatalf("expected every entity once (-want +got):\n%s", diff)
	}
}

func TestFollowRaw(t *testing.T) {
	store := newStore(
		testutils.ItemPayload("Q1", link("P31", "Q2")),
		testutils.ItemPayload("Q2"),
	)

	got, err := FollowRaw(store, " q1 ", []string{"31"})
	require.NoError(t, err)
	require.Equal(t, []entity.ID{"Q1", "Q2"}, got)

	_, err = FollowRaw(store, "", []string{"31"})
	require.ErrorIs(t, err, entity.ErrEmptyID)

	_, err = FollowRaw(store, "Q1", []string{" "})
	require.ErrorIs(t, err, entity.ErrEmptyID)
}
