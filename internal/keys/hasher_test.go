package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/source"
)

type failingHasher struct {
	after int
}

func (f *failingHasher) WriteString(string) error {
	if f.after == 0 {
		return errors.New("write failed")
	}
	f.after--
	return nil
}

func TestEntityKey(t *testing.T) {
	tests := []struct {
		name  string
		a, b  source.FetchOptions
		equal bool
	}{
		{
			name:  "empty_props_mean_default",
			a:     source.FetchOptions{},
			b:     source.FetchOptions{Props: source.DefaultProps},
			equal: true,
		},
		{
			name:  "order_does_not_matter",
			a:     source.FetchOptions{Props: []string{"labels", "claims"}, Languages: []string{"en", "de"}},
			b:     source.FetchOptions{Props: []string{"claims", "labels"}, Languages: []string{"de", "en"}},
			equal: true,
		},
		{
			name:  "languages_differ",
			a:     source.FetchOptions{Languages: []string{"en"}},
			b:     source.FetchOptions{Languages: []string{"de"}},
			equal: false,
		},
		{
			name:  "prop_moved_to_languages",
			a:     source.FetchOptions{Props: []string{"labels", "en"}},
			b:     source.FetchOptions{Props: []string{"labels"}, Languages: []string{"en"}},
			equal: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := EntityKey("Q1", test.a)
			b := EntityKey("Q1", test.b)
			if test.equal {
				require.Equal(t, a, b)
			} else {
				require.NotEqual(t, a, b)
			}
		})
	}

	require.NotEqual(t, EntityKey("Q1", source.FetchOptions{}), EntityKey("Q2", source.FetchOptions{}))
}

func TestBatchKey(t *testing.T) {
	opts := source.FetchOptions{Languages: []string{"en"}}

	require.Equal(t,
		BatchKey([]entity.ID{"Q1", "Q2", "Q3"}, opts),
		BatchKey([]entity.ID{"Q3", "Q1", "Q2"}, opts),
	)
	require.NotEqual(t,
		BatchKey([]entity.ID{"Q1", "Q2"}, opts),
		BatchKey([]entity.ID{"Q1", "Q2", "Q3"}, opts),
	)
	require.NotEqual(t,
		BatchKey([]entity.ID{"Q1"}, opts),
		EntityKey("Q1", opts),
	)
}

func TestFetchOptionsHasherPropagatesErrors(t *testing.T) {
	opts := source.FetchOptions{Props: []string{"labels"}, Languages: []string{"en"}}
	for after := 0; after < 4; after++ {
		err := NewFetchOptionsHasher(opts).Append(&failingHasher{after: after})
		require.Error(t, err, "after %d writes", after)
	}
	require.NoError(t, NewFetchOptionsHasher(opts).Append(&failingHasher{after: 4}))
}
