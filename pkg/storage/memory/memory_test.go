package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wdgraph/wdgraph/pkg/entity"
)

func TestStore(t *testing.T) {
	s := New()

	require.Equal(t, 0, s.Len())
	_, ok := s.Get("Q1")
	require.False(t, ok)
	require.False(t, s.IsLoaded("Q1"))

	require.True(t, s.EnsurePlaceholder("Q1"))
	require.False(t, s.EnsurePlaceholder("Q1"), "only one entity per id")

	e, ok := s.Get("Q1")
	require.True(t, ok)
	require.True(t, e.IsPlaceholder())
	require.False(t, s.IsLoaded("Q1"), "a placeholder is not loaded")

	s.PutLoaded("Q1", &entity.Payload{ID: "Q1", Namespace: entity.NamespaceItem})
	require.True(t, s.IsLoaded("Q1"))
	require.False(t, s.EnsurePlaceholder("Q1"), "a loaded entity is never downgraded")
	require.True(t, s.IsLoaded("Q1"))

	s.PutLoaded("P31", &entity.Payload{ID: "P31", Namespace: entity.NamespaceProperty})
	s.EnsurePlaceholder("Q2")
	s.PutLoaded("Q3", nil)

	require.Equal(t, 3, s.Len())
	require.Equal(t, 1, s.CountLoadedItems())
	require.Equal(t, []entity.ID{"P31", "Q1", "Q2"}, s.IDs())

	s.Reset()
	require.Equal(t, 0, s.Len())
	require.Empty(t, s.IDs())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := entity.ID(fmt.Sprintf("Q%d", j))
				s.EnsurePlaceholder(id)
				if (i+j)%2 == 0 {
					s.PutLoaded(id, &entity.Payload{ID: id})
				}
				_ = s.IsLoaded(id)
				_ = s.CountLoadedItems()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, s.Len())
	for _, id := range s.IDs() {
		require.True(t, s.IsLoaded(id), id)
	}
}
