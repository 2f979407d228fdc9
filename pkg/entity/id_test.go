package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		hint     Type
		expected ID
		err      error
	}{
		{name: "already_canonical", raw: "Q42", hint: NoType, expected: "Q42"},
		{name: "lower_case", raw: "q42", hint: NoType, expected: "Q42"},
		{name: "whitespace_everywhere", raw: " p 3\t1\n", hint: TypeItem, expected: "P31"},
		{name: "numeric_with_item_hint", raw: "42", hint: TypeItem, expected: "Q42"},
		{name: "numeric_with_property_hint", raw: " 31 ", hint: TypeProperty, expected: "P31"},
		{name: "numeric_without_hint", raw: "42", hint: NoType, err: ErrAmbiguousID},
		{name: "empty", raw: "  ", hint: TypeItem, err: ErrEmptyID},
		{name: "hint_ignored_for_prefixed", raw: "L7", hint: TypeProperty, expected: "L7"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, err := Canonicalize(test.raw, test.hint)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, id)
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	for _, raw := range []string{"Q42", "q 42", "p31", "  l1-s2 ", "Ω7", "123"} {
		first, err := Canonicalize(raw, TypeItem)
		require.NoError(t, err)

		second, err := Canonicalize(string(first), TypeItem)
		require.NoError(t, err)
		require.Equal(t, first, second, raw)

		third, err := Canonicalize(string(first), NoType)
		require.NoError(t, err, "canonical ids are never ambiguous")
		require.Equal(t, first, third)
	}
}

func TestCanonicalizeMany(t *testing.T) {
	t.Run("preserves_order_and_duplicates", func(t *testing.T) {
		ids, err := CanonicalizeMany([]string{"42", "q1", "42"}, TypeItem)
		require.NoError(t, err)
		require.Equal(t, []ID{"Q42", "Q1", "Q42"}, ids)
	})

	t.Run("single_value", func(t *testing.T) {
		ids, err := CanonicalizeMany([]string{"31"}, TypeProperty)
		require.NoError(t, err)
		require.Equal(t, []ID{"P31"}, ids)
	})

	t.Run("empty_input", func(t *testing.T) {
		ids, err := CanonicalizeMany(nil, TypeItem)
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("first_error_aborts", func(t *testing.T) {
		_, err := CanonicalizeMany([]string{"Q1", "2"}, NoType)
		require.ErrorIs(t, err, ErrAmbiguousID)
	})
}

func TestMustCanonicalizePanics(t *testing.T) {
	require.Panics(t, func() { MustCanonicalize("7", NoType) })
	require.Equal(t, ID("Q7"), MustCanonicalize("7", TypeItem))
}

func TestIDKinds(t *testing.T) {
	require.True(t, ID("Q5").IsItem())
	require.False(t, ID("Q5").IsProperty())
	require.True(t, ID("P31").IsProperty())
	require.False(t, ID("Q").IsItem())
}
