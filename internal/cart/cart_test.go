// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package cart_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/cart"
	"github.com/holomush/labelhub/pkg/errutil"
)

func mustAdd(t *testing.T, s cart.State, texts ...string) cart.State {
	t.Helper()
	for _, text := range texts {
		var err error
		s, err = cart.Add(s, text)
		require.NoError(t, err)
	}
	return s
}

func TestAdd(t *testing.T) {
	s, err := cart.Add(nil, "  A ")
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, cart.Item{Text: "A", Quantity: 1, Color: "#000000", Price: 10.00}, s[0])

	t.Run("empty text is rejected", func(t *testing.T) {
		next, err := cart.Add(s, "   ")
		errutil.AssertErrorCode(t, err, "CART_EMPTY_TEXT")
		assert.Equal(t, s, next)
	})

	t.Run("input state is not mutated", func(t *testing.T) {
		base := make(cart.State, 1, 4)
		base[0] = cart.Item{Text: "base", Quantity: 1}
		a := mustAdd(t, base, "a")
		b := mustAdd(t, base, "b")
		assert.Equal(t, "a", a[1].Text)
		assert.Equal(t, "b", b[1].Text)
		assert.Len(t, base, 1)
	})
}

func TestSetQuantity(t *testing.T) {
	s := mustAdd(t, nil, "A")

	tests := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{" 12abc", 12},
		{"+4", 4},
		{"3.9", 3},
		{"abc", 1},
		{"", 1},
		{"0", 1},
		{"-2", 1},
		{"99999999999999999999", 999999999},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			next, err := cart.SetQuantity(s, 0, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next[0].Quantity)
			assert.Equal(t, 1, s[0].Quantity, "input state is not mutated")
		})
	}

	_, err := cart.SetQuantity(s, 1, "2")
	errutil.AssertErrorCode(t, err, "CART_INDEX_OUT_OF_RANGE")
}

func TestSetColor(t *testing.T) {
	s := mustAdd(t, nil, "A", "B")

	next, err := cart.SetColor(s, 1, "#FE76FF")
	require.NoError(t, err)
	assert.Equal(t, "#fe76ff", next[1].Color)
	assert.Equal(t, "#000000", next[0].Color)
	assert.Equal(t, "#000000", s[1].Color)

	for _, bad := range []string{"red", "#fff", "#12345g", ""} {
		_, err := cart.SetColor(s, 0, bad)
		errutil.AssertErrorCode(t, err, "CART_INVALID_COLOR")
	}

	_, err = cart.SetColor(s, -1, "#000000")
	errutil.AssertErrorCode(t, err, "CART_INDEX_OUT_OF_RANGE")
}

func TestDelete(t *testing.T) {
	s := mustAdd(t, nil, "A", "B", "C")

	next, err := cart.Delete(s, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, texts(next))
	assert.Equal(t, []string{"A", "B", "C"}, texts(s))

	_, err = cart.Delete(s, 3)
	errutil.AssertErrorCode(t, err, "CART_INDEX_OUT_OF_RANGE")

	t.Run("deleting the only item empties the cart", func(t *testing.T) {
		one := mustAdd(t, nil, "A")
		empty, err := cart.Delete(one, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)
		assert.Zero(t, cart.TotalQuantity(empty))
		assert.Equal(t, "My Cart (0)", cart.Badge(empty))
		assert.Empty(t, cart.PreviewTiles(empty))
	})
}

func TestProjections(t *testing.T) {
	s := mustAdd(t, nil, "A", "B")
	s, err := cart.SetQuantity(s, 0, "3")
	require.NoError(t, err)
	s, err = cart.SetColor(s, 1, "#7375f3")
	require.NoError(t, err)

	assert.Equal(t, 4, cart.TotalQuantity(s))
	assert.Equal(t, "My Cart (4)", cart.Badge(s))
	assert.InDelta(t, 40.0, cart.Subtotal(s), 1e-9)
	assert.Equal(t, []cart.Tile{
		{Text: "A", Color: "#000000"},
		{Text: "A", Color: "#000000"},
		{Text: "A", Color: "#000000"},
		{Text: "B", Color: "#7375f3"},
	}, cart.PreviewTiles(s))
}

func TestProjections_StoredDefaults(t *testing.T) {
	// Items written by other clients may omit quantity and colour.
	s := cart.State{{Text: "legacy", Price: 5}}

	assert.Equal(t, 1, cart.TotalQuantity(s))
	assert.InDelta(t, 5.0, cart.Subtotal(s), 1e-9)
	assert.Equal(t, []cart.Tile{{Text: "legacy", Color: "#000000"}}, cart.PreviewTiles(s))
}

func TestPalette(t *testing.T) {
	assert.Len(t, cart.Palette, 15)
	s := mustAdd(t, nil, "A")
	for _, c := range cart.Palette {
		_, err := cart.SetColor(s, 0, c)
		assert.NoError(t, err, c)
	}
}

func texts(s cart.State) []string {
	out := make([]string, len(s))
	for i, item := range s {
		out[i] = item.Text
	}
	return out
}
