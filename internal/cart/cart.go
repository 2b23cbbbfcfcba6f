// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package cart implements the label cart as a reducer over an ordered list
// of items. Transitions never mutate their input; views are pure
// projections of a State.
package cart

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Defaults for a newly added label.
const (
	DefaultQuantity = 1
	DefaultColor    = "#000000"
	DefaultPrice    = 10.00
)

// Palette is the set of colours offered by the colour picker.
var Palette = []string{
	"#9bd3f9", "#7375f3", "#d9d9d9", "#b4736d",
	"#79b47b", "#b074bb", "#7cb5b7", "#ffe585",
	"#c29b7b", "#7173b7", "#b0b87c", "#fdfd82",
	"#84fefc", "#fe76ff", "#717171",
}

var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Item is one label in the cart. Items are identified only by position.
type Item struct {
	Text     string  `json:"text"`
	Quantity int     `json:"quantity"`
	Color    string  `json:"color"`
	Price    float64 `json:"price"`
}

// EffectiveQuantity is the quantity used by every projection. Stored values
// below one count as one.
func (i Item) EffectiveQuantity() int {
	if i.Quantity < 1 {
		return DefaultQuantity
	}
	return i.Quantity
}

// EffectiveColor is the colour used for rendering.
func (i Item) EffectiveColor() string {
	if i.Color == "" {
		return DefaultColor
	}
	return i.Color
}

// State is the ordered cart contents.
type State []Item

// Add appends a label with default quantity, colour and price.
func Add(s State, text string) (State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, oops.Code("CART_EMPTY_TEXT").Errorf("label text cannot be empty")
	}
	next := clone(s, 1)
	return append(next, Item{
		Text:     text,
		Quantity: DefaultQuantity,
		Color:    DefaultColor,
		Price:    DefaultPrice,
	}), nil
}

// SetQuantity parses raw the way a browser number input is read: leading
// whitespace and sign, then digits, ignoring the rest. Unparseable or
// non-positive input becomes 1.
func SetQuantity(s State, index int, raw string) (State, error) {
	if err := checkIndex(s, index); err != nil {
		return s, err
	}
	qty, ok := parseLeadingInt(raw)
	if !ok || qty < 1 {
		qty = DefaultQuantity
	}
	next := clone(s, 0)
	next[index].Quantity = qty
	return next, nil
}

// SetColor sets the colour of the item at index. color must be #rrggbb.
func SetColor(s State, index int, color string) (State, error) {
	if err := checkIndex(s, index); err != nil {
		return s, err
	}
	if !colorRegex.MatchString(color) {
		return s, oops.Code("CART_INVALID_COLOR").
			With("color", color).
			Errorf("color must be a #rrggbb hex value")
	}
	next := clone(s, 0)
	next[index].Color = strings.ToLower(color)
	return next, nil
}

// Delete removes the item at index.
func Delete(s State, index int) (State, error) {
	if err := checkIndex(s, index); err != nil {
		return s, err
	}
	next := make(State, 0, len(s)-1)
	next = append(next, s[:index]...)
	return append(next, s[index+1:]...), nil
}

// TotalQuantity sums the effective quantity of every item.
func TotalQuantity(s State) int {
	total := 0
	for _, item := range s {
		total += item.EffectiveQuantity()
	}
	return total
}

// Badge is the cart link text.
func Badge(s State) string {
	return fmt.Sprintf("My Cart (%d)", TotalQuantity(s))
}

// Subtotal sums price times effective quantity.
func Subtotal(s State) float64 {
	var sum float64
	for _, item := range s {
		sum += item.Price * float64(item.EffectiveQuantity())
	}
	return sum
}

// Tile is one rendered unit in the preview grid.
type Tile struct {
	Text  string
	Color string
}

// PreviewTiles renders one tile per unit of quantity, in cart order.
func PreviewTiles(s State) []Tile {
	tiles := make([]Tile, 0, TotalQuantity(s))
	for _, item := range s {
		for range item.EffectiveQuantity() {
			tiles = append(tiles, Tile{Text: item.Text, Color: item.EffectiveColor()})
		}
	}
	return tiles
}

func checkIndex(s State, index int) error {
	if index < 0 || index >= len(s) {
		return oops.Code("CART_INDEX_OUT_OF_RANGE").
			With("index", index).
			With("len", len(s)).
			Errorf("no item at position %d", index)
	}
	return nil
}

func clone(s State, extra int) State {
	next := make(State, len(s), len(s)+extra)
	copy(next, s)
	return next
}

// parseLeadingInt reads an optional sign and the leading decimal digits of
// raw after skipping whitespace.
func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\n\r\f\v")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (1<<31)/10 {
			break // saturate near 2^31
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
