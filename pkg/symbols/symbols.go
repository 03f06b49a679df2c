// Package symbols maintains the mapping between canonical trading pairs
// (BASE-QUOTE) and exchange-native symbols. Each exchange package builds a
// Map from its markets endpoint and swaps it into a Store atomically, so
// readers never observe a partially updated mapping.
package symbols

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Pair is a canonical trading pair. Base and Quote are upper-case asset
// codes; the string form is "BASE-QUOTE".
type Pair struct {
	Base  string
	Quote string
}

// NewPair builds a pair, upper-casing both assets.
func NewPair(base, quote string) Pair {
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// ParsePair parses the "BASE-QUOTE" canonical form.
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "-")
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: want BASE-QUOTE", s)
	}
	return NewPair(base, quote), nil
}

func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// IsZero reports whether the pair is the empty value.
func (p Pair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}

// Market is an exchange market descriptor as reported by the venue's
// markets endpoint, already parsed into canonical fields.
type Market struct {
	Symbol      string
	Base        string
	Quote       string
	Status      string
	MinQuantity decimal.Decimal
	MaxQuantity decimal.Decimal
}

// Tradable reports whether the market passes the validity filter: status
// "active" (case-insensitive), non-negative minimum, positive maximum, and
// minimum not exceeding maximum.
func (m Market) Tradable() bool {
	if !strings.EqualFold(m.Status, "active") {
		return false
	}
	if m.MinQuantity.IsNegative() {
		return false
	}
	if !m.MaxQuantity.IsPositive() {
		return false
	}
	return m.MinQuantity.LessThanOrEqual(m.MaxQuantity)
}

// Builder accumulates markets into a Map. Duplicate native symbols or
// duplicate pairs keep the first entry seen; later duplicates are dropped.
type Builder struct {
	bySymbol map[string]Pair
	byPair   map[Pair]string
	dropped  int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		bySymbol: make(map[string]Pair),
		byPair:   make(map[Pair]string),
	}
}

// Add records a market if it is tradable and does not collide with an
// existing entry. It reports whether the market was accepted.
func (b *Builder) Add(m Market) bool {
	if !m.Tradable() || m.Symbol == "" || m.Base == "" || m.Quote == "" {
		b.dropped++
		return false
	}
	pair := NewPair(m.Base, m.Quote)
	if _, exists := b.bySymbol[m.Symbol]; exists {
		b.dropped++
		return false
	}
	if _, exists := b.byPair[pair]; exists {
		b.dropped++
		return false
	}
	b.bySymbol[m.Symbol] = pair
	b.byPair[pair] = m.Symbol
	return true
}

// Dropped returns how many markets were rejected by the filter or by
// collision.
func (b *Builder) Dropped() int {
	return b.dropped
}

// Build freezes the accumulated entries into an immutable Map.
func (b *Builder) Build() *Map {
	m := &Map{
		bySymbol: make(map[string]Pair, len(b.bySymbol)),
		byPair:   make(map[Pair]string, len(b.byPair)),
	}
	for symbol, pair := range b.bySymbol {
		m.bySymbol[symbol] = pair
	}
	for pair, symbol := range b.byPair {
		m.byPair[pair] = symbol
	}
	return m
}

// Map is an immutable bijection between native symbols and canonical pairs.
type Map struct {
	bySymbol map[string]Pair
	byPair   map[Pair]string
}

// Pair resolves a native symbol to its canonical pair.
func (m *Map) Pair(symbol string) (Pair, bool) {
	pair, ok := m.bySymbol[symbol]
	return pair, ok
}

// Symbol resolves a canonical pair to the exchange-native symbol.
func (m *Map) Symbol(pair Pair) (string, bool) {
	symbol, ok := m.byPair[pair]
	return symbol, ok
}

// Pairs returns all mapped pairs in unspecified order.
func (m *Map) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m.byPair))
	for pair := range m.byPair {
		pairs = append(pairs, pair)
	}
	return pairs
}

// Len returns the number of mapped markets.
func (m *Map) Len() int {
	return len(m.bySymbol)
}

var emptyMap = &Map{}

// Store holds the current Map and supports atomic replacement. The zero
// value is usable and starts empty.
type Store struct {
	current atomic.Pointer[Map]
}

// Load returns the current map, never nil.
func (s *Store) Load() *Map {
	if m := s.current.Load(); m != nil {
		return m
	}
	return emptyMap
}

// Swap replaces the current map.
func (s *Store) Swap(m *Map) {
	if m == nil {
		m = emptyMap
	}
	s.current.Store(m)
}
