// Package catalog holds the fixed register table for the Danfoss
// ECL 120/220 controller and the lookup operations the poller and
// write path build on.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when an address or key is not in the catalog.
var ErrNotFound = errors.New("catalog: register not found")

// Access tells whether a register accepts writes.
type Access uint8

const (
	Read Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "RW"
	}
	return "R"
}

// WireType tells how a register's words are decoded.
type WireType uint8

const (
	Int16 WireType = iota
	UInt16
	Float32  // 2 registers, IEEE 754, high word first
	String8  // 8 registers, 16 ASCII chars
	String16 // 16 registers, 32 ASCII chars
)

func (w WireType) String() string {
	switch w {
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Float32:
		return "float32"
	case String8:
		return "string8"
	case String16:
		return "string16"
	}
	return "unknown"
}

// Span is the number of consecutive 16-bit registers the type occupies.
func (w WireType) Span() uint16 {
	switch w {
	case Float32:
		return 2
	case String8:
		return 8
	case String16:
		return 16
	}
	return 1
}

// Definition describes one register of the controller.
//
// Address is the 1-based "manual" (PNU-style) address from the Danfoss
// documentation. The link layer converts to 0-based PDU addressing when
// a request goes on the wire.
type Definition struct {
	Key     string
	Name    string
	Address uint16
	Access  Access
	Wire    WireType

	// Scale is applied after raw decode (e.g. raw * 0.1 -> °C).
	// Zero means 1.
	Scale float64
	Unit  string

	// Optional limits for writable numeric registers.
	Min  *float64
	Max  *float64
	Step *float64

	// Enum maps raw token values to labels for mode registers.
	// When set, writes must use one of the listed tokens.
	Enum map[int64]string

	Enabled bool
}

// Span returns the register count the definition occupies on the wire.
func (d Definition) Span() uint16 { return d.Wire.Span() }

// EffectiveScale returns Scale with the zero value meaning 1.
func (d Definition) EffectiveScale() float64 {
	if d.Scale == 0 {
		return 1
	}
	return d.Scale
}

// Catalog is the set of known registers, ordered by address.
// The enabled flag is the only mutable part.
type Catalog struct {
	mu     sync.RWMutex
	defs   []Definition
	byAddr map[uint16]int
	byKey  map[string]int
}

// New builds a catalog from a definition list. Addresses and keys must
// be unique; spans must not overlap.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]Definition, len(defs)),
		byAddr: make(map[uint16]int, len(defs)),
		byKey:  make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	sort.Slice(c.defs, func(i, j int) bool { return c.defs[i].Address < c.defs[j].Address })

	var prevEnd uint32
	for i, d := range c.defs {
		if d.Key == "" {
			return nil, fmt.Errorf("catalog: register %d has no key", d.Address)
		}
		if _, dup := c.byAddr[d.Address]; dup {
			return nil, fmt.Errorf("catalog: duplicate address %d", d.Address)
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate key %q", d.Key)
		}
		if uint32(d.Address) < prevEnd {
			return nil, fmt.Errorf("catalog: register %d overlaps preceding span", d.Address)
		}
		prevEnd = uint32(d.Address) + uint32(d.Span())
		c.byAddr[d.Address] = i
		c.byKey[d.Key] = i
	}
	return c, nil
}

// Lookup returns the definition at a manual address.
func (c *Catalog) Lookup(address uint16) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byAddr[address]
	if !ok {
		return Definition{}, fmt.Errorf("address %d: %w", address, ErrNotFound)
	}
	return c.defs[i], nil
}

// ByKey returns the definition with the given stable key.
func (c *Catalog) ByKey(key string) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return c.defs[i], nil
}

// Enabled returns the enabled registers in ascending address order.
// The result is a copy; batching re-derives groups from it every cycle.
func (c *Catalog) Enabled() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// All returns every definition in ascending address order.
func (c *Catalog) All() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// SetEnabled flips the polling flag for one register.
func (c *Catalog) SetEnabled(address uint16, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byAddr[address]
	if !ok {
		return fmt.Errorf("address %d: %w", address, ErrNotFound)
	}
	c.defs[i].Enabled = enabled
	return nil
}
