// Package cache holds the last known value per register. The poll
// scheduler is the writer; the host application reads.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
)

// Entry is the last known state of one register.
//
// Value and UpdatedAt describe the last successful decode. Err and
// AttemptedAt describe the most recent poll attempt; a failed attempt
// leaves Value and UpdatedAt untouched so consumers keep a stale but
// present reading during link degradation.
type Entry struct {
	Address     uint16
	Value       codec.Value
	UpdatedAt   time.Time
	AttemptedAt time.Time
	Err         error
	OutOfRange  bool
}

// Cache is safe for one writer and many readers.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint16]Entry
}

func New() *Cache {
	return &Cache{entries: make(map[uint16]Entry)}
}

// Get returns the entry for a register, if one exists.
func (c *Cache) Get(address uint16) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[address]
	return e, ok
}

// Put records a successful read or an optimistic write echo.
func (c *Cache) Put(address uint16, v codec.Value, at time.Time) {
	c.put(address, v, at, false)
}

// PutOutOfRange records a successful read whose value fell outside the
// register's valid range.
func (c *Cache) PutOutOfRange(address uint16, v codec.Value, at time.Time) {
	c.put(address, v, at, true)
}

func (c *Cache) put(address uint16, v codec.Value, at time.Time, outOfRange bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[address] = Entry{
		Address:     address,
		Value:       v,
		UpdatedAt:   at,
		AttemptedAt: at,
		OutOfRange:  outOfRange,
	}
}

// MarkError records a failed attempt, preserving the previous value and
// its timestamp.
func (c *Cache) MarkError(address uint16, err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[address]
	e.Address = address
	e.Err = err
	e.AttemptedAt = at
	c.entries[address] = e
}

// Drop removes a register's entry, e.g. when it is disabled.
func (c *Cache) Drop(address uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, address)
}

// Snapshot returns all entries ordered by address.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
