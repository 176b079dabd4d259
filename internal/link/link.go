// Package link owns the single Modbus connection to one controller.
// It serializes transactions, detects transport failures and recovers
// with jittered exponential backoff.
package link

import (
	"errors"
	"fmt"
)

// ErrUnavailable is the fast-fail result while the link is degraded and
// the next reconnect attempt is not yet due. Callers should keep their
// last known value rather than block.
var ErrUnavailable = errors.New("link: unavailable while degraded")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("link: closed")

// Error wraps a transport open/IO/timeout failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("link: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// State is the link life-cycle position.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}

// Health is a snapshot of the link state for diagnostics.
type Health struct {
	State               State
	LastError           error
	ConsecutiveFailures int
}

// Transport is a byte-level Modbus link. Addresses here are 0-based PDU
// addresses; the manager converts from the catalog's 1-based manual
// addresses.
type Transport interface {
	Connect() error
	Close() error
	ReadHoldingRegisters(address, quantity uint16) ([]uint16, error)
	WriteSingleRegister(address, value uint16) error
	WriteMultipleRegisters(address uint16, values []uint16) error
}

// RequestKind selects the Modbus operation.
type RequestKind uint8

const (
	ReadHolding   RequestKind = iota // FC 3
	WriteSingle                      // FC 6
	WriteMultiple                    // FC 16
)

// Request carries one transaction. Start is a 1-based manual address.
type Request struct {
	Kind     RequestKind
	Start    uint16
	Quantity uint16   // reads
	Values   []uint16 // writes
}

// Response carries the words a read returned. Writes leave it empty.
type Response struct {
	Words []uint16
}
