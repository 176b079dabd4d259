package link

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config tunes the reconnect backoff.
type Config struct {
	BackoffSeed time.Duration // first retry delay bound, default 1s
	BackoffCap  time.Duration // maximum retry delay bound, default 60s
}

func (c Config) withDefaults() Config {
	if c.BackoffSeed <= 0 {
		c.BackoffSeed = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 60 * time.Second
	}
	return c
}

// Manager owns one Transport and serializes access to it. RS-485 is
// half-duplex and most TCP gateways front the same bus, so at most one
// transaction may be in flight.
type Manager struct {
	// txMu is held for the full duration of a transaction, including
	// connect attempts. It is the single serialization point shared by
	// the poll scheduler and the write gateway.
	txMu sync.Mutex

	tr  Transport
	cfg Config
	log *zap.Logger

	// stateMu guards the fields below so Health stays queryable while
	// a transaction blocks on I/O.
	stateMu     sync.Mutex
	state       State
	lastErr     error
	failures    int
	nextAttempt time.Time
	closed      bool
}

// NewManager wraps a transport. The link starts Disconnected; the first
// Execute opens it.
func NewManager(tr Transport, cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{tr: tr, cfg: cfg.withDefaults(), log: log, state: Disconnected}
}

// Health returns the current link state snapshot.
func (m *Manager) Health() Health {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	return Health{State: m.state, LastError: m.lastErr, ConsecutiveFailures: m.failures}
}

// Execute performs one transaction. It fails fast with ErrUnavailable
// while the link is degraded and the backoff has not elapsed.
func (m *Manager) Execute(req Request) (Response, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := m.ensureConnected(); err != nil {
		return Response{}, err
	}

	// Manual addresses are 1-based in the Danfoss register map; the
	// wire PDU is 0-based. This is the only place the shift happens.
	pdu := req.Start - 1

	switch req.Kind {
	case ReadHolding:
		words, err := m.tr.ReadHoldingRegisters(pdu, req.Quantity)
		if err != nil {
			return Response{}, m.degrade("read holding registers", err)
		}
		m.noteSuccess()
		return Response{Words: words}, nil

	case WriteSingle:
		if err := m.tr.WriteSingleRegister(pdu, req.Values[0]); err != nil {
			return Response{}, m.degrade("write single register", err)
		}
		m.noteSuccess()
		return Response{}, nil

	case WriteMultiple:
		if err := m.tr.WriteMultipleRegisters(pdu, req.Values); err != nil {
			return Response{}, m.degrade("write multiple registers", err)
		}
		m.noteSuccess()
		return Response{}, nil
	}

	return Response{}, &Error{Op: "execute", Err: errUnknownRequest}
}

var errUnknownRequest = errors.New("unknown request kind")

// Close waits for any in-flight transaction, then shuts the transport.
// The manager is unusable afterwards.
func (m *Manager) Close() error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.stateMu.Lock()
	wasConnected := m.state == Connected
	m.closed = true
	m.state = Disconnected
	m.stateMu.Unlock()

	if wasConnected {
		return m.tr.Close()
	}
	return nil
}

// ensureConnected opens the transport if needed. Caller holds txMu.
func (m *Manager) ensureConnected() error {
	m.stateMu.Lock()
	if m.closed {
		m.stateMu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case Connected:
		m.stateMu.Unlock()
		return nil
	case Degraded:
		if time.Now().Before(m.nextAttempt) {
			m.stateMu.Unlock()
			return ErrUnavailable
		}
	}
	m.state = Connecting
	m.stateMu.Unlock()

	if err := m.tr.Connect(); err != nil {
		return m.degrade("connect", err)
	}

	m.stateMu.Lock()
	m.state = Connected
	m.failures = 0
	m.lastErr = nil
	m.stateMu.Unlock()

	m.log.Info("link connected")
	return nil
}

// degrade records a failure, closes the transport and schedules the
// next reconnect attempt with full-jitter exponential backoff.
// Caller holds txMu.
func (m *Manager) degrade(op string, err error) error {
	_ = m.tr.Close()

	m.stateMu.Lock()
	m.failures++
	m.lastErr = err
	m.state = Degraded

	bound := m.cfg.BackoffSeed
	for i := 1; i < m.failures && bound < m.cfg.BackoffCap; i++ {
		bound *= 2
	}
	if bound > m.cfg.BackoffCap {
		bound = m.cfg.BackoffCap
	}
	delay := time.Duration(rand.Int63n(int64(bound) + 1))
	m.nextAttempt = time.Now().Add(delay)
	failures := m.failures
	m.stateMu.Unlock()

	m.log.Warn("link degraded",
		zap.String("op", op),
		zap.Error(err),
		zap.Int("consecutive_failures", failures),
		zap.Duration("retry_in", delay),
	)
	return &Error{Op: op, Err: err}
}

func (m *Manager) noteSuccess() {
	m.stateMu.Lock()
	m.failures = 0
	m.lastErr = nil
	m.stateMu.Unlock()
}

