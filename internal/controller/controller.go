// Package controller wires the catalog, link, scheduler, cache and
// write gateway for one ECL controller and exposes the narrow API the
// host application consumes.
package controller

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/cache"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/config"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/link"
	linkmodbus "github.com/nichlasrohde/ha-ecl-modbus/internal/link/modbus"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/poll"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/write"
)

// Controller is one ECL 120/220 instance: one link, one scheduler,
// one value cache. Multiple controllers get independent instances.
type Controller struct {
	cat     *catalog.Catalog
	cache   *cache.Cache
	linkMgr *link.Manager
	sched   *poll.Scheduler
	gateway *write.Gateway
}

// New builds a controller from a validated, normalized configuration.
func New(cfg *config.Config, log *zap.Logger) (*Controller, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cc := cfg.Controller

	cat, err := catalog.NewECL()
	if err != nil {
		return nil, err
	}
	for _, f := range cc.Registers {
		def, err := cat.ByKey(f.Key)
		if err != nil {
			return nil, err
		}
		if err := cat.SetEnabled(def.Address, f.Enabled); err != nil {
			return nil, err
		}
	}

	tr, err := buildTransport(cc)
	if err != nil {
		return nil, err
	}

	mgr := link.NewManager(tr, link.Config{
		BackoffSeed: time.Duration(cc.Backoff.SeedMs) * time.Millisecond,
		BackoffCap:  time.Duration(cc.Backoff.CapMs) * time.Millisecond,
	}, log.Named("link"))

	vc := cache.New()

	sched, err := poll.New(poll.Config{
		Interval: time.Duration(cc.Poll.IntervalS) * time.Second,
		MaxBatch: cc.Poll.MaxBatchRegisters,
		Slack:    cc.Poll.BatchSlack,
	}, cat, mgr, vc, log.Named("poll"))
	if err != nil {
		return nil, err
	}

	return &Controller{
		cat:     cat,
		cache:   vc,
		linkMgr: mgr,
		sched:   sched,
		gateway: write.NewGateway(cat, mgr, vc, log.Named("write")),
	}, nil
}

func buildTransport(cc config.ControllerConfig) (link.Transport, error) {
	timeout := time.Duration(cc.TimeoutMs) * time.Millisecond

	switch cc.Transport {
	case config.TransportSerial:
		return linkmodbus.NewRTU(linkmodbus.SerialConfig{
			Port:     cc.Serial.Port,
			BaudRate: cc.Serial.BaudRate,
			Parity:   cc.Serial.Parity,
			StopBits: cc.Serial.StopBits,
			UnitID:   cc.UnitID,
			Timeout:  timeout,
		})
	case config.TransportTCP:
		addr := net.JoinHostPort(cc.TCP.Host, strconv.Itoa(cc.TCP.Port))
		return linkmodbus.NewTCP(linkmodbus.TCPConfig{
			Address: addr,
			UnitID:  cc.UnitID,
			Timeout: timeout,
		})
	}
	return nil, fmt.Errorf("controller: unknown transport %q", cc.Transport)
}

// Run drives the polling loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.sched.Run(ctx)
}

// PollOnce performs a single poll cycle, for one-shot CLI reads.
func (c *Controller) PollOnce() {
	c.sched.RunCycle()
}

// ReadNow reads one register immediately, outside the poll cadence,
// and refreshes its cache entry.
func (c *Controller) ReadNow(address uint16) (codec.Value, error) {
	def, err := c.cat.Lookup(address)
	if err != nil {
		return codec.Value{}, err
	}

	resp, err := c.linkMgr.Execute(link.Request{
		Kind:     link.ReadHolding,
		Start:    def.Address,
		Quantity: def.Span(),
	})
	if err != nil {
		c.cache.MarkError(address, err, time.Now())
		return codec.Value{}, err
	}

	v, err := codec.Decode(def, resp.Words)
	if err != nil {
		c.cache.MarkError(address, err, time.Now())
		return codec.Value{}, err
	}
	c.cache.Put(address, v, time.Now())
	return v, nil
}

// GetValue returns the last known value for a register.
func (c *Controller) GetValue(address uint16) (cache.Entry, bool) {
	return c.cache.Get(address)
}

// Values returns the cached entries for every polled register.
func (c *Controller) Values() []cache.Entry {
	return c.cache.Snapshot()
}

// WriteValue validates and writes one register.
func (c *Controller) WriteValue(address uint16, v codec.Value) error {
	return c.gateway.Write(address, v)
}

// LinkHealth reports the link state for diagnostics.
func (c *Controller) LinkHealth() link.Health {
	return c.linkMgr.Health()
}

// ListRegisters returns the catalog metadata for entity building.
func (c *Controller) ListRegisters() []catalog.Definition {
	return c.cat.All()
}

// Register resolves a register by key.
func (c *Controller) Register(key string) (catalog.Definition, error) {
	return c.cat.ByKey(key)
}

// SetEnabled flips polling for one register.
func (c *Controller) SetEnabled(address uint16, enabled bool) error {
	return c.cat.SetEnabled(address, enabled)
}

// Close lets any in-flight request settle, then closes the link.
func (c *Controller) Close() error {
	return c.linkMgr.Close()
}
