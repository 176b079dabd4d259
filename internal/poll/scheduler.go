// Package poll drives periodic register reads for one controller and
// feeds decoded values into the cache.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/cache"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/link"
)

// Executor issues one serialized Modbus transaction. Satisfied by
// *link.Manager.
type Executor interface {
	Execute(link.Request) (link.Response, error)
}

// Config is the scheduler's immutable runtime configuration.
type Config struct {
	Interval time.Duration
	MaxBatch uint16 // per-request register limit, capped at MaxReadSpan
	Slack    uint16 // max address gap bridged when merging batches
}

// Scheduler polls the enabled subset of the catalog on a fixed cadence.
type Scheduler struct {
	cfg   Config
	cat   *catalog.Catalog
	exec  Executor
	cache *cache.Cache
	log   *zap.Logger
}

// New validates the config and builds a scheduler.
func New(cfg Config, cat *catalog.Catalog, exec Executor, c *cache.Cache, log *zap.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poll: interval must be > 0")
	}
	if cat == nil || exec == nil || c == nil {
		return nil, errors.New("poll: catalog, executor and cache are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, cat: cat, exec: exec, cache: c, log: log}, nil
}

// Run ticks until the context is cancelled. A cycle that outlasts the
// interval makes the ticker drop the intervening ticks, so cycles never
// overlap; failed batches are retried by the next cycle, not within one.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunCycle()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle()
			// A tick that fired while the cycle ran would start the
			// next cycle immediately; drop it so overlong cycles skip
			// a beat instead.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// RunCycle performs exactly one poll cycle over the current enabled set.
// Batch failures are isolated: the remaining batches still run.
func (s *Scheduler) RunCycle() {
	defs := s.cat.Enabled()
	s.pruneDisabled(defs)

	batches := Plan(defs, s.cfg.MaxBatch, s.cfg.Slack)

	for _, b := range batches {
		resp, err := s.exec.Execute(link.Request{
			Kind:     link.ReadHolding,
			Start:    b.Start,
			Quantity: b.Quantity,
		})
		now := time.Now()

		if err == nil && len(resp.Words) < int(b.Quantity) {
			err = fmt.Errorf("poll: short read: want %d words, got %d", b.Quantity, len(resp.Words))
		}
		if err != nil {
			for _, d := range b.Members {
				s.cache.MarkError(d.Address, err, now)
			}
			if !errors.Is(err, link.ErrUnavailable) {
				s.log.Warn("batch read failed",
					zap.Uint16("start", b.Start),
					zap.Uint16("quantity", b.Quantity),
					zap.Error(err),
				)
			}
			continue
		}

		for _, d := range b.Members {
			off := d.Address - b.Start
			words := resp.Words[off : off+d.Span()]

			v, derr := codec.Decode(d, words)
			if derr != nil {
				s.cache.MarkError(d.Address, derr, now)
				s.log.Error("decode failed", zap.String("key", d.Key), zap.Error(derr))
				continue
			}

			if !codec.InRange(d, v) {
				s.cache.PutOutOfRange(d.Address, v, now)
				s.log.Warn("value outside valid range",
					zap.String("key", d.Key),
					zap.Float64("value", v.Num),
				)
				continue
			}

			s.cache.Put(d.Address, v, now)
			s.log.Debug("value updated", zap.String("key", d.Key), zap.String("value", v.String()))
		}
	}
}

// pruneDisabled drops cache entries for registers that left the
// enabled set since the previous cycle.
func (s *Scheduler) pruneDisabled(enabled []catalog.Definition) {
	keep := make(map[uint16]bool, len(enabled))
	for _, d := range enabled {
		keep[d.Address] = true
	}
	for _, e := range s.cache.Snapshot() {
		if !keep[e.Address] {
			s.cache.Drop(e.Address)
		}
	}
}
