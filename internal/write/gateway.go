// Package write validates and issues single-register write-backs for
// the writable subset of the catalog.
package write

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/cache"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/link"
)

// ValidationError rejects a write before any transport I/O happens.
type ValidationError struct {
	Address uint16
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write: register %d: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("write: register %d: %s", e.Address, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Executor issues one serialized Modbus transaction. Satisfied by
// *link.Manager; sharing the poll scheduler's manager instance is what
// keeps writes from overlapping an in-flight poll batch.
type Executor interface {
	Execute(link.Request) (link.Response, error)
}

// Gateway is the single write path to the controller.
type Gateway struct {
	cat   *catalog.Catalog
	exec  Executor
	cache *cache.Cache
	log   *zap.Logger
}

func NewGateway(cat *catalog.Catalog, exec Executor, c *cache.Cache, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{cat: cat, exec: exec, cache: c, log: log}
}

// Write validates the value against the catalog, encodes it and issues
// the write. On success the cache is updated optimistically; the next
// poll cycle reconciles with the controller's reported value.
//
// Errors propagate synchronously: a failed write is never silent.
func (g *Gateway) Write(address uint16, v codec.Value) error {
	def, err := g.cat.Lookup(address)
	if err != nil {
		return &ValidationError{Address: address, Reason: "unknown register", Err: err}
	}
	if def.Access != catalog.ReadWrite {
		return &ValidationError{Address: address, Reason: "register is read-only"}
	}

	words, err := codec.Encode(def, v)
	if err != nil {
		var encErr *codec.EncodeError
		if errors.As(err, &encErr) {
			return &ValidationError{Address: address, Reason: "value rejected", Err: err}
		}
		return err
	}

	req := link.Request{Kind: link.WriteMultiple, Start: address, Values: words}
	if len(words) == 1 {
		req.Kind = link.WriteSingle
	}
	if _, err := g.exec.Execute(req); err != nil {
		return fmt.Errorf("write: register %d: %w", address, err)
	}

	g.cache.Put(address, v, time.Now())
	g.log.Info("register written",
		zap.String("key", def.Key),
		zap.Uint16("address", address),
		zap.String("value", v.String()),
	)
	return nil
}
