// Package ristretto provides an in-process conn.Handle backed by dgraph-io/ristretto.
// It serves single-process deployments and tests; per-key TTLs are honored on read.
package ristretto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/bucketcache/conn"
	"github.com/unkn0wn-root/bucketcache/future"
)

// ErrRejected is returned when ristretto drops a write (admission or buffer pressure).
var ErrRejected = errors.New("ristretto handle: write rejected")

type Config struct {
	NumCounters int64 // 0 => 1e6
	MaxCost     int64 // bytes; 0 => 256MiB
	BufferItems int64 // 0 => 64
}

type Handle struct {
	lc     *conn.Lifecycle
	target conn.Target
	cfg    Config
	c      *rc.Cache
}

var _ conn.Handle = (*Handle)(nil)

func New(target conn.Target, cfg Config) *Handle {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 1e6
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 256 << 20
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	return &Handle{lc: conn.NewLifecycle(), target: target, cfg: cfg}
}

// NewDialer returns a conn.Dialer producing ristretto handles. The target is
// recorded for diagnostics only.
func NewDialer(cfg Config) conn.Dialer {
	return func(_ context.Context, target conn.Target) (conn.Handle, error) {
		return New(target, cfg), nil
	}
}

func (h *Handle) State() conn.State { return h.lc.State() }

func (h *Handle) Closed() <-chan struct{} { return h.lc.Closed() }

func (h *Handle) Open(_ context.Context) error {
	if !h.lc.Transition(conn.Uninitialized, conn.Opening) {
		return fmt.Errorf("ristretto handle %s: open in state %s", h.target, h.State())
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: h.cfg.NumCounters,
		MaxCost:     h.cfg.MaxCost,
		BufferItems: h.cfg.BufferItems,
	})
	if err != nil {
		h.lc.MarkClosed()
		return err
	}
	h.c = c
	if !h.lc.Transition(conn.Opening, conn.Open) {
		c.Close()
		return conn.ErrClosed
	}
	return nil
}

func (h *Handle) Close(abortPending bool) error {
	if !h.lc.BeginClose() {
		return nil
	}
	if !abortPending {
		h.lc.Drain()
	}
	if h.c != nil {
		h.c.Close()
	}
	h.lc.MarkClosed()
	return nil
}

func (h *Handle) Get(_ context.Context, key string) *future.Future[[]byte] {
	return run(h, func() ([]byte, error) {
		v, ok := h.c.Get(key)
		if !ok {
			return nil, nil
		}
		b, _ := v.([]byte)
		if b == nil {
			// self-heal: drop unexpected entry shape
			h.c.Del(key)
			return nil, nil
		}
		return bytes.Clone(b), nil
	})
}

func (h *Handle) Set(_ context.Context, key string, value []byte, ttl time.Duration) *future.Future[struct{}] {
	return run(h, func() (struct{}, error) {
		return struct{}{}, h.store(key, bytes.Clone(value), ttl)
	})
}

func (h *Handle) Del(_ context.Context, keys ...string) *future.Future[int64] {
	if len(keys) == 0 {
		return future.Resolved[int64](0, nil)
	}
	return run(h, func() (int64, error) {
		var n int64
		for _, k := range keys {
			if _, ok := h.c.Get(k); ok {
				n++
			}
			h.c.Del(k)
		}
		h.c.Wait()
		return n, nil
	})
}

// Expire re-stores the current value with ttl; ttl <= 0 clears the expiry.
func (h *Handle) Expire(_ context.Context, key string, ttl time.Duration) *future.Future[bool] {
	return run(h, func() (bool, error) {
		v, ok := h.c.Get(key)
		if !ok {
			return false, nil
		}
		b, _ := v.([]byte)
		if err := h.store(key, b, ttl); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (h *Handle) store(key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	if !h.c.SetWithTTL(key, value, cost, ttl) {
		return ErrRejected
	}
	h.c.Wait() // read-your-writes
	return nil
}

// run executes fn synchronously; ristretto calls never block on I/O.
func run[T any](h *Handle, fn func() (T, error)) *future.Future[T] {
	if err := h.lc.Begin(); err != nil {
		var zero T
		return future.Resolved(zero, err)
	}
	v, err := fn()
	h.lc.End()
	return future.Resolved(v, err)
}
