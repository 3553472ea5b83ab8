package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/bucketcache"
)

type Options struct {
	// Sampling to avoid floods while a target is down; 0/1 = log all.
	ConnectingEvery    uint64
	ConnectFailedEvery uint64
	// Optional target rewriter, e.g. to hide internal hostnames. Defaults to identity.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	connectingCtr    atomic.Uint64
	connectFailedCtr atomic.Uint64
}

var _ bucketcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(target string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(target)
	}
	return target
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Connecting(target string) {
	if h.l == nil || !sample(h.opts.ConnectingEvery, &h.connectingCtr) {
		return
	}
	h.l.Debug("bucketcache.connecting", "target", h.redact(target))
}

func (h *Hooks) Connected(target string) {
	if h.l == nil {
		return
	}
	h.l.Info("bucketcache.connected", "target", h.redact(target))
}

func (h *Hooks) ConnectFailed(target string, err error) {
	if h.l == nil || !sample(h.opts.ConnectFailedEvery, &h.connectFailedCtr) {
		return
	}
	h.l.Warn("bucketcache.connect_failed",
		"target", h.redact(target),
		"err", err)
}

func (h *Hooks) ConnectionLost(target string) {
	if h.l == nil {
		return
	}
	h.l.Warn("bucketcache.connection_lost", "target", h.redact(target))
}

func (h *Hooks) Reconnected(target string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Info("bucketcache.reconnected",
		"target", h.redact(target),
		"attempts", attempts)
}

func (h *Hooks) ReconnectGaveUp(target string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("bucketcache.reconnect_gave_up",
		"target", h.redact(target),
		"attempts", attempts,
		"err", err)
}
