// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ConnectFailedEvery: 10, // sample logs: ~every 10th failed attempt
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	gw, _ := bucketcache.NewGateway(bucketcache.GatewayOptions{
//	    Resolve: bucketcache.StaticTarget("cache.internal", 6379),
//	    Dial:    redis.NewDialer(redis.Options{}),
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/bucketcache"
)

// Hooks moves event delivery off the gateway's replacement path. Events are
// dropped, not queued without bound, when the workers fall behind.
type Hooks struct {
	inner   bucketcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards q against send-after-close
	closed  bool
	dropped atomic.Uint64
}

var _ bucketcache.Hooks = (*Hooks)(nil)

func New(inner bucketcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers queued events and stops the workers. Events posted after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Connecting(t string)     { h.try(func() { h.inner.Connecting(t) }) }
func (h *Hooks) Connected(t string)      { h.try(func() { h.inner.Connected(t) }) }
func (h *Hooks) ConnectionLost(t string) { h.try(func() { h.inner.ConnectionLost(t) }) }
func (h *Hooks) ConnectFailed(t string, err error) {
	h.try(func() { h.inner.ConnectFailed(t, err) })
}
func (h *Hooks) Reconnected(t string, n int) {
	h.try(func() { h.inner.Reconnected(t, n) })
}
func (h *Hooks) ReconnectGaveUp(t string, n int, err error) {
	h.try(func() { h.inner.ReconnectGaveUp(t, n, err) })
}
