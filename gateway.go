package bucketcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/bucketcache/conn"
)

const (
	defaultOpenTimeout      = 5 * time.Second
	defaultReconnectInitial = 100 * time.Millisecond
	defaultReconnectMax     = 10 * time.Second
	defaultReconnectTries   = 10
)

// TargetFunc resolves the endpoint for the next connection attempt. It is
// called on every (re)connection, so a changed configuration redirects future
// connections without a restart.
type TargetFunc func(ctx context.Context) (conn.Target, error)

// StaticTarget always resolves to host:port.
func StaticTarget(host string, port int) TargetFunc {
	t := conn.Target{Host: host, Port: port}
	return func(context.Context) (conn.Target, error) { return t, nil }
}

// ReconnectPolicy bounds the supervisor that repairs a handle after it closes
// on its own. When Disabled, repair happens lazily on the next Acquire only.
type ReconnectPolicy struct {
	Disabled        bool
	InitialInterval time.Duration // 0 => 100ms
	MaxInterval     time.Duration // 0 => 10s
	MaxAttempts     int           // 0 => 10
}

type GatewayOptions struct {
	// Required
	Resolve TargetFunc
	Dial    conn.Dialer

	OpenTimeout time.Duration // bounds each handshake; 0 => 5s
	Logger      Logger        // nil => NopLogger
	Hooks       Hooks         // nil => NopHooks
	Reconnect   ReconnectPolicy
}

type slot struct {
	h      conn.Handle
	target conn.Target
	id     string // log correlation only
}

// Gateway owns the single current connection handle for one logical target.
// Acquire is safe for concurrent use; replacement of the handle is serialized.
type Gateway struct {
	current atomic.Pointer[slot]
	mu      sync.Mutex // serializes replacement of current
	closed  atomic.Bool

	resolve     TargetFunc
	dial        conn.Dialer
	openTimeout time.Duration
	log         Logger
	hooks       Hooks
	policy      ReconnectPolicy

	lost   chan struct{} // 1-slot: repeated close events collapse into one repair
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if opts.Resolve == nil {
		return nil, fmt.Errorf("bucketcache: gateway resolver is required")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("bucketcache: gateway dialer is required")
	}

	g := &Gateway{
		resolve: opts.Resolve,
		dial:    opts.Dial,
		lost:    make(chan struct{}, 1),
		policy:  opts.Reconnect,
	}
	g.openTimeout = coalesce(opts.OpenTimeout, defaultOpenTimeout)
	g.log = coalesce[Logger](opts.Logger, NopLogger{})
	g.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	g.policy.InitialInterval = coalesce(g.policy.InitialInterval, defaultReconnectInitial)
	g.policy.MaxInterval = coalesce(g.policy.MaxInterval, defaultReconnectMax)
	g.policy.MaxAttempts = coalesce(g.policy.MaxAttempts, defaultReconnectTries)

	g.ctx, g.cancel = context.WithCancel(context.Background())
	if !g.policy.Disabled {
		g.wg.Add(1)
		go g.supervise()
	}
	return g, nil
}

// Acquire returns the current handle, dialing and opening a new one if the
// current handle is missing or unusable. The healthy path takes no lock and
// does no I/O. Failures are *ConnectionError; Acquire itself never retries.
func (g *Gateway) Acquire(ctx context.Context) (conn.Handle, error) {
	if g.closed.Load() {
		return nil, &ConnectionError{Err: ErrGatewayClosed}
	}
	if s := g.current.Load(); s != nil && !NeedsReset(s.h) {
		return s.h, nil
	}
	return g.repair(ctx)
}

// Target reports the endpoint of the current handle; zero before first connect.
func (g *Gateway) Target() conn.Target {
	if s := g.current.Load(); s != nil {
		return s.target
	}
	return conn.Target{}
}

func (g *Gateway) repair(ctx context.Context) (conn.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed.Load() {
		return nil, &ConnectionError{Err: ErrGatewayClosed}
	}
	// another goroutine may have repaired it while we waited
	stale := g.current.Load()
	if stale != nil && !NeedsReset(stale.h) {
		return stale.h, nil
	}
	if stale != nil {
		g.log.Warn("replacing unusable connection", Fields{
			"target":  stale.target.String(),
			"state":   stale.h.State().String(),
			"conn_id": stale.id,
		})
		_ = stale.h.Close(false)
	}

	target, err := g.resolve(ctx)
	if err != nil {
		g.hooks.ConnectFailed("", err)
		g.log.Error("resolve connection target failed", Fields{"err": err})
		return nil, &ConnectionError{Err: err}
	}
	addr := target.String()

	g.hooks.Connecting(addr)
	g.log.Debug("connecting", Fields{"target": addr})

	h, err := g.dial(ctx, target)
	if err != nil {
		return nil, g.connectFailed(addr, err)
	}
	octx, cancel := context.WithTimeout(ctx, g.openTimeout)
	err = h.Open(octx)
	cancel()
	if err != nil {
		_ = h.Close(true)
		return nil, g.connectFailed(addr, err)
	}

	s := &slot{h: h, target: target, id: uuid.NewString()}
	g.current.Store(s)
	g.wg.Add(1)
	go g.watch(s)

	g.hooks.Connected(addr)
	g.log.Info("connected", Fields{"target": addr, "conn_id": s.id})
	return h, nil
}

func (g *Gateway) connectFailed(addr string, err error) error {
	g.hooks.ConnectFailed(addr, err)
	g.log.Error("connection failed", Fields{"target": addr, "err": err})
	return &ConnectionError{Target: addr, Err: err}
}

// watch waits for the slot's handle to close. If the slot is still current the loss is posted to the
// supervisor; the watcher itself never reconnects.
func (g *Gateway) watch(s *slot) {
	defer g.wg.Done()
	select {
	case <-s.h.Closed():
	case <-g.ctx.Done():
		return
	}
	if g.closed.Load() || g.current.Load() != s {
		return
	}

	addr := s.target.String()
	g.hooks.ConnectionLost(addr)
	g.log.Warn("connection lost", Fields{"target": addr, "conn_id": s.id})
	if g.policy.Disabled {
		return
	}
	select {
	case g.lost <- struct{}{}:
	default: // a repair is already pending
	}
}

func (g *Gateway) supervise() {
	defer g.wg.Done()
	for {
		select {
		case <-g.ctx.Done():
			return
		case <-g.lost:
			g.reconnect()
		}
	}
}

func (g *Gateway) reconnect() {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.policy.InitialInterval
	expo.MaxInterval = g.policy.MaxInterval
	expo.MaxElapsedTime = 0

	var b backoff.BackOff = expo
	if g.policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(g.policy.MaxAttempts-1))
	}
	b = backoff.WithContext(b, g.ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		_, err := g.repair(g.ctx)
		if errors.Is(err, ErrGatewayClosed) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	addr := g.Target().String()
	if err == nil {
		g.hooks.Reconnected(addr, attempts)
		g.log.Info("reconnected", Fields{"target": addr, "attempts": attempts})
		return
	}
	if g.closed.Load() {
		return
	}
	g.hooks.ReconnectGaveUp(addr, attempts, err)
	g.log.Error("reconnect gave up", Fields{"target": addr, "attempts": attempts, "err": err})
}

// Close stops the supervisor and closes the current handle gracefully: pending
// requests are allowed to finish. Later Acquire calls fail with ErrGatewayClosed.
// If ctx ends first, Close returns ctx.Err() and the handle finishes closing
// in the background. Safe to call multiple times.
func (g *Gateway) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.closeOnce.Do(func() {
			g.closed.Store(true)
			g.cancel()

			// wait out an in-progress replacement
			g.mu.Lock()
			s := g.current.Load()
			g.mu.Unlock()

			g.wg.Wait()
			if s != nil {
				g.closeErr = s.h.Close(false)
			}
		})
		close(done)
	}()

	select {
	case <-done:
		return g.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
