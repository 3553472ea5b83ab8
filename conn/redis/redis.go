package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/bucketcache/conn"
	"github.com/unkn0wn-root/bucketcache/future"
)

const defaultTimeout = 5 * time.Second

// Options tune every client this package dials. Zero values use defaults.
type Options struct {
	DB           int
	DialTimeout  time.Duration // 0 => 5s
	ReadTimeout  time.Duration // 0 => 5s
	WriteTimeout time.Duration // 0 => 5s
	PoolSize     int           // 0 => go-redis default
}

// Handle is a conn.Handle over one go-redis client.
type Handle struct {
	lc     *conn.Lifecycle
	target conn.Target
	rdb    *goredis.Client
}

var _ conn.Handle = (*Handle)(nil)

// New builds an unopened handle. No I/O happens until Open.
func New(target conn.Target, opts Options) *Handle {
	return &Handle{
		lc:     conn.NewLifecycle(),
		target: target,
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         target.Addr(),
			DB:           opts.DB,
			DialTimeout:  orDefault(opts.DialTimeout),
			ReadTimeout:  orDefault(opts.ReadTimeout),
			WriteTimeout: orDefault(opts.WriteTimeout),
			PoolSize:     opts.PoolSize,
		}),
	}
}

// NewDialer returns a conn.Dialer producing redis handles with opts.
func NewDialer(opts Options) conn.Dialer {
	return func(_ context.Context, target conn.Target) (conn.Handle, error) {
		return New(target, opts), nil
	}
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

func (h *Handle) Target() conn.Target { return h.target }

func (h *Handle) State() conn.State { return h.lc.State() }

func (h *Handle) Closed() <-chan struct{} { return h.lc.Closed() }

// Open pings the server. On failure the client is released and the handle is Closed.
func (h *Handle) Open(ctx context.Context) error {
	if !h.lc.Transition(conn.Uninitialized, conn.Opening) {
		return fmt.Errorf("redis handle %s: open in state %s", h.target, h.State())
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		_ = h.rdb.Close()
		h.lc.MarkClosed()
		return err
	}
	if !h.lc.Transition(conn.Opening, conn.Open) {
		// closed while the handshake was in flight
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
	err := h.rdb.Close()
	h.lc.MarkClosed()
	if errors.Is(err, goredis.ErrClosed) {
		return nil
	}
	return err
}

func (h *Handle) Get(ctx context.Context, key string) *future.Future[[]byte] {
	return run(h, func() ([]byte, error) {
		b, err := h.rdb.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return nil, nil // miss
		}
		return b, err
	})
}

func (h *Handle) Set(ctx context.Context, key string, value []byte, ttl time.Duration) *future.Future[struct{}] {
	if ttl < 0 {
		ttl = 0 // non-positive => no expiry
	}
	return run(h, func() (struct{}, error) {
		return struct{}{}, h.rdb.Set(ctx, key, value, ttl).Err()
	})
}

func (h *Handle) Del(ctx context.Context, keys ...string) *future.Future[int64] {
	if len(keys) == 0 {
		return future.Resolved[int64](0, nil)
	}
	return run(h, func() (int64, error) {
		return h.rdb.Del(ctx, keys...).Result()
	})
}

// Expire sets ttl on key. ttl <= 0 removes any expiry (PERSIST).
func (h *Handle) Expire(ctx context.Context, key string, ttl time.Duration) *future.Future[bool] {
	return run(h, func() (bool, error) {
		if ttl <= 0 {
			if _, err := h.rdb.Persist(ctx, key).Result(); err != nil {
				return false, err
			}
			return h.exists(ctx, key)
		}
		return h.rdb.Expire(ctx, key, ttl).Result()
	})
}

func (h *Handle) exists(ctx context.Context, key string) (bool, error) {
	n, err := h.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// run executes fn on its own goroutine as one in-flight request.
// A transport-level failure marks the handle lost so the gateway replaces it.
func run[T any](h *Handle, fn func() (T, error)) *future.Future[T] {
	f := future.New[T]()
	if err := h.lc.Begin(); err != nil {
		var zero T
		f.Complete(zero, err)
		return f
	}
	go func() {
		v, err := fn()
		h.lc.End()
		if err != nil && isTransportErr(err) {
			_ = h.Close(true)
		}
		f.Complete(v, err)
	}()
	return f
}

func isTransportErr(err error) bool {
	if errors.Is(err, goredis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && !ne.Timeout()
}
