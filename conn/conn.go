// Package conn defines the connection handle consumed by bucketcache.
//
// A Handle is one live connection to a key-value store with an observable
// lifecycle. Handles are never repaired in place: once a handle leaves the
// Open/Opening states it is discarded and a fresh one is dialed by the gateway.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// []byte previously passed to Set for the same key.
package conn

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/unkn0wn-root/bucketcache/future"
)

// ErrClosed is returned for requests issued against a closing or closed handle.
var ErrClosed = errors.New("conn: handle closed")

type State int32

const (
	Uninitialized State = iota
	Opening
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Target is the endpoint a handle connects to.
type Target struct {
	Host string
	Port int
}

func (t Target) Addr() string { return net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) }

func (t Target) String() string { return t.Addr() }

// Handle is a single connection with lifecycle state and async request primitives.
// Must be safe for concurrent use.
type Handle interface {
	State() State

	// Open performs the handshake. Uninitialized -> Opening -> Open, or Closed on failure.
	Open(ctx context.Context) error

	// Close releases the connection. With abortPending=false in-flight requests
	// are allowed to finish first; with true they fail with ErrClosed.
	// Safe to call multiple times.
	Close(abortPending bool) error

	// Closed is closed once the handle reaches Closed, whether by Close or by
	// transport loss.
	Closed() <-chan struct{}

	// Get resolves to (nil, nil) on miss.
	Get(ctx context.Context, key string) *future.Future[[]byte]
	// Set stores value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) *future.Future[struct{}]
	// Del resolves to the number of keys removed.
	Del(ctx context.Context, keys ...string) *future.Future[int64]
	// Expire resolves to false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) *future.Future[bool]
}

// Dialer constructs a handle for target. It must not open it.
type Dialer func(ctx context.Context, target Target) (Handle, error)
