package conn

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotOpen is returned for requests issued before the handshake completed.
var ErrNotOpen = errors.New("conn: handle not open")

// Lifecycle is the state machine shared by Handle implementations. It tracks the
// current State, counts in-flight requests so a graceful close can drain them,
// and owns the closed-notification channel.
// The zero value is NOT ready to use. Construct with NewLifecycle.
type Lifecycle struct {
	state atomic.Int32

	mu       sync.Mutex // orders inflight.Add against the Closing transition
	inflight sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{closed: make(chan struct{})}
}

func (l *Lifecycle) State() State { return State(l.state.Load()) }

func (l *Lifecycle) Closed() <-chan struct{} { return l.closed }

// Transition moves from -> to atomically and reports whether it happened.
func (l *Lifecycle) Transition(from, to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.CompareAndSwap(int32(from), int32(to))
}

// Begin registers an in-flight request. It fails with ErrNotOpen or ErrClosed
// unless the handle is Open. Every successful Begin must be paired with End.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State() {
	case Open:
		l.inflight.Add(1)
		return nil
	case Uninitialized, Opening:
		return ErrNotOpen
	default:
		return ErrClosed
	}
}

func (l *Lifecycle) End() { l.inflight.Done() }

// BeginClose moves the handle to Closing. It returns false if the handle is
// already Closing or Closed, in which case the caller must not release anything.
func (l *Lifecycle) BeginClose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State() {
	case Closing, Closed:
		return false
	}
	l.state.Store(int32(Closing))
	return true
}

// Drain waits for in-flight requests. Only valid after BeginClose.
func (l *Lifecycle) Drain() { l.inflight.Wait() }

// MarkClosed moves the handle to Closed and fires the closed notification once.
func (l *Lifecycle) MarkClosed() {
	l.state.Store(int32(Closed))
	l.closeOnce.Do(func() { close(l.closed) })
}
