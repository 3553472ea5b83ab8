package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/bucketcache"
)

type recorder struct {
	bucketcache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) add(ev string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Connected(t string)                { r.add("connected " + t) }
func (r *recorder) ConnectFailed(t string, err error) { r.add("failed " + t + " " + err.Error()) }

func TestCloseDeliversQueuedEvents(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 1, 16)

	h.Connected("a:1")
	h.ConnectFailed("b:2", errors.New("refused"))
	h.Close()

	if len(rec.events) != 2 || rec.events[0] != "connected a:1" || rec.events[1] != "failed b:2 refused" {
		t.Fatalf("events: %v", rec.events)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// first event occupies the worker, second fills the queue
	for i := 0; i < 10; i++ {
		h.Connected("x:1")
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped=%d want >= 8", h.Dropped())
	}
	close(rec.block)
	h.Close()
}

func TestPostAfterCloseIsDropped(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 4)
	h.Close()
	h.Close()

	h.Connected("late:1")
	if h.Dropped() != 1 || len(rec.events) != 0 {
		t.Fatalf("dropped=%d events=%v", h.Dropped(), rec.events)
	}
}
