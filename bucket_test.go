package bucketcache

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/bucketcache/conn"
	"github.com/unkn0wn-root/bucketcache/conn/redis"
	"github.com/unkn0wn-root/bucketcache/conn/ristretto"
	"github.com/unkn0wn-root/bucketcache/internal/wire"
	"github.com/unkn0wn-root/bucketcache/serializer"
)

type profile struct {
	ID     string `msgpack:"id"`
	Visits int    `msgpack:"visits"`
}

// spySerializer counts calls so tests can prove strings/bytes bypass it.
type spySerializer struct {
	inner     serializer.Serializer
	marshal   atomic.Int32
	unmarshal atomic.Int32
}

func (s *spySerializer) Marshal(v any) ([]byte, error) {
	s.marshal.Add(1)
	return s.inner.Marshal(v)
}

func (s *spySerializer) Unmarshal(b []byte, v any) error {
	s.unmarshal.Add(1)
	return s.inner.Unmarshal(b, v)
}

func redisGateway(t *testing.T, m *miniredis.Miniredis) *Gateway {
	t.Helper()
	port, err := strconv.Atoi(m.Port())
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGateway(GatewayOptions{
		Resolve: StaticTarget(m.Host(), port),
		Dial:    redis.NewDialer(redis.Options{DialTimeout: time.Second}),
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func newRedisBucket(t *testing.T, name string, ser serializer.Serializer) (*Bucket, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	b, err := New(Options{Name: name, Gateway: redisGateway(t, m), Serializer: ser})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, m
}

func TestNewValidatesOptions(t *testing.T) {
	g, _ := NewGateway(GatewayOptions{Resolve: StaticTarget("h", 1), Dial: redis.NewDialer(redis.Options{})})
	defer g.Close(context.Background())

	if _, err := New(Options{Gateway: g}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("missing name: %v", err)
	}
	if _, err := New(Options{Name: "x"}); !errors.Is(err, ErrNilGateway) {
		t.Fatalf("missing gateway: %v", err)
	}
}

func TestKeyNamespacing(t *testing.T) {
	b, _ := newRedisBucket(t, "sessions", nil)
	for _, k := range []string{"abc", "sessions:abc", "x:y", ""} {
		once := b.Key(k)
		if once[:len("sessions:")] != "sessions:" {
			t.Fatalf("Key(%q)=%q lacks bucket prefix", k, once)
		}
		if b.Key(once) != once {
			t.Fatalf("Key not idempotent for %q", k)
		}
	}
	if got := b.Key("abc"); got != "sessions:abc" {
		t.Fatalf("Key(abc)=%q", got)
	}
}

func TestSessionsScenario(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "sessions", nil)

	if err := b.Set(ctx, "abc", "hello", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := m.Get("sessions:abc"); err != nil || got != "hello" {
		t.Fatalf("stored raw value=%q err=%v", got, err)
	}
	got, err := b.GetStringSync(ctx, "abc")
	if err != nil || got != "hello" {
		t.Fatalf("GetStringSync: got=%q err=%v", got, err)
	}

	if err := b.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = b.GetStringSync(ctx, "abc")
	if err != nil || got != "" {
		t.Fatalf("after delete: got=%q err=%v want empty,nil", got, err)
	}
}

func TestCounterScenario(t *testing.T) {
	ctx := context.Background()
	b, _ := newRedisBucket(t, "stats", serializer.Msgpack{})

	if err := b.Set(ctx, "counter", 42, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	n, err := GetSync[int](ctx, b, "counter")
	if err != nil || n != 42 {
		t.Fatalf("GetSync[int]: n=%d err=%v", n, err)
	}
}

func TestStringsAndBytesBypassSerializer(t *testing.T) {
	ctx := context.Background()
	spy := &spySerializer{inner: serializer.Msgpack{}}
	b, m := newRedisBucket(t, "b", spy)

	if err := b.Set(ctx, "s", "plain", 0); err != nil {
		t.Fatal(err)
	}
	raw := []byte{0, 1, 2, 0xff}
	if err := b.Set(ctx, "raw", raw, 0); err != nil {
		t.Fatal(err)
	}

	if s, err := b.GetStringSync(ctx, "s"); err != nil || s != "plain" {
		t.Fatalf("GetStringSync: %q %v", s, err)
	}
	if got, err := b.GetRawSync(ctx, "raw"); err != nil || string(got) != string(raw) {
		t.Fatalf("GetRawSync: %x %v", got, err)
	}
	if s, err := GetSync[string](ctx, b, "s"); err != nil || s != "plain" {
		t.Fatalf("GetSync[string]: %q %v", s, err)
	}
	if got, err := GetSync[[]byte](ctx, b, "raw"); err != nil || string(got) != string(raw) {
		t.Fatalf("GetSync[[]byte]: %x %v", got, err)
	}
	if stored, _ := m.Get("b:raw"); stored != string(raw) {
		t.Fatalf("raw bytes were transformed on write: %x", stored)
	}
	if spy.marshal.Load() != 0 || spy.unmarshal.Load() != 0 {
		t.Fatalf("serializer used for string/bytes: marshal=%d unmarshal=%d",
			spy.marshal.Load(), spy.unmarshal.Load())
	}
}

func TestObjectRoundTripSyncAndAsync(t *testing.T) {
	ctx := context.Background()
	for name, ser := range map[string]serializer.Serializer{
		"msgpack": serializer.Msgpack{},
		"json":    serializer.JSON{},
		"cbor":    serializer.MustCBOR(true),
	} {
		t.Run(name, func(t *testing.T) {
			b, _ := newRedisBucket(t, "users", ser)
			in := profile{ID: "u1", Visits: 7}
			if err := b.Set(ctx, "u1", in, 0); err != nil {
				t.Fatalf("Set: %v", err)
			}

			got, err := GetSync[profile](ctx, b, "u1")
			if err != nil || got != in {
				t.Fatalf("GetSync: got=%+v err=%v", got, err)
			}

			done := make(chan profile, 1)
			Get(ctx, b, "u1", func(p profile, err error) {
				if err != nil {
					t.Errorf("Get callback err: %v", err)
				}
				done <- p
			})
			select {
			case p := <-done:
				if p != in {
					t.Fatalf("async got %+v", p)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("callback never fired")
			}
		})
	}
}

func TestMissingKeyYieldsZeroValues(t *testing.T) {
	ctx := context.Background()
	b, _ := newRedisBucket(t, "b", nil)

	if raw, err := b.GetRawSync(ctx, "nope"); err != nil || raw != nil {
		t.Fatalf("GetRawSync miss: %v %v", raw, err)
	}
	if p, err := GetSync[profile](ctx, b, "nope"); err != nil || p != (profile{}) {
		t.Fatalf("GetSync miss: %+v %v", p, err)
	}
	done := make(chan error, 1)
	Get(ctx, b, "nope", func(n int, err error) {
		if n != 0 {
			t.Errorf("async miss n=%d", n)
		}
		done <- err
	})
	if err := <-done; err != nil {
		t.Fatalf("async miss err: %v", err)
	}
}

func TestSetTTL(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", nil)

	if err := b.Set(ctx, "short", "x", 2); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, "zero", "y", 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, "negative", "z", -5); err != nil {
		t.Fatal(err)
	}
	if ttl := m.TTL("b:short"); ttl != 2*time.Second {
		t.Fatalf("ttl=%v want 2s", ttl)
	}

	m.FastForward(3 * time.Second)
	if s, _ := b.GetStringSync(ctx, "short"); s != "" {
		t.Fatalf("expected expiry, got %q", s)
	}

	m.FastForward(24 * time.Hour)
	for _, k := range []string{"zero", "negative"} {
		if s, err := b.GetStringSync(ctx, k); err != nil || s == "" {
			t.Fatalf("%s should never expire: %q %v", k, s, err)
		}
	}
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", nil)

	if err := b.Expire(ctx, "missing", 10); err != nil {
		t.Fatalf("Expire on missing key should not fail: %v", err)
	}
	if err := b.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Expire(ctx, "k", 5); err != nil {
		t.Fatal(err)
	}
	if ttl := m.TTL("b:k"); ttl != 5*time.Second {
		t.Fatalf("ttl=%v want 5s", ttl)
	}
	if err := b.Expire(ctx, "k", 30); err != nil {
		t.Fatal(err)
	}
	if ttl := m.TTL("b:k"); ttl != 30*time.Second {
		t.Fatalf("ttl not overwritten: %v", ttl)
	}
}

func TestDeleteManyNamespacesEveryKey(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", nil)

	for _, k := range []string{"a", "c", "keep"} {
		if err := b.Set(ctx, k, "v", 0); err != nil {
			t.Fatal(err)
		}
	}
	// un-namespaced keys with the same names must survive a bucket delete
	if err := m.Set("a", "outside"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("c", "outside"); err != nil {
		t.Fatal(err)
	}

	in := []string{"a", "b:c"}
	if err := b.DeleteMany(ctx, in); err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if in[0] != "a" || in[1] != "b:c" {
		t.Fatalf("caller slice mutated: %v", in)
	}
	if m.Exists("b:a") || m.Exists("b:c") {
		t.Fatalf("namespaced keys not removed")
	}
	if !m.Exists("a") || !m.Exists("c") {
		t.Fatalf("keys outside the bucket were removed")
	}
	if !m.Exists("b:keep") {
		t.Fatalf("unrelated bucket key removed")
	}
	if err := b.DeleteMany(ctx, nil); err != nil {
		t.Fatalf("empty DeleteMany: %v", err)
	}
}

func TestForeignBytesAreNotDeserialized(t *testing.T) {
	ctx := context.Background()
	spy := &spySerializer{inner: serializer.Msgpack{}}
	b, m := newRedisBucket(t, "b", spy)

	if err := m.Set("b:foreign", "written by someone else"); err != nil {
		t.Fatal(err)
	}
	_, err := GetSync[profile](ctx, b, "foreign")
	if !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("want wire.ErrCorrupt, got %v", err)
	}
	if spy.unmarshal.Load() != 0 {
		t.Fatalf("serializer was handed foreign bytes")
	}
}

func TestDeserializationFailurePropagatesUnchanged(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", serializer.JSON{})

	if err := m.Set("b:bad", string(wire.EncodeObject([]byte("{not json")))); err != nil {
		t.Fatal(err)
	}
	_, err := GetSync[profile](ctx, b, "bad")
	var de *serializer.DecodeError
	if !errors.As(err, &de) || de.Format != "json" {
		t.Fatalf("want *serializer.DecodeError, got %v", err)
	}
	if errors.Is(err, ErrStoreOperation) || errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("decode failure must not be re-labelled: %v", err)
	}
}

func TestStoreErrorIsOperationError(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", nil)

	if _, err := m.Lpush("b:list", "x"); err != nil {
		t.Fatal(err)
	}
	_, err := b.GetStringSync(ctx, "list")
	var oe *OperationError
	if !errors.Is(err, ErrStoreOperation) || !errors.As(err, &oe) {
		t.Fatalf("want OperationError, got %v", err)
	}
	if oe.Op != "get" || oe.Key != "b:list" {
		t.Fatalf("unexpected OperationError: %+v", oe)
	}

	done := make(chan error, 1)
	b.GetString(ctx, "list", func(s string, err error) {
		if s != "" {
			t.Errorf("failed callback carried a value: %q", s)
		}
		done <- err
	})
	if err := <-done; !errors.Is(err, ErrStoreOperation) {
		t.Fatalf("async: want OperationError, got %v", err)
	}
}

func TestAsyncDeliversConnectionFailureThroughCallback(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	port, _ := strconv.Atoi(m.Port())
	host := m.Host()
	m.Close()

	g, err := NewGateway(GatewayOptions{
		Resolve:     StaticTarget(host, port),
		Dial:        redis.NewDialer(redis.Options{DialTimeout: 200 * time.Millisecond}),
		OpenTimeout: time.Second,
		Reconnect:   ReconnectPolicy{Disabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Options{Name: "b", Gateway: g, CloseGateway: true})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(ctx)

	done := make(chan error, 1)
	b.GetRaw(ctx, "k", func(raw []byte, err error) {
		if raw != nil {
			t.Errorf("failed callback carried bytes")
		}
		done <- err
	})
	if err := <-done; !errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("want ConnectionError, got %v", err)
	}
	if err := b.Set(ctx, "k", "v", 0); !errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("sync Set: want ConnectionError, got %v", err)
	}
}

func TestDisposeLetsPendingOperationsFinish(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	g := redisGateway(t, m)
	b, err := New(Options{Name: "b", Gateway: g, CloseGateway: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}

	done := make(chan string, 1)
	b.GetString(ctx, "k", func(s string, err error) {
		if err != nil {
			t.Errorf("pending op failed after dispose: %v", err)
		}
		done <- s
	})
	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case s := <-done:
		if s != "v" {
			t.Fatalf("pending op got %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pending callback never fired after dispose")
	}

	_, err = b.GetStringSync(ctx, "k")
	if !errors.Is(err, ErrConnectionFailure) || !errors.Is(err, ErrBucketClosed) {
		t.Fatalf("op after dispose: %v", err)
	}
	if _, err := g.Acquire(ctx); !errors.Is(err, ErrGatewayClosed) {
		t.Fatalf("owned gateway not closed: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSharedGatewayOutlivesNonOwningBucket(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	g := redisGateway(t, m)

	users, _ := New(Options{Name: "users", Gateway: g})
	carts, _ := New(Options{Name: "carts", Gateway: g})

	if err := users.Set(ctx, "1", "alice", 0); err != nil {
		t.Fatal(err)
	}
	if err := carts.Set(ctx, "1", "3 items", 0); err != nil {
		t.Fatal(err)
	}
	if err := users.Close(ctx); err != nil {
		t.Fatal(err)
	}

	s, err := carts.GetStringSync(ctx, "1")
	if err != nil || s != "3 items" {
		t.Fatalf("sibling bucket broken by Close: %q %v", s, err)
	}
}

func TestBucketSurvivesServerRestart(t *testing.T) {
	ctx := context.Background()
	b, m := newRedisBucket(t, "b", nil)

	if err := b.Set(ctx, "k", "v1", 0); err != nil {
		t.Fatal(err)
	}
	m.Close()
	if _, err := b.GetStringSync(ctx, "k"); err == nil {
		t.Fatalf("read against a stopped server should fail")
	}
	if err := m.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	var got string
	waitFor(t, "repaired connection", func() bool {
		if err := b.Set(ctx, "k", "v2", 0); err != nil {
			return false
		}
		got, _ = b.GetStringSync(ctx, "k")
		return true
	})
	if got != "v2" {
		t.Fatalf("after restart got %q", got)
	}
}

func TestOpenConvenience(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	port, _ := strconv.Atoi(m.Port())

	b, err := Open("sessions", m.Host(), port)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.Set(ctx, "abc", "hello", 0); err != nil {
		t.Fatal(err)
	}
	if s, _ := b.GetStringSync(ctx, "abc"); s != "hello" {
		t.Fatalf("got %q", s)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := b.gw.Acquire(ctx); !errors.Is(err, ErrGatewayClosed) {
		t.Fatalf("Open-built bucket must own its gateway: %v", err)
	}
}

func TestRistrettoBackedBucket(t *testing.T) {
	ctx := context.Background()
	g, err := NewGateway(GatewayOptions{
		Resolve: StaticTarget("local", 0),
		Dial:    ristretto.NewDialer(ristretto.Config{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Options{Name: "local", Gateway: g, CloseGateway: true})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(ctx)

	if err := b.Set(ctx, "p", profile{ID: "x", Visits: 1}, 0); err != nil {
		t.Fatal(err)
	}
	p, err := GetSync[profile](ctx, b, "p")
	if err != nil || p.ID != "x" {
		t.Fatalf("got %+v %v", p, err)
	}
	if err := b.Delete(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if p, err := GetSync[profile](ctx, b, "p"); err != nil || p != (profile{}) {
		t.Fatalf("after delete: %+v %v", p, err)
	}
	h, _ := g.Acquire(ctx)
	if h.State() != conn.Open {
		t.Fatalf("state=%s", h.State())
	}
}
