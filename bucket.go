package bucketcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/bucketcache/conn"
	"github.com/unkn0wn-root/bucketcache/future"
	"github.com/unkn0wn-root/bucketcache/internal/keys"
	"github.com/unkn0wn-root/bucketcache/internal/wire"
	"github.com/unkn0wn-root/bucketcache/serializer"
)

// Bucket is a namespaced key-value facade over a Gateway.
//
// Strings and []byte values are stored as-is; any other value goes through the
// bucket's Serializer and is framed so reads only deserialize bytes this
// bucket's Set produced.
//
// Async accessors (GetString, GetRaw, Get) return immediately and invoke the
// callback exactly once, on whichever goroutine completes the request. On
// failure the callback receives the zero value AND a non-nil error: a caller
// that ignores the error sees zero values, not a panic.
type Bucket struct {
	name       string
	gw         *Gateway
	ser        serializer.Serializer
	log        Logger
	ownGateway bool
	closed     atomic.Bool
}

func (b *Bucket) Name() string { return b.name }

// Key returns the namespaced storage key for key. Idempotent.
func (b *Bucket) Key(key string) string { return keys.Namespace(b.name, key) }

// Set writes value under key. ttlSeconds > 0 sets an expiry; otherwise the key
// never expires.
func (b *Bucket) Set(ctx context.Context, key string, value any, ttlSeconds int) error {
	k := b.Key(key)
	raw, err := b.encode(value)
	if err != nil {
		return err
	}
	h, err := b.handle(ctx)
	if err != nil {
		return err
	}
	_, err = h.Set(ctx, k, raw, seconds(ttlSeconds)).Wait(ctx)
	return opErr("set", k, err)
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	return b.DeleteMany(ctx, []string{key})
}

// DeleteMany removes all keys in one request. Every key is namespaced first.
func (b *Bucket) DeleteMany(ctx context.Context, keyList []string) error {
	if len(keyList) == 0 {
		return nil
	}
	ks := keys.NamespaceAll(b.name, keyList)
	h, err := b.handle(ctx)
	if err != nil {
		return err
	}
	_, err = h.Del(ctx, ks...).Wait(ctx)
	return opErr("del", ks[0], err)
}

// Expire sets or overwrites the TTL of an existing key. A missing key is not
// an error. ttlSeconds <= 0 removes the expiry.
func (b *Bucket) Expire(ctx context.Context, key string, ttlSeconds int) error {
	k := b.Key(key)
	h, err := b.handle(ctx)
	if err != nil {
		return err
	}
	_, err = h.Expire(ctx, k, seconds(ttlSeconds)).Wait(ctx)
	return opErr("expire", k, err)
}

// GetStringSync returns "" when the key is absent.
func (b *Bucket) GetStringSync(ctx context.Context, key string) (string, error) {
	raw, err := b.GetRawSync(ctx, key)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (b *Bucket) GetString(ctx context.Context, key string, cb func(string, error)) {
	b.fetch(ctx, key).Then(func(raw []byte, err error) {
		if err != nil {
			cb("", err)
			return
		}
		cb(string(raw), nil)
	})
}

// GetRawSync returns nil when the key is absent.
func (b *Bucket) GetRawSync(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.fetch(ctx, key).Wait(ctx)
	if err != nil {
		return nil, opErr("get", b.Key(key), err)
	}
	return raw, nil
}

func (b *Bucket) GetRaw(ctx context.Context, key string, cb func([]byte, error)) {
	b.fetch(ctx, key).Then(cb)
}

// Close disposes the bucket. Requests already issued still complete; new ones
// fail with a *ConnectionError wrapping ErrBucketClosed. The gateway is closed
// (gracefully) only when the bucket owns it.
func (b *Bucket) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.ownGateway {
		return b.gw.Close(ctx)
	}
	return nil
}

// Get fetches key and deserializes it into T, delivering the outcome to cb.
// Deserialization is skipped when the fetch fails; cb then gets T's zero value
// and the fetch error. A missing key yields T's zero value and a nil error.
func Get[T any](ctx context.Context, b *Bucket, key string, cb func(T, error)) {
	k := b.Key(key)
	b.fetch(ctx, key).Then(func(raw []byte, err error) {
		if err != nil {
			var zero T
			cb(zero, err)
			return
		}
		cb(decode[T](b, k, raw))
	})
}

// GetSync is the blocking form of Get. T=string delegates to GetStringSync.
func GetSync[T any](ctx context.Context, b *Bucket, key string) (T, error) {
	var out T
	if p, ok := any(&out).(*string); ok {
		s, err := b.GetStringSync(ctx, key)
		*p = s
		return out, err
	}
	raw, err := b.GetRawSync(ctx, key)
	if err != nil {
		return out, err
	}
	return decode[T](b, b.Key(key), raw)
}

// fetch issues GET for key. Acquisition failures are delivered through the
// returned future so async callers never see them synchronously.
func (b *Bucket) fetch(ctx context.Context, key string) *future.Future[[]byte] {
	k := b.Key(key)
	h, err := b.handle(ctx)
	if err != nil {
		return future.Resolved[[]byte](nil, err)
	}
	out := future.New[[]byte]()
	h.Get(ctx, k).Then(func(raw []byte, err error) {
		out.Complete(raw, opErr("get", k, err))
	})
	return out
}

func (b *Bucket) handle(ctx context.Context) (conn.Handle, error) {
	if b.closed.Load() {
		return nil, &ConnectionError{Target: b.gw.Target().String(), Err: ErrBucketClosed}
	}
	return b.gw.Acquire(ctx)
}

func (b *Bucket) encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	payload, err := b.ser.Marshal(value)
	if err != nil {
		return nil, err
	}
	return wire.EncodeObject(payload), nil
}

// decode mirrors encode: strings and []byte bypass the serializer. Errors from
// the serializer (and wire.ErrCorrupt for foreign bytes) are returned unchanged.
func decode[T any](b *Bucket, storageKey string, raw []byte) (T, error) {
	var out T
	if raw == nil {
		return out, nil // miss
	}
	switch p := any(&out).(type) {
	case *string:
		*p = string(raw)
		return out, nil
	case *[]byte:
		*p = raw
		return out, nil
	}

	payload, err := wire.DecodeObject(raw)
	if err != nil {
		b.log.Debug("stored value is not a serialized object", Fields{"key": storageKey, "len": len(raw)})
		return out, err
	}
	if err := b.ser.Unmarshal(payload, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
