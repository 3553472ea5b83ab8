// Package bucketcache implements namespaced cache buckets over a remote
// key-value store, with the connection lifecycle (lazy connect, failure
// detection, reconnection) hidden behind a thread-safe Gateway.
//
// Components:
//   - Gateway: owns the single current conn.Handle for one logical target.
//     Acquire is lock-free while the handle is healthy and serializes repair
//     when it is not. A supervisor goroutine repairs lost connections with
//     exponential backoff.
//   - conn.Handle: one live connection to the store (conn/redis, conn/ristretto).
//   - Bucket: typed get/set/delete/expire under a "<name>:" key prefix.
//   - serializer.Serializer: encodes values that are neither string nor []byte
//     (msgpack by default).
//
// Keys:
//
//	<bucket>:<key>  - every key, including each key of a batch delete
//
// Values:
//
//	string, []byte  - stored as-is
//	anything else   - serializer output, framed so that only values written
//	                  by a bucket are ever handed to the serializer
//
// Usage:
//
//	gw, _ := bucketcache.NewGateway(bucketcache.GatewayOptions{
//	    Resolve: bucketcache.StaticTarget("localhost", 6379),
//	    Dial:    redis.NewDialer(redis.Options{}),
//	})
//	sessions, _ := bucketcache.New(bucketcache.Options{Name: "sessions", Gateway: gw})
//	_ = sessions.Set(ctx, "abc", "hello", 3600)
//	s, _ := sessions.GetStringSync(ctx, "abc")
//	n, _ := bucketcache.GetSync[int](ctx, stats, "counter")
//
// Every async accessor (GetString, GetRaw, Get) invokes its callback exactly
// once, on the goroutine that completed the request. Failures never panic and
// are never returned synchronously: the callback receives zero values and the
// error.
package bucketcache
