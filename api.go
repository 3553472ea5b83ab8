package bucketcache

import (
	"github.com/unkn0wn-root/bucketcache/conn/redis"
	"github.com/unkn0wn-root/bucketcache/serializer"
)

// Options configure a Bucket. Only Name and Gateway are required.
type Options struct {
	// Required
	Name    string   // key namespace, e.g. "sessions"; keys are stored as "<Name>:<key>"
	Gateway *Gateway // connection owner; may be shared by buckets on the same endpoint

	Serializer serializer.Serializer // non-string/non-[]byte values; nil => serializer.Msgpack{}
	Logger     Logger                // if nil, NopLogger is used

	// CloseGateway makes Bucket.Close also close the gateway.
	// Set true only if this bucket exclusively owns the gateway.
	CloseGateway bool
}

func New(opts Options) (*Bucket, error) {
	if opts.Name == "" {
		return nil, ErrNameRequired
	}
	if opts.Gateway == nil {
		return nil, ErrNilGateway
	}
	return &Bucket{
		name:       opts.Name,
		gw:         opts.Gateway,
		ser:        coalesce[serializer.Serializer](opts.Serializer, serializer.Msgpack{}),
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		ownGateway: opts.CloseGateway,
	}, nil
}

// Open returns a bucket with its own redis gateway for host:port, using
// default timeouts and reconnect policy. Closing the bucket closes the gateway.
// No connection is made until the first operation.
func Open(name, host string, port int) (*Bucket, error) {
	gw, err := NewGateway(GatewayOptions{
		Resolve: StaticTarget(host, port),
		Dial:    redis.NewDialer(redis.Options{}),
	})
	if err != nil {
		return nil, err
	}
	return New(Options{Name: name, Gateway: gw, CloseGateway: true})
}
