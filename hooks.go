package bucketcache

// Hooks are lightweight callbacks for connection lifecycle events.
// Implementations MUST be cheap and non-blocking: the gateway calls them while
// holding its replacement lock. Wrap slow sinks with hooks/async.
type Hooks interface {
	// A new handle is about to be dialed for target.
	Connecting(target string)
	// The handle for target finished its handshake.
	Connected(target string)
	// Resolve, dial, or open failed.
	ConnectFailed(target string, err error)
	// The current handle closed without the gateway asking it to.
	ConnectionLost(target string)
	// The reconnect supervisor restored the connection after attempts tries.
	Reconnected(target string, attempts int)
	// The reconnect supervisor stopped after attempts tries.
	ReconnectGaveUp(target string, attempts int, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Connecting(string)                  {}
func (NopHooks) Connected(string)                   {}
func (NopHooks) ConnectFailed(string, error)        {}
func (NopHooks) ConnectionLost(string)              {}
func (NopHooks) Reconnected(string, int)            {}
func (NopHooks) ReconnectGaveUp(string, int, error) {}
