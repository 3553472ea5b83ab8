package serializer

import "fmt"

// Limit wraps another serializer to enforce a maximum payload size at
// Unmarshal time. Marshal is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared store.
type Limit struct {
	// Inner is the wrapped serializer. It must be set.
	Inner Serializer
	// MaxDecode is the maximum permitted payload length in bytes.
	MaxDecode int
}

func (l Limit) Marshal(v any) ([]byte, error) { return l.Inner.Marshal(v) }

func (l Limit) Unmarshal(b []byte, v any) error {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		return &DecodeError{Format: "limit", Err: fmt.Errorf("payload too large: %d > %d", len(b), l.MaxDecode)}
	}
	return l.Inner.Unmarshal(b, v)
}
