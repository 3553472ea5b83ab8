package serializer

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values with vmihailenco/msgpack/v5. It is the default
// bucket serializer. The zero value is ready to use.
//
// Use `msgpack:"fieldName"` tags if you need explicit control over field names.
type Msgpack struct{}

var _ Serializer = Msgpack{}

func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack) Unmarshal(b []byte, v any) error {
	return decodeErr("msgpack", msgpack.Unmarshal(b, v))
}
