// Package serializer holds the pluggable value codecs used by buckets for
// anything that is not a string or a raw byte slice.
//
// Serializers are stateless and safe for concurrent use. Unmarshal always takes
// a pointer to the destination.
package serializer

import "fmt"

// Serializer converts values to bytes and back.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// DecodeError reports bytes that could not be converted to the requested shape.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("serializer %s: decode: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(format string, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{Format: format, Err: err}
}
