package serializer

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes proto.Message values. Unmarshal accepts either a message
// pointer or a pointer to a (possibly nil) message pointer, so generic callers
// can pass &v for v of type *mypb.User.
type Protobuf struct{}

var _ Serializer = Protobuf{}

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("serializer protobuf: %T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Unmarshal(b []byte, v any) error {
	m, err := messageOf(v)
	if err != nil {
		return &DecodeError{Format: "protobuf", Err: err}
	}
	return decodeErr("protobuf", proto.Unmarshal(b, m))
}

func messageOf(v any) (proto.Message, error) {
	if m, ok := v.(proto.Message); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%T is not a proto.Message destination", v)
	}
	inner := rv.Elem()
	if inner.IsNil() {
		inner.Set(reflect.New(inner.Type().Elem()))
	}
	m, ok := inner.Interface().(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%T is not a proto.Message destination", v)
	}
	return m, nil
}
