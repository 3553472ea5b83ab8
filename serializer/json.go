package serializer

import "encoding/json"

type JSON struct{}

var _ Serializer = JSON{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(b []byte, v any) error {
	return decodeErr("json", json.Unmarshal(b, v))
}
