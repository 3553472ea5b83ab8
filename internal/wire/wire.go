package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindObject byte = 1

	hdrLen = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("bucketcache: corrupt entry")
	magic4     = [...]byte{'B', 'K', 'T', 'V'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// IsObject reports whether b looks like a framed object (header only, no length check).
func IsObject(b []byte) bool {
	return len(b) >= hdrLen && hasMagic(b) && b[4] == version && b[5] == kindObject
}

// Object: magic(4) | ver(1) | kind(1=object) | vlen(u32 be) | payload(vlen)
func EncodeObject(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindObject)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeObject returns the serializer payload of a framed object. Foreign,
// truncated, or padded bytes are rejected with ErrCorrupt.
func DecodeObject(b []byte) ([]byte, error) {
	if !IsObject(b) {
		return nil, ErrCorrupt
	}
	off := 6
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return nil, ErrCorrupt
	}
	return b[off : off+vlen], nil
}
