package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// ParseU16 reads a big-endian uint16 from the start of buf.
func ParseU16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, incomplete(2 - len(buf))
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}

// AppendU16 appends v as a big-endian uint16.
func AppendU16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// ParseU32 reads a big-endian uint32 from the start of buf.
func ParseU32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, incomplete(4 - len(buf))
	}
	return binary.BigEndian.Uint32(buf), 4, nil
}

// AppendU32 appends v as a big-endian uint32.
func AppendU32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// ParseBool reads a single byte that MUST be 0 or 1.
func ParseBool(buf []byte) (bool, int, error) {
	if len(buf) < 1 {
		return false, 0, incomplete(1)
	}
	switch buf[0] {
	case 0:
		return false, 1, nil
	case 1:
		return true, 1, nil
	default:
		return false, 0, malformed("boolean byte must be 0 or 1, got 0x%02x", buf[0])
	}
}

// AppendBool appends v as a single 0/1 byte.
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// ParseString reads a u16-length-prefixed UTF-8 string. Invalid UTF-8 is a
// MalformedPacketError. Control characters (U+0001..U+001F, U+007F..U+009F)
// are NOT rejected here for MQTT v5 — see wire/v3 for the legacy decoder,
// which does reject them, per spec.
func ParseString(buf []byte) (string, int, error) {
	l, n, err := ParseU16(buf)
	if err != nil {
		return "", 0, err
	}
	total := n + int(l)
	if len(buf) < total {
		return "", 0, incomplete(total - len(buf))
	}
	s := buf[n:total]
	if !utf8.Valid(s) {
		return "", 0, malformed("string is not valid UTF-8")
	}
	return string(s), total, nil
}

// AppendString appends s as a u16-length-prefixed UTF-8 string.
func AppendString(dst []byte, s string) []byte {
	dst = AppendU16(dst, uint16(len(s)))
	return append(dst, s...)
}

// StringSize returns the on-wire size of s as an MQTT string.
func StringSize(s string) int {
	return 2 + len(s)
}

// ParseBinary reads a u16-length-prefixed opaque byte slice. The returned
// slice aliases buf; callers that retain it past the lifetime of buf must
// copy it themselves.
func ParseBinary(buf []byte) ([]byte, int, error) {
	l, n, err := ParseU16(buf)
	if err != nil {
		return nil, 0, err
	}
	total := n + int(l)
	if len(buf) < total {
		return nil, 0, incomplete(total - len(buf))
	}
	return buf[n:total], total, nil
}

// AppendBinary appends b as a u16-length-prefixed opaque byte slice.
func AppendBinary(dst []byte, b []byte) []byte {
	dst = AppendU16(dst, uint16(len(b)))
	return append(dst, b...)
}

// BinarySize returns the on-wire size of b as MQTT binary data.
func BinarySize(b []byte) int {
	return 2 + len(b)
}
