package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"127", 127, []byte{0x7F}},
		{"128", 128, []byte{0x80, 0x01}},
		{"16383", 16383, []byte{0xFF, 0x7F}},
		{"16384", 16384, []byte{0x80, 0x80, 0x01}},
		{"2097151", 2097151, []byte{0xFF, 0xFF, 0x7F}},
		{"2097152", 2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{"max", MaxVarInt, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendVarInt(nil, tt.value)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("AppendVarInt(%d) = %v, want %v", tt.value, got, tt.want)
			}
			if len(got) != VarIntSize(tt.value) {
				t.Fatalf("VarIntSize(%d) = %d, want %d", tt.value, VarIntSize(tt.value), len(got))
			}
			v, n, err := ParseVarInt(got)
			if err != nil {
				t.Fatalf("ParseVarInt: %v", err)
			}
			if v != tt.value || n != len(got) {
				t.Fatalf("ParseVarInt(%v) = (%d, %d), want (%d, %d)", got, v, n, tt.value, len(got))
			}
		})
	}
}

func TestVarIntIncomplete(t *testing.T) {
	_, _, err := ParseVarInt([]byte{0x80})
	var ie *IncompleteError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if ie.Needed < 1 {
		t.Fatalf("Needed must be >= 1, got %d", ie.Needed)
	}
}

func TestVarIntTooLong(t *testing.T) {
	_, _, err := ParseVarInt([]byte{0x80, 0x80, 0x80, 0x80, 0x01})
	var me *MalformedPacketError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedPacketError for 5-byte varint, got %v", err)
	}
}
