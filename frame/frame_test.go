package frame

import (
	"bytes"
	"testing"

	"github.com/cloudmqtt/enginego/wire"
)

func TestDecodeWaitsForFixedHeader(t *testing.T) {
	var d Decoder
	d.Feed([]byte{0xC0}) // PINGREQ type/flags byte only, no remaining-length byte yet
	pkt, ok, err := d.Decode()
	if err != nil || ok || pkt != nil {
		t.Fatalf("expected (nil, false, nil), got (%v, %v, %v)", pkt, ok, err)
	}
}

func TestDecodeWaitsForRemainingLengthBytes(t *testing.T) {
	var d Decoder
	// A multi-byte remaining length whose continuation bit is set but whose
	// terminating byte hasn't arrived yet.
	d.Feed([]byte{0x30, 0x80})
	pkt, ok, err := d.Decode()
	if err != nil || ok || pkt != nil {
		t.Fatalf("expected (nil, false, nil), got (%v, %v, %v)", pkt, ok, err)
	}
}

func TestDecodeWaitsForPayload(t *testing.T) {
	full := wire.Encode(wire.PublishPacket{Topic: "t", Payload: []byte("hello")})
	var d Decoder
	d.Feed(full[:len(full)-1])
	pkt, ok, err := d.Decode()
	if err != nil || ok || pkt != nil {
		t.Fatalf("expected (nil, false, nil) with one byte missing, got (%v, %v, %v)", pkt, ok, err)
	}
	d.Feed(full[len(full)-1:])
	pkt, ok, err = d.Decode()
	if err != nil || !ok {
		t.Fatalf("expected a complete decode once the last byte arrives: %v %v", ok, err)
	}
	got := pkt.(wire.PublishPacket)
	if got.Topic != "t" || string(got.Payload) != "hello" {
		t.Fatalf("unexpected packet: %+v", got)
	}
}

func TestDecodeSplitsBackToBackPackets(t *testing.T) {
	var d Decoder
	a := wire.Encode(wire.PingreqPacket{})
	b := wire.Encode(wire.DisconnectPacket{Reason: wire.NormalDisconnection})
	d.Feed(append(append([]byte{}, a...), b...))

	pkt1, ok, err := d.Decode()
	if err != nil || !ok {
		t.Fatalf("expected first packet decoded: %v %v", ok, err)
	}
	if _, isPingreq := pkt1.(wire.PingreqPacket); !isPingreq {
		t.Fatalf("expected PingreqPacket, got %T", pkt1)
	}

	pkt2, ok, err := d.Decode()
	if err != nil || !ok {
		t.Fatalf("expected second packet decoded: %v %v", ok, err)
	}
	if dp, isDisconnect := pkt2.(wire.DisconnectPacket); !isDisconnect || dp.Reason != wire.NormalDisconnection {
		t.Fatalf("expected DisconnectPacket, got %+v", pkt2)
	}

	if d.Pending() != 0 {
		t.Fatalf("expected no bytes left buffered, got %d", d.Pending())
	}
}

// TestDecodeReturnedPacketSurvivesBufferReuse verifies the "never returns a
// parse tree that outlives its backing buffer" guarantee: reusing the byte
// slice passed to Feed must not corrupt an already-decoded packet.
func TestDecodeReturnedPacketSurvivesBufferReuse(t *testing.T) {
	var d Decoder
	src := wire.Encode(wire.PublishPacket{Topic: "t", Payload: []byte("hello")})
	scratch := make([]byte, len(src))
	copy(scratch, src)
	d.Feed(scratch)

	pkt, ok, err := d.Decode()
	if err != nil || !ok {
		t.Fatalf("expected a decode: %v %v", ok, err)
	}

	// Corrupt the original slice; the decoded packet must be unaffected
	// since Decode copies before parsing.
	for i := range scratch {
		scratch[i] = 0xFF
	}

	got := pkt.(wire.PublishPacket)
	if got.Topic != "t" || string(got.Payload) != "hello" {
		t.Fatalf("decoded packet was corrupted by reusing the fed buffer: %+v", got)
	}
}

func TestDecodeOnMalformedRemainingLengthIsFatal(t *testing.T) {
	var d Decoder
	// Five continuation bytes: an over-long variable byte integer.
	d.Feed([]byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	_, ok, err := d.Decode()
	if ok || err == nil {
		t.Fatalf("expected a fatal parse error, got ok=%v err=%v", ok, err)
	}
	if _, isMalformed := err.(*wire.MalformedPacketError); !isMalformed {
		t.Fatalf("expected *wire.MalformedPacketError, got %T", err)
	}
}

func TestDecodeWaitsWhileRemainingLengthPromisesMoreBytes(t *testing.T) {
	var d Decoder
	// CONNECT (type 1, flags must be 0) declaring 10 bytes of remaining
	// length but only 4 have arrived.
	d.Feed([]byte{0x10, 0x0A, 0x00, 0x04})
	_, ok, err := d.Decode()
	if ok || err != nil {
		t.Fatalf("expected (false, nil) while short of the declared length, got (%v, %v)", ok, err)
	}
	if d.Pending() != 4 {
		t.Fatalf("expected the adapter to retain all 4 fed bytes while waiting, got %d", d.Pending())
	}
}

// TestDecodeOnMalformedPacketBodyIsFatal covers a full, correctly-framed
// packet whose body itself is invalid per the MQTT spec: once complete
// bytes for the declared remaining length are in hand, a bad protocol name
// must surface as a definitive error, not as "need more".
func TestDecodeOnMalformedPacketBodyIsFatal(t *testing.T) {
	var d Decoder
	// CONNECT, remaining length 10: a 6-byte length-prefixed string "MQTX"
	// (invalid protocol name) + level + flags + 2-byte keep-alive.
	d.Feed([]byte{0x10, 0x0A, 0x00, 0x04, 'M', 'Q', 'T', 'X', 0x05, 0x00, 0x00, 0x00})
	_, ok, err := d.Decode()
	if ok || err == nil {
		t.Fatalf("expected a fatal parse error, got ok=%v err=%v", ok, err)
	}
	if _, isMalformed := err.(*wire.MalformedPacketError); !isMalformed {
		t.Fatalf("expected *wire.MalformedPacketError, got %T: %v", err, err)
	}
}

func TestFeedAccumulatesAcrossMultipleReads(t *testing.T) {
	full := wire.Encode(wire.PublishPacket{Topic: "a/b", Payload: bytes.Repeat([]byte{1}, 50)})
	var d Decoder
	var decoded wire.Packet
	for i, b := range full {
		d.Feed([]byte{b})
		pkt, ok, err := d.Decode()
		if err != nil {
			t.Fatalf("unexpected error mid-stream at byte %d: %v", i, err)
		}
		if ok {
			decoded = pkt
		}
	}
	if decoded == nil {
		t.Fatal("expected the packet to be complete after feeding every byte")
	}
	got := decoded.(wire.PublishPacket)
	if got.Topic != "a/b" || len(got.Payload) != 50 {
		t.Fatalf("unexpected packet: %+v", got)
	}
}
