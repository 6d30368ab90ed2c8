package v3

import (
	"testing"

	"github.com/cloudmqtt/enginego/wire"
)

func TestParseConnectMinimal(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "MQTT")
	body = append(body, 4) // protocol level
	body = append(body, connectFlagCleanSess)
	body = wire.AppendU16(body, 30)
	body = wire.AppendString(body, "client-1")

	p, err := ParseConnect(body)
	if err != nil {
		t.Fatalf("ParseConnect: %v", err)
	}
	if p.ProtocolLevel != 4 || !p.CleanSession || p.KeepAlive != 30 || p.ClientIdentifier != "client-1" {
		t.Fatalf("unexpected result: %+v", p)
	}
}

func TestParseConnectWithWillAndCredentials(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "MQIsdp")
	body = append(body, 3)
	flags := byte(connectFlagCleanSess | connectFlagWillFlag | connectFlagWillRetain | connectFlagUsername | connectFlagPassword)
	flags |= 1 << connectFlagWillShift // will QoS 1
	body = append(body, flags)
	body = wire.AppendU16(body, 60)
	body = wire.AppendString(body, "c2")
	body = wire.AppendString(body, "last/will")
	body = wire.AppendBinary(body, []byte("bye"))
	body = wire.AppendString(body, "user")
	body = wire.AppendBinary(body, []byte("pass"))

	p, err := ParseConnect(body)
	if err != nil {
		t.Fatalf("ParseConnect: %v", err)
	}
	if p.WillTopic != "last/will" || string(p.WillPayload) != "bye" || p.WillQoS != 1 || !p.WillRetain {
		t.Fatalf("will mismatch: %+v", p)
	}
	if p.Username == nil || *p.Username != "user" || p.Password == nil || *p.Password != "pass" {
		t.Fatalf("credentials mismatch: %+v", p)
	}
}

func TestParseConnectRejectsControlCharsInClientID(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "MQTT")
	body = append(body, 4)
	body = append(body, connectFlagCleanSess)
	body = wire.AppendU16(body, 30)
	body = wire.AppendString(body, "bad\x01id")

	if _, err := ParseConnect(body); err == nil {
		t.Fatal("expected error for control character in client identifier")
	}
}

func TestParseConnectUnsupportedLevelIsProtocolError(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "MQTT")
	body = append(body, 5) // v5 level, out of scope for this decoder
	body = append(body, connectFlagCleanSess)
	body = wire.AppendU16(body, 0)
	body = wire.AppendString(body, "c")

	_, err := ParseConnect(body)
	if _, ok := err.(*wire.ProtocolError); !ok {
		t.Fatalf("expected *wire.ProtocolError, got %v (%T)", err, err)
	}
}

func TestParseConnackSessionPresent(t *testing.T) {
	sp, code, err := ParseConnack([]byte{0x01, 0x00})
	if err != nil {
		t.Fatalf("ParseConnack: %v", err)
	}
	if !sp || code != ConnectionAccepted {
		t.Fatalf("unexpected result: %v %v", sp, code)
	}
}

func TestParseConnackWrongLength(t *testing.T) {
	if _, _, err := ParseConnack([]byte{0x00}); err == nil {
		t.Fatal("expected error for short CONNACK body")
	}
}

func TestParsePublishQoS1(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "a/b")
	body = wire.AppendU16(body, 7)
	body = append(body, []byte("payload")...)

	p, err := ParsePublish(body, 0x02) // QoS 1, no dup/retain
	if err != nil {
		t.Fatalf("ParsePublish: %v", err)
	}
	if p.QoS != 1 || p.PacketID != 7 || p.Topic != "a/b" || string(p.Payload) != "payload" {
		t.Fatalf("unexpected result: %+v", p)
	}
}

func TestParsePublishQoS0HasNoPacketID(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "a/b")
	body = append(body, []byte("x")...)

	p, err := ParsePublish(body, 0x00)
	if err != nil {
		t.Fatalf("ParsePublish: %v", err)
	}
	if p.PacketID != 0 {
		t.Fatalf("expected zero packet id for QoS 0, got %d", p.PacketID)
	}
}

func TestParsePublishDupWithQoS0IsMalformed(t *testing.T) {
	var body []byte
	body = wire.AppendString(body, "a/b")
	_, err := ParsePublish(body, 0x08) // DUP set, QoS 0
	if err == nil {
		t.Fatal("expected error for DUP=1 with QoS 0")
	}
}

func TestParsePacketIDRoundTrip(t *testing.T) {
	id, err := ParsePacketID(wire.AppendU16(nil, 99))
	if err != nil || id != 99 {
		t.Fatalf("ParsePacketID: %v %v", id, err)
	}
	if _, err := ParsePacketID(wire.AppendU16(nil, 0)); err == nil {
		t.Fatal("expected error for zero packet identifier")
	}
}
