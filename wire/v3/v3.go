// Package v3 decodes legacy MQTT v3.1.1 control packets.
//
// This package is decode-only: it exists so a v5 engine can recognize and
// reject (or, for CONNECT, bridge) a legacy client's opening packet rather
// than failing with an opaque malformed-packet error. It does not implement
// v3.1.1 session semantics, QoS flows, or encoding; full v3.1 parity is out
// of scope.
package v3

import (
	"unicode/utf8"

	"github.com/cloudmqtt/enginego/wire"
)

// Packet type nibbles, shared with v5 (the fixed header layout is unchanged
// between v3.1.1 and v5).
const (
	TypeConnect     = 1
	TypeConnack     = 2
	TypePublish     = 3
	TypePuback      = 4
	TypePubrec      = 5
	TypePubrel      = 6
	TypePubcomp     = 7
	TypeSubscribe   = 8
	TypeSuback      = 9
	TypeUnsubscribe = 10
	TypeUnsuback    = 11
	TypePingreq     = 12
	TypePingresp    = 13
	TypeDisconnect  = 14
)

// ConnackReturnCode is the CONNACK return-code namespace defined by
// v3.1.1 §3.2.2.3. It is a distinct, smaller enum than v5's ReasonCode.
type ConnackReturnCode uint8

const (
	ConnectionAccepted ConnackReturnCode = 0
	UnacceptableProtocolVersion ConnackReturnCode = 1
	IdentifierRejected          ConnackReturnCode = 2
	ServerUnavailable            ConnackReturnCode = 3
	BadUsernameOrPassword        ConnackReturnCode = 4
	NotAuthorized                ConnackReturnCode = 5
)

// ConnectPacket is a decoded v3.1.1 CONNECT. Will/username/password are
// carried as in v5 but without MQTT 5 properties.
type ConnectPacket struct {
	ProtocolName     string
	ProtocolLevel    uint8
	CleanSession     bool
	KeepAlive        uint16
	ClientIdentifier string
	WillTopic        string
	WillPayload      []byte
	WillQoS          uint8
	WillRetain       bool
	Username         *string
	Password         *string
}

const (
	connectFlagUsername    = 0x80
	connectFlagPassword    = 0x40
	connectFlagWillRetain  = 0x20
	connectFlagWillQoSMask = 0x18
	connectFlagWillShift   = 3
	connectFlagWillFlag    = 0x04
	connectFlagCleanSess   = 0x02
)

// controlCharsForbidden rejects the C0 control and U+007F-U+009F ranges
// that v3.1.1 explicitly excludes from UTF-8 encoded strings (§1.5.3). v5
// relaxes this; wire/v3 does not share string validation with wire for
// this reason.
func controlCharsForbidden(s string) bool {
	for _, r := range s {
		if r >= 0x0001 && r <= 0x001F {
			return true
		}
		if r >= 0x007F && r <= 0x009F {
			return true
		}
	}
	return false
}

func parseV3String(buf []byte) (string, int, error) {
	s, n, err := wire.ParseString(buf)
	if err != nil {
		return "", 0, err
	}
	if controlCharsForbidden(s) {
		return "", 0, &wire.MalformedPacketError{Reason: "v3.1.1 string contains a forbidden control character"}
	}
	if !utf8.ValidString(s) {
		return "", 0, &wire.MalformedPacketError{Reason: "string is not valid UTF-8"}
	}
	return s, n, nil
}

// ParseConnect decodes a v3.1.1 CONNECT variable header and payload. body
// must already exclude the fixed header (as returned by peeling off the
// remaining-length prefix).
func ParseConnect(body []byte) (*ConnectPacket, error) {
	name, n, err := wire.ParseString(body)
	if err != nil {
		return nil, err
	}
	off := n
	if name != "MQIsdp" && name != "MQTT" {
		return nil, &wire.MalformedPacketError{Reason: "unrecognized v3 protocol name " + name}
	}

	if len(body) < off+1 {
		return nil, &wire.MalformedPacketError{Reason: "truncated CONNECT: missing protocol level"}
	}
	level := body[off]
	off++
	if level != 3 && level != 4 {
		return nil, &wire.ProtocolError{Reason: "unsupported v3 protocol level"}
	}

	if len(body) < off+1 {
		return nil, &wire.MalformedPacketError{Reason: "truncated CONNECT: missing connect flags"}
	}
	flags := body[off]
	off++
	if flags&0x01 != 0 {
		return nil, &wire.MalformedPacketError{Reason: "CONNECT reserved flag bit must be 0"}
	}

	keepAlive, n, err := wire.ParseU16(body[off:])
	if err != nil {
		return nil, err
	}
	off += n

	clientID, n, err := parseV3String(body[off:])
	if err != nil {
		return nil, err
	}
	off += n

	p := &ConnectPacket{
		ProtocolName:     name,
		ProtocolLevel:    level,
		CleanSession:     flags&connectFlagCleanSess != 0,
		KeepAlive:        keepAlive,
		ClientIdentifier: clientID,
	}

	if flags&connectFlagWillFlag != 0 {
		topic, n, err := parseV3String(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		payload, n, err := wire.ParseBinary(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		p.WillTopic = topic
		p.WillPayload = append([]byte(nil), payload...)
		p.WillQoS = (flags & connectFlagWillQoSMask) >> connectFlagWillShift
		p.WillRetain = flags&connectFlagWillRetain != 0
		if p.WillQoS > 2 {
			return nil, &wire.MalformedPacketError{Reason: "will QoS out of range"}
		}
	} else if flags&(connectFlagWillQoSMask|connectFlagWillRetain) != 0 {
		return nil, &wire.MalformedPacketError{Reason: "will flags set without will flag"}
	}

	if flags&connectFlagUsername != 0 {
		u, n, err := parseV3String(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		p.Username = &u
	} else if flags&connectFlagPassword != 0 {
		return nil, &wire.MalformedPacketError{Reason: "password flag set without username flag"}
	}

	if flags&connectFlagPassword != 0 {
		pw, n, err := wire.ParseBinary(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		s := string(pw)
		p.Password = &s
	}

	if off != len(body) {
		return nil, &wire.MalformedPacketError{Reason: "trailing bytes after v3 CONNECT payload"}
	}

	return p, nil
}

// ParseConnack decodes a v3.1.1 CONNACK: one reserved-bits byte (only bit 0,
// session-present, is defined) and one return-code byte.
func ParseConnack(body []byte) (sessionPresent bool, code ConnackReturnCode, err error) {
	if len(body) != 2 {
		return false, 0, &wire.MalformedPacketError{Reason: "v3 CONNACK must be exactly 2 bytes"}
	}
	if body[0]&0xFE != 0 {
		return false, 0, &wire.MalformedPacketError{Reason: "v3 CONNACK reserved bits must be 0"}
	}
	return body[0]&0x01 != 0, ConnackReturnCode(body[1]), nil
}

// PublishPacket is a decoded v3.1.1 PUBLISH. Unlike v5 it carries no
// properties.
type PublishPacket struct {
	Dup      bool
	QoS      uint8
	Retain   bool
	Topic    string
	PacketID uint16
	Payload  []byte
}

// ParsePublish decodes a v3.1.1 PUBLISH body given the fixed-header flags
// nibble (the same bit layout as v5).
func ParsePublish(body []byte, flags uint8) (*PublishPacket, error) {
	qos := (flags >> 1) & 0x03
	if qos > 2 {
		return nil, &wire.MalformedPacketError{Reason: "PUBLISH QoS must be 0, 1, or 2"}
	}
	dup := flags&0x08 != 0
	if qos == 0 && dup {
		return nil, &wire.MalformedPacketError{Reason: "PUBLISH DUP must be 0 when QoS is 0"}
	}

	topic, n, err := parseV3String(body)
	if err != nil {
		return nil, err
	}
	off := n
	if len(topic) == 0 {
		return nil, &wire.MalformedPacketError{Reason: "PUBLISH topic name must not be empty"}
	}

	p := &PublishPacket{Dup: dup, QoS: qos, Retain: flags&0x01 != 0, Topic: topic}

	if qos > 0 {
		id, n, err := wire.ParseU16(body[off:])
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, &wire.MalformedPacketError{Reason: "PUBLISH packet identifier must be non-zero"}
		}
		off += n
		p.PacketID = id
	}

	p.Payload = append([]byte(nil), body[off:]...)
	return p, nil
}

// ParsePacketID decodes the 2-byte packet identifier shared by PUBACK,
// PUBREC, PUBREL, PUBCOMP, and UNSUBACK in v3.1.1 (no reason code, no
// properties — just the identifier).
func ParsePacketID(body []byte) (uint16, error) {
	if len(body) != 2 {
		return 0, &wire.MalformedPacketError{Reason: "expected a 2-byte packet identifier body"}
	}
	id, _, err := wire.ParseU16(body)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, &wire.MalformedPacketError{Reason: "packet identifier must be non-zero"}
	}
	return id, nil
}
