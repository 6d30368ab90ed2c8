package wire

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID   uint16
	Reason     ReasonCode
	Properties *Properties
}

// PubrecPacket is the first acknowledgement of a QoS 2 PUBLISH.
type PubrecPacket struct {
	PacketID   uint16
	Reason     ReasonCode
	Properties *Properties
}

// PubrelPacket confirms receipt of PUBREC and requests release of the
// identifier's inbound record; it carries the fixed flags 0b0010.
type PubrelPacket struct {
	PacketID   uint16
	Reason     ReasonCode
	Properties *Properties
}

// PubcompPacket completes a QoS 2 flow.
type PubcompPacket struct {
	PacketID   uint16
	Reason     ReasonCode
	Properties *Properties
}

func (PubackPacket) Type() uint8  { return TypePuback }
func (PubrecPacket) Type() uint8  { return TypePubrec }
func (PubrelPacket) Type() uint8  { return TypePubrel }
func (PubcompPacket) Type() uint8 { return TypePubcomp }

func ackFlags(typ uint8) uint8 {
	if typ == TypePubrel {
		return 0x2
	}
	return 0
}

// ackUseShortForm reports whether reason Success with empty properties may
// be elided down to just the 2-byte packet identifier, per MQTT v5
// 3.4.2.1/3.5.2.1/3.6.2.1/3.7.2.1: "The Reason Code and Property Length can
// be omitted if the Reason Code is 0x00 (Success) and there are no
// Properties."
func ackUseShortForm(reason ReasonCode, props *Properties) bool {
	return reason == Success && propertiesBodySize(props) == 0
}

func ackSize(reason ReasonCode, props *Properties) int {
	if ackUseShortForm(reason, props) {
		return FixedHeaderSize(2) + 2
	}
	rl := 2 + 1 + PropertiesSize(props)
	return FixedHeaderSize(rl) + rl
}

func ackAppendTo(dst []byte, typ uint8, id uint16, reason ReasonCode, props *Properties) []byte {
	if ackUseShortForm(reason, props) {
		dst = AppendFixedHeader(dst, typ, ackFlags(typ), 2)
		return AppendU16(dst, id)
	}
	rl := 2 + 1 + PropertiesSize(props)
	dst = AppendFixedHeader(dst, typ, ackFlags(typ), rl)
	dst = AppendU16(dst, id)
	dst = append(dst, byte(reason))
	dst = AppendProperties(dst, props)
	return dst
}

func (p PubackPacket) Size() int  { return ackSize(p.Reason, p.Properties) }
func (p PubrecPacket) Size() int  { return ackSize(p.Reason, p.Properties) }
func (p PubrelPacket) Size() int  { return ackSize(p.Reason, p.Properties) }
func (p PubcompPacket) Size() int { return ackSize(p.Reason, p.Properties) }

func (p PubackPacket) AppendTo(dst []byte) []byte {
	return ackAppendTo(dst, TypePuback, p.PacketID, p.Reason, p.Properties)
}

func (p PubrecPacket) AppendTo(dst []byte) []byte {
	return ackAppendTo(dst, TypePubrec, p.PacketID, p.Reason, p.Properties)
}

func (p PubrelPacket) AppendTo(dst []byte) []byte {
	return ackAppendTo(dst, TypePubrel, p.PacketID, p.Reason, p.Properties)
}

func (p PubcompPacket) AppendTo(dst []byte) []byte {
	return ackAppendTo(dst, TypePubcomp, p.PacketID, p.Reason, p.Properties)
}

// parsedAck is the shared decode result before the caller wraps it in the
// kind-specific struct.
type parsedAck struct {
	PacketID   uint16
	Reason     ReasonCode
	Properties *Properties
}

func parseAckBody(body []byte, ctx admittedSet, validReason func(ReasonCode) bool) (parsedAck, error) {
	id, n, err := ParseU16(body)
	if err != nil {
		return parsedAck{}, err
	}
	if id == 0 {
		return parsedAck{}, malformed("packet identifier must not be 0")
	}
	off := n

	if off == len(body) {
		return parsedAck{PacketID: id, Reason: Success, Properties: &Properties{}}, nil
	}

	rc := ReasonCode(body[off])
	if !validReason(rc) {
		return parsedAck{}, malformed("invalid reason code 0x%02x", rc)
	}
	off++

	var props *Properties
	if off < len(body) {
		p, m, err := ParseProperties(body[off:], ctx)
		if err != nil {
			return parsedAck{}, err
		}
		props = p
		off += m
	} else {
		props = &Properties{}
	}
	if err := requireExhausted(body, off); err != nil {
		return parsedAck{}, err
	}
	return parsedAck{PacketID: id, Reason: rc, Properties: props}, nil
}

func parseAck(body []byte, typ uint8, validReason func(ReasonCode) bool) (Packet, error) {
	ctx := AdmitPubAckRecRelComp
	a, err := parseAckBody(body, ctx, validReason)
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypePuback:
		return PubackPacket(a), nil
	case TypePubrec:
		return PubrecPacket(a), nil
	case TypePubrel:
		return PubrelPacket(a), nil
	case TypePubcomp:
		return PubcompPacket(a), nil
	default:
		return nil, malformed("not an ack packet type")
	}
}
