package wire

// Publish fixed-header flag bits.
const (
	PublishFlagRetain = 0x01
	publishFlagQoSMask = 0x06
	publishFlagQoSShift = 1
	PublishFlagDup    = 0x08
)

// PublishPacket carries application data on a topic. QoS 0 MUST NOT carry
// a packet identifier; QoS >= 1 MUST carry a non-zero one. DUP=1 with
// QoS 0 is a MalformedPacket.
type PublishPacket struct {
	Dup      bool
	QoS      uint8
	Retain   bool
	Topic    string
	PacketID uint16 // only meaningful when QoS > 0

	Properties *Properties
	Payload    []byte
}

func (PublishPacket) Type() uint8 { return TypePublish }

func (p PublishPacket) flags() uint8 {
	var f uint8
	if p.Dup {
		f |= PublishFlagDup
	}
	f |= (p.QoS << publishFlagQoSShift) & publishFlagQoSMask
	if p.Retain {
		f |= PublishFlagRetain
	}
	return f
}

func (p PublishPacket) variableHeaderSize() int {
	n := StringSize(p.Topic)
	if p.QoS > 0 {
		n += 2
	}
	n += PropertiesSize(p.Properties)
	return n
}

func (p PublishPacket) Size() int {
	rl := p.variableHeaderSize() + len(p.Payload)
	return FixedHeaderSize(rl) + rl
}

func (p PublishPacket) AppendTo(dst []byte) []byte {
	rl := p.variableHeaderSize() + len(p.Payload)
	dst = AppendFixedHeader(dst, TypePublish, p.flags(), rl)
	dst = AppendString(dst, p.Topic)
	if p.QoS > 0 {
		dst = AppendU16(dst, p.PacketID)
	}
	dst = AppendProperties(dst, p.Properties)
	dst = append(dst, p.Payload...)
	return dst
}

func parsePublish(body []byte, flags uint8) (Packet, error) {
	dup := flags&PublishFlagDup != 0
	qos := (flags & publishFlagQoSMask) >> publishFlagQoSShift
	retain := flags&PublishFlagRetain != 0

	if qos > 2 {
		return nil, malformed("PUBLISH QoS must be 0, 1 or 2")
	}
	if qos == 0 && dup {
		return nil, malformed("PUBLISH with QoS 0 must not set DUP")
	}

	topic, n, err := ParseString(body)
	if err != nil {
		return nil, err
	}
	off := n

	if err := validateTopicNameBytes(topic); err != nil {
		return nil, err
	}

	var packetID uint16
	if qos > 0 {
		id, m, err := ParseU16(body[off:])
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, malformed("PUBLISH with QoS > 0 must carry a non-zero packet identifier")
		}
		packetID = id
		off += m
	}

	props, m, err := ParseProperties(body[off:], AdmitPublish)
	if err != nil {
		return nil, err
	}
	off += m

	payload := append([]byte(nil), body[off:]...)

	return PublishPacket{
		Dup:        dup,
		QoS:        qos,
		Retain:     retain,
		Topic:      topic,
		PacketID:   packetID,
		Properties: props,
		Payload:    payload,
	}, nil
}
