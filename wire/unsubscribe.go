package wire

// UnsubscribePacket requests removal of one or more subscriptions. The
// payload MUST be non-empty.
type UnsubscribePacket struct {
	PacketID   uint16
	Filters    []string
	Properties *Properties
}

func (UnsubscribePacket) Type() uint8 { return TypeUnsubscribe }

func (p UnsubscribePacket) payloadSize() int {
	n := 0
	for _, f := range p.Filters {
		n += StringSize(f)
	}
	return n
}

func (p UnsubscribePacket) Size() int {
	rl := 2 + PropertiesSize(p.Properties) + p.payloadSize()
	return FixedHeaderSize(rl) + rl
}

func (p UnsubscribePacket) AppendTo(dst []byte) []byte {
	rl := 2 + PropertiesSize(p.Properties) + p.payloadSize()
	dst = AppendFixedHeader(dst, TypeUnsubscribe, 0x2, rl)
	dst = AppendU16(dst, p.PacketID)
	dst = AppendProperties(dst, p.Properties)
	for _, f := range p.Filters {
		dst = AppendString(dst, f)
	}
	return dst
}

func parseUnsubscribe(body []byte) (Packet, error) {
	id, n, err := ParseU16(body)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, malformed("UNSUBSCRIBE packet identifier must not be 0")
	}
	off := n

	props, m, err := ParseProperties(body[off:], AdmitUnsubscribe)
	if err != nil {
		return nil, err
	}
	off += m

	if off >= len(body) {
		return nil, malformed("UNSUBSCRIBE payload must not be empty")
	}

	var filters []string
	for off < len(body) {
		f, fn, err := ParseString(body[off:])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		off += fn
	}

	return UnsubscribePacket{PacketID: id, Filters: filters, Properties: props}, nil
}
