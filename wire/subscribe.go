package wire

// Subscribe options byte bits.
const (
	subOptQoSMask            = 0x03
	subOptNoLocal             = 0x04
	subOptRetainAsPublished   = 0x08
	subOptRetainHandlingShift = 4
	subOptRetainHandlingMask  = 0x30
	subOptReservedMask        = 0xC0
)

// SubscriptionRequest is one topic-filter-plus-options entry in a
// SUBSCRIBE payload.
type SubscriptionRequest struct {
	Filter            string
	QoS               uint8
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    uint8 // 0=Send, 1=SendIfNew, 2=DoNotSend
}

func (s SubscriptionRequest) optionsByte() byte {
	b := s.QoS & subOptQoSMask
	if s.NoLocal {
		b |= subOptNoLocal
	}
	if s.RetainAsPublished {
		b |= subOptRetainAsPublished
	}
	b |= (s.RetainHandling << subOptRetainHandlingShift) & subOptRetainHandlingMask
	return b
}

// SubscribePacket requests subscription to one or more topic filters.
// The payload MUST be non-empty.
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []SubscriptionRequest
	Properties    *Properties
}

func (SubscribePacket) Type() uint8 { return TypeSubscribe }

func (p SubscribePacket) payloadSize() int {
	n := 0
	for _, s := range p.Subscriptions {
		n += StringSize(s.Filter) + 1
	}
	return n
}

func (p SubscribePacket) Size() int {
	rl := 2 + PropertiesSize(p.Properties) + p.payloadSize()
	return FixedHeaderSize(rl) + rl
}

func (p SubscribePacket) AppendTo(dst []byte) []byte {
	rl := 2 + PropertiesSize(p.Properties) + p.payloadSize()
	dst = AppendFixedHeader(dst, TypeSubscribe, 0x2, rl)
	dst = AppendU16(dst, p.PacketID)
	dst = AppendProperties(dst, p.Properties)
	for _, s := range p.Subscriptions {
		dst = AppendString(dst, s.Filter)
		dst = append(dst, s.optionsByte())
	}
	return dst
}

func parseSubscribe(body []byte) (Packet, error) {
	id, n, err := ParseU16(body)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, malformed("SUBSCRIBE packet identifier must not be 0")
	}
	off := n

	props, m, err := ParseProperties(body[off:], AdmitSubscribe)
	if err != nil {
		return nil, err
	}
	off += m

	if off >= len(body) {
		return nil, malformed("SUBSCRIBE payload must not be empty")
	}

	var subs []SubscriptionRequest
	for off < len(body) {
		filter, fn, err := ParseString(body[off:])
		if err != nil {
			return nil, err
		}
		off += fn
		if off >= len(body) {
			return nil, malformed("SUBSCRIBE missing options byte")
		}
		opts := body[off]
		off++
		if opts&subOptReservedMask != 0 {
			return nil, malformed("SUBSCRIBE options reserved bits must be 0")
		}
		qos := opts & subOptQoSMask
		if qos > 2 {
			return nil, malformed("SUBSCRIBE QoS must be 0, 1 or 2")
		}
		rh := (opts & subOptRetainHandlingMask) >> subOptRetainHandlingShift
		if rh > 2 {
			return nil, malformed("SUBSCRIBE retain handling must be 0, 1 or 2")
		}
		subs = append(subs, SubscriptionRequest{
			Filter:            filter,
			QoS:               qos,
			NoLocal:           opts&subOptNoLocal != 0,
			RetainAsPublished: opts&subOptRetainAsPublished != 0,
			RetainHandling:    rh,
		})
	}

	return SubscribePacket{PacketID: id, Subscriptions: subs, Properties: props}, nil
}
