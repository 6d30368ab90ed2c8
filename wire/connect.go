package wire

// Connect flags byte bits, MSB to LSB: user_name, password, will_retain,
// will_qos[2], will_flag, clean_start, reserved(0).
const (
	connectFlagUsername      = 0x80
	connectFlagPassword      = 0x40
	connectFlagWillRetain    = 0x20
	connectFlagWillQoSMask   = 0x18
	connectFlagWillQoSShift  = 3
	connectFlagWillFlag      = 0x04
	connectFlagCleanStart    = 0x02
	connectFlagReservedMask  = 0x01
)

const protocolName = "MQTT"
const protocolLevel5 = 5

// Will describes the message the server publishes on the client's behalf
// if the connection ends abnormally.
type Will struct {
	Topic      string
	Payload    []byte
	QoS        uint8
	Retain     bool
	Properties *Properties
}

func (w *Will) size() int {
	if w == nil {
		return 0
	}
	return PropertiesSize(w.Properties) + StringSize(w.Topic) + BinarySize(w.Payload)
}

// ConnectPacket opens a session. Version is always 5 for this codec (the
// legacy decode-only path lives in package wire/v3).
type ConnectPacket struct {
	CleanStart bool
	KeepAlive  uint16

	ClientIdentifier string
	Will             *Will
	Username         *string
	Password         *string

	Properties *Properties
}

func (ConnectPacket) Type() uint8 { return TypeConnect }

func (p ConnectPacket) flags() uint8 {
	var f uint8
	if p.Username != nil {
		f |= connectFlagUsername
	}
	if p.Password != nil {
		f |= connectFlagPassword
	}
	if p.Will != nil {
		f |= connectFlagWillFlag
		f |= (p.Will.QoS << connectFlagWillQoSShift) & connectFlagWillQoSMask
		if p.Will.Retain {
			f |= connectFlagWillRetain
		}
	}
	if p.CleanStart {
		f |= connectFlagCleanStart
	}
	return f
}

func (p ConnectPacket) variableHeaderSize() int {
	return StringSize(protocolName) + 1 /* level */ + 1 /* flags */ + 2 /* keepalive */ + PropertiesSize(p.Properties)
}

func (p ConnectPacket) payloadSize() int {
	n := StringSize(p.ClientIdentifier)
	n += p.Will.size()
	if p.Username != nil {
		n += StringSize(*p.Username)
	}
	if p.Password != nil {
		n += StringSize(*p.Password)
	}
	return n
}

func (p ConnectPacket) Size() int {
	rl := p.variableHeaderSize() + p.payloadSize()
	return FixedHeaderSize(rl) + rl
}

func (p ConnectPacket) AppendTo(dst []byte) []byte {
	rl := p.variableHeaderSize() + p.payloadSize()
	dst = AppendFixedHeader(dst, TypeConnect, 0, rl)
	dst = AppendString(dst, protocolName)
	dst = append(dst, protocolLevel5)
	dst = append(dst, p.flags())
	dst = AppendU16(dst, p.KeepAlive)
	dst = AppendProperties(dst, p.Properties)

	dst = AppendString(dst, p.ClientIdentifier)
	if p.Will != nil {
		dst = AppendProperties(dst, p.Will.Properties)
		dst = AppendString(dst, p.Will.Topic)
		dst = AppendBinary(dst, p.Will.Payload)
	}
	if p.Username != nil {
		dst = AppendString(dst, *p.Username)
	}
	if p.Password != nil {
		dst = AppendString(dst, *p.Password)
	}
	return dst
}

func parseConnect(body []byte) (Packet, error) {
	name, n, err := ParseString(body)
	if err != nil {
		return nil, err
	}
	if name != protocolName {
		return nil, malformed("CONNECT protocol name must be %q, got %q", protocolName, name)
	}
	off := n

	if off >= len(body) {
		return nil, incomplete(1)
	}
	level := body[off]
	off++
	if level != protocolLevel5 {
		return nil, protocolErr("unsupported protocol level %d", level)
	}

	if off >= len(body) {
		return nil, incomplete(1)
	}
	flags := body[off]
	off++
	if flags&connectFlagReservedMask != 0 {
		return nil, malformed("CONNECT reserved flag bit must be 0")
	}

	keepAlive, n, err := ParseU16(body[off:])
	if err != nil {
		return nil, err
	}
	off += n

	props, n, err := ParseProperties(body[off:], AdmitConnect)
	if err != nil {
		return nil, err
	}
	off += n

	clientID, n, err := ParseString(body[off:])
	if err != nil {
		return nil, err
	}
	off += n

	pkt := ConnectPacket{
		CleanStart:       flags&connectFlagCleanStart != 0,
		KeepAlive:        keepAlive,
		ClientIdentifier: clientID,
		Properties:       props,
	}

	if flags&connectFlagWillFlag != 0 {
		willProps, n, err := ParseProperties(body[off:], AdmitWill)
		if err != nil {
			return nil, err
		}
		off += n

		willTopic, n, err := ParseString(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		if err := validateTopicNameBytes(willTopic); err != nil {
			return nil, err
		}

		willPayload, n, err := ParseBinary(body[off:])
		if err != nil {
			return nil, err
		}
		off += n

		qos := (flags & connectFlagWillQoSMask) >> connectFlagWillQoSShift
		if qos > 2 {
			return nil, malformed("CONNECT will QoS must be 0, 1 or 2")
		}

		pkt.Will = &Will{
			Topic:      willTopic,
			Payload:    append([]byte(nil), willPayload...),
			QoS:        qos,
			Retain:     flags&connectFlagWillRetain != 0,
			Properties: willProps,
		}
	} else if flags&(connectFlagWillQoSMask|connectFlagWillRetain) != 0 {
		return nil, malformed("CONNECT will QoS/retain set without will flag")
	}

	if flags&connectFlagUsername != 0 {
		u, n, err := ParseString(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		pkt.Username = &u
	}
	if flags&connectFlagPassword != 0 {
		pw, n, err := ParseString(body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		pkt.Password = &pw
	}

	if err := requireExhausted(body, off); err != nil {
		return nil, err
	}

	return pkt, nil
}
