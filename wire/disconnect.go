package wire

// DisconnectPacket signals a clean or abnormal end of the connection.
// When RemainingLength is 0 on the wire, ReasonCode defaults to
// NormalDisconnection and Properties is nil (the DISCONNECT short form);
// AppendTo uses the same short form on the way out whenever Reason is
// NormalDisconnection and Properties is empty.
type DisconnectPacket struct {
	Reason     ReasonCode
	Properties *Properties
}

func (DisconnectPacket) Type() uint8 { return TypeDisconnect }

func (p DisconnectPacket) useShortForm() bool {
	return p.Reason == NormalDisconnection && propertiesBodySize(p.Properties) == 0
}

func (p DisconnectPacket) Size() int {
	if p.useShortForm() {
		return FixedHeaderSize(0)
	}
	rl := 1 + PropertiesSize(p.Properties)
	return FixedHeaderSize(rl) + rl
}

func (p DisconnectPacket) AppendTo(dst []byte) []byte {
	if p.useShortForm() {
		return AppendFixedHeader(dst, TypeDisconnect, 0, 0)
	}
	rl := 1 + PropertiesSize(p.Properties)
	dst = AppendFixedHeader(dst, TypeDisconnect, 0, rl)
	dst = append(dst, byte(p.Reason))
	dst = AppendProperties(dst, p.Properties)
	return dst
}

func parseDisconnect(body []byte) (Packet, error) {
	if len(body) == 0 {
		return DisconnectPacket{Reason: NormalDisconnection}, nil
	}
	rc := ReasonCode(body[0])
	if !ValidDisconnectReasonCode(rc) {
		return nil, malformed("invalid DISCONNECT reason code 0x%02x", rc)
	}
	off := 1
	var props *Properties
	if off < len(body) {
		p, n, err := ParseProperties(body[off:], AdmitDisconnect)
		if err != nil {
			return nil, err
		}
		props = p
		off += n
	} else {
		props = &Properties{}
	}
	if err := requireExhausted(body, off); err != nil {
		return nil, err
	}
	return DisconnectPacket{Reason: rc, Properties: props}, nil
}
