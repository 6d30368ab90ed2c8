package wire

// AuthPacket carries an MQTT v5 enhanced-authentication exchange packet.
// Like Disconnect, it has a short form: if RemainingLength is 0, Reason
// defaults to Success and Properties is empty.
type AuthPacket struct {
	Reason     ReasonCode
	Properties *Properties
}

func (AuthPacket) Type() uint8 { return TypeAuth }

func (p AuthPacket) useShortForm() bool {
	return p.Reason == Success && propertiesBodySize(p.Properties) == 0
}

func (p AuthPacket) Size() int {
	if p.useShortForm() {
		return FixedHeaderSize(0)
	}
	rl := 1 + PropertiesSize(p.Properties)
	return FixedHeaderSize(rl) + rl
}

func (p AuthPacket) AppendTo(dst []byte) []byte {
	if p.useShortForm() {
		return AppendFixedHeader(dst, TypeAuth, 0, 0)
	}
	rl := 1 + PropertiesSize(p.Properties)
	dst = AppendFixedHeader(dst, TypeAuth, 0, rl)
	dst = append(dst, byte(p.Reason))
	dst = AppendProperties(dst, p.Properties)
	return dst
}

func parseAuth(body []byte) (Packet, error) {
	if len(body) == 0 {
		return AuthPacket{Reason: Success, Properties: &Properties{}}, nil
	}
	rc := ReasonCode(body[0])
	if !ValidAuthReasonCode(rc) {
		return nil, malformed("invalid AUTH reason code 0x%02x", rc)
	}
	off := 1
	var props *Properties
	if off < len(body) {
		p, n, err := ParseProperties(body[off:], AdmitAuth)
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
	return AuthPacket{Reason: rc, Properties: props}, nil
}
