package wire

// Packet is implemented by every one of the 15 MQTT v5 control packet
// kinds. Size reports the packet's exact on-wire length (fixed header +
// variable header + payload); AppendTo appends exactly that many bytes.
type Packet interface {
	Type() uint8
	Size() int
	AppendTo(dst []byte) []byte
}

// Encode is a convenience that allocates a correctly-sized buffer and
// serializes p into it.
func Encode(p Packet) []byte {
	return p.AppendTo(make([]byte, 0, p.Size()))
}

// Parse parses exactly one packet from buf, which MUST contain exactly one
// packet's worth of bytes (the framing adapter in package frame is
// responsible for slicing the stream into single-packet buffers before
// calling Parse).
// Any byte left over after a kind-specific parse completes is a
// MalformedPacket, except for Publish, whose payload consumes the rest of
// the buffer by definition.
func Parse(buf []byte) (Packet, error) {
	fh, n, err := ParseFixedHeader(buf)
	if err != nil {
		return nil, err
	}
	body := buf[n:]
	if len(body) < fh.RemainingLength {
		return nil, incomplete(fh.RemainingLength - len(body))
	}
	body = body[:fh.RemainingLength]

	switch fh.Type {
	case TypeConnect:
		return parseConnect(body)
	case TypeConnack:
		return parseConnack(body)
	case TypePublish:
		return parsePublish(body, fh.Flags)
	case TypePuback:
		return parseAck(body, TypePuback, ValidPubackPubrecReasonCode)
	case TypePubrec:
		return parseAck(body, TypePubrec, ValidPubackPubrecReasonCode)
	case TypePubrel:
		return parseAck(body, TypePubrel, ValidPubrelPubcompReasonCode)
	case TypePubcomp:
		return parseAck(body, TypePubcomp, ValidPubrelPubcompReasonCode)
	case TypeSubscribe:
		return parseSubscribe(body)
	case TypeSuback:
		return parseSuback(body)
	case TypeUnsubscribe:
		return parseUnsubscribe(body)
	case TypeUnsuback:
		return parseUnsuback(body)
	case TypePingreq:
		return parsePingreq(body)
	case TypePingresp:
		return parsePingresp(body)
	case TypeDisconnect:
		return parseDisconnect(body)
	case TypeAuth:
		return parseAuth(body)
	default:
		return nil, malformed("unsupported packet type %d", fh.Type)
	}
}

func requireExhausted(body []byte, off int) error {
	if off != len(body) {
		return malformed("trailing bytes after packet body")
	}
	return nil
}
