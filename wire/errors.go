package wire

import "fmt"

// MalformedPacketError reports data that cannot be parsed per the MQTT v5
// spec: bad UTF-8, an invalid variable integer, wrong fixed-header flags,
// an unknown or duplicate property, a zero packet identifier where one is
// required, or trailing bytes after a packet's declared remaining length.
//
// It is always fatal: the caller MUST close the transport with reason
// MalformedPacket.
type MalformedPacketError struct {
	Reason string
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed packet: %s", e.Reason)
}

func malformed(format string, args ...any) error {
	return &MalformedPacketError{Reason: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a packet that parses cleanly but is semantically
// wrong per the MQTT v5 spec (e.g. a CONNACK with SessionPresent set and a
// non-Success reason code, or a CONNECT naming an unsupported protocol
// level). Always fatal: close with reason ProtocolError.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func protocolErr(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// IncompleteError is returned by streaming-mode parsers when the supplied
// bytes are a valid prefix of some packet but more bytes are required to
// make progress. Needed is a hint: the minimum number of additional bytes
// that would let parsing advance (not necessarily complete the packet).
//
// Incomplete is distinct from a definitive parse failure (Backtrack, i.e.
// MalformedPacketError / ProtocolError here): the framing adapter in
// package frame relies on this distinction to know whether to reserve
// more buffer space or terminate the transport.
type IncompleteError struct {
	Needed int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete packet: need %d more byte(s)", e.Needed)
}

func incomplete(needed int) error {
	if needed < 1 {
		needed = 1
	}
	return &IncompleteError{Needed: needed}
}
