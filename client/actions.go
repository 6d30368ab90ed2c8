package client

import "github.com/cloudmqtt/enginego/wire"

// Action is the engine's only output. Every call into Engine that changes
// protocol state returns zero or more Actions for the caller (the facade's
// background task) to carry out; the engine itself never performs I/O.
type Action interface{ isAction() }

// SendPacket asks the caller to serialize Packet (wire.Encode) and write it
// to the transport. This is both the direct result of a client-initiated
// operation (Publish, Subscribe, ...) and the engine's own protocol
// responses (PUBACK, PUBREC, PUBCOMP, PINGRESP, ...).
type SendPacket struct{ Packet wire.Packet }

func (SendPacket) isAction() {}

// SaveClientIdentifier reports a server-assigned client identifier
// (CONNACK's AssignedClientIdentifier property) the caller should persist
// for any future reconnect with the same identifier.
type SaveClientIdentifier struct{ ClientIdentifier string }

func (SaveClientIdentifier) isAction() {}

// Deliver hands a fully-processed packet to the application. No further
// protocol action is needed from the engine for it: a QoS 0 or QoS 1
// PUBLISH, the deferred delivery of a QoS 2 PUBLISH once its PUBREL arrives,
// an in-progress AUTH challenge the caller must answer via Authenticate, or
// the AUTH(Success) that ends a re-authentication. A PINGRESP is not
// delivered; it only clears the outstanding ping.
type Deliver struct{ Packet wire.Packet }

func (Deliver) isAction() {}

// ConnectFailed reports that the broker rejected CONNECT (or the AUTH
// handshake that followed it) with a non-Success reason. The engine has
// already returned to Disconnected; no Closed action follows.
type ConnectFailed struct{ Reason wire.ReasonCode }

func (ConnectFailed) isAction() {}

// Closed reports that the engine decided the connection must end: a fatal
// MalformedPacket/ProtocolError condition (Err is non-nil and Reason names
// the DISCONNECT the caller should already have been told to send), or a
// clean DISCONNECT received from the broker (Err is nil).
type Closed struct {
	Reason wire.ReasonCode
	Err    error
}

func (Closed) isAction() {}
