package client

import (
	"errors"
	"fmt"

	"github.com/cloudmqtt/enginego/wire"
)

// Sentinel errors for local conditions the engine rejects before any byte
// reaches the wire. These never close the transport; they are returned
// directly from the operation the caller attempted.
var (
	ErrNotConnected           = errors.New("client: not connected")
	ErrAlreadyConnecting      = errors.New("client: HandleConnect called outside the Disconnected state")
	ErrPacketAlreadyQueued    = errors.New("client: Consume called with a packet already queued")
	ErrRetainNotAvailable     = errors.New("client: server does not support retained messages")
	ErrQoSNotSupported        = errors.New("client: QoS exceeds the server's advertised maximum")
	ErrPacketTooLarge         = errors.New("client: packet exceeds the server's MaximumPacketSize")
	ErrIdentifiersExhausted   = errors.New("client: no free packet identifiers")
	ErrEmptySubscribeRequest  = errors.New("client: SUBSCRIBE/UNSUBSCRIBE payload must not be empty")
	ErrSessionReset           = errors.New("client: outstanding flow dropped by a session reset")
	ErrConnectionClosed       = errors.New("client: connection closed")
	ErrNoAuthExchangeInFlight = errors.New("client: Authenticate called with no enhanced-auth exchange in progress")
)

// ReasonError wraps a non-success ReasonCode returned by the broker in an
// acknowledgement packet (PUBACK/PUBREC/PUBCOMP/SUBACK/UNSUBACK/CONNACK).
// It supports errors.Is against the bare ReasonCode value, so callers can
// write errors.Is(err, wire.NotAuthorized) without unwrapping by hand.
type ReasonError struct {
	Reason wire.ReasonCode
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("client: broker returned reason code 0x%02x", uint8(e.Reason))
}

func (e *ReasonError) Is(target error) bool {
	rc, ok := target.(wire.ReasonCode)
	return ok && rc == e.Reason
}

func reasonErr(rc wire.ReasonCode) error {
	if rc.IsError() {
		return &ReasonError{Reason: rc}
	}
	return nil
}
