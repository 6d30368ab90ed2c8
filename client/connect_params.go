package client

import (
	"errors"
	"unicode"

	"github.com/cloudmqtt/enginego/wire"
)

// clientIDKind distinguishes the three client-identifier shapes a caller
// can hand the engine.
type clientIDKind uint8

const (
	clientIDMinimalRequired clientIDKind = iota
	clientIDPotentiallyAccepted
	clientIDPotentiallyServerProvided
)

// ClientIdentifier is the client_identifier configuration knob.
// MinimalClientIdentifier restricts to the 1-23 byte
// alphanumeric identifier every MQTT v3.1.1 broker is required to accept;
// PotentiallyAcceptedClientIdentifier allows the full v5 string range but
// is not guaranteed broker-portable; ServerProvidedClientIdentifier sends
// an empty identifier and relies on the server assigning one (surfaced via
// SaveClientIdentifier from the resulting CONNACK).
type ClientIdentifier struct {
	kind  clientIDKind
	value string
}

// MinimalClientIdentifier validates s as 1-23 bytes of ASCII letters and
// digits, the identifier shape every MQTT broker (v3.1.1 included) must
// accept.
func MinimalClientIdentifier(s string) (ClientIdentifier, error) {
	if s == "" || len(s) > 23 {
		return ClientIdentifier{}, errors.New("client: MinimalClientIdentifier must be 1-23 bytes")
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return ClientIdentifier{}, errors.New("client: MinimalClientIdentifier must be alphanumeric ASCII")
		}
	}
	return ClientIdentifier{kind: clientIDMinimalRequired, value: s}, nil
}

// PotentiallyAcceptedClientIdentifier validates s as a non-empty UTF-8
// string of at most 65535 bytes. Brokers are free to reject it with
// ClientIdentifierNotValid; the caller should fall back to
// ServerProvidedClientIdentifier on that reason code.
func PotentiallyAcceptedClientIdentifier(s string) (ClientIdentifier, error) {
	if s == "" || len(s) > 65535 {
		return ClientIdentifier{}, errors.New("client: client identifier must be 1-65535 bytes")
	}
	return ClientIdentifier{kind: clientIDPotentiallyAccepted, value: s}, nil
}

// ServerProvidedClientIdentifier requests that the server assign a client
// identifier (CONNECT is sent with an empty identifier and CleanStart=true
// is implied by most brokers' handling of it, though this engine does not
// enforce that).
func ServerProvidedClientIdentifier() ClientIdentifier {
	return ClientIdentifier{kind: clientIDPotentiallyServerProvided}
}

func (c ClientIdentifier) wireValue() string { return c.value }

// KeepAlive is the keep_alive configuration knob: KeepAliveDisabled (wire
// value 0, the server never expects a PINGREQ) or a non-zero number of
// seconds.
type KeepAlive uint16

// KeepAliveDisabled turns off the keep-alive mechanism: the engine never
// emits PINGREQ on a timer.
const KeepAliveDisabled KeepAlive = 0

// KeepAliveSeconds validates seconds as non-zero and returns a KeepAlive.
func KeepAliveSeconds(seconds uint16) (KeepAlive, error) {
	if seconds == 0 {
		return 0, errors.New("client: KeepAliveSeconds requires a non-zero value; use KeepAliveDisabled")
	}
	return KeepAlive(seconds), nil
}

// ConnectParams configures Engine.HandleConnect.
type ConnectParams struct {
	ClientIdentifier ClientIdentifier
	CleanStart       bool
	KeepAlive        KeepAlive
	Will             *wire.Will
	Username         *string
	Password         *string

	SessionExpiryInterval      *uint32
	ReceiveMaximum             *uint16
	MaximumPacketSize          *uint32
	TopicAliasMaximum          *uint16
	RequestResponseInformation bool
	RequestProblemInformation  *bool
	UserProperties             []wire.UserProperty

	// AuthenticationMethod and AuthenticationData begin an MQTT v5
	// enhanced-auth exchange (ConnectingWithAuth). Leave AuthenticationMethod
	// empty to skip it.
	AuthenticationMethod string
	AuthenticationData   []byte
}

func (p ConnectParams) buildProperties() *wire.Properties {
	props := &wire.Properties{}
	if p.SessionExpiryInterval != nil {
		props.SetSessionExpiryInterval(*p.SessionExpiryInterval)
	}
	if p.ReceiveMaximum != nil {
		props.SetReceiveMaximum(*p.ReceiveMaximum)
	}
	if p.MaximumPacketSize != nil {
		props.SetMaximumPacketSize(*p.MaximumPacketSize)
	}
	if p.TopicAliasMaximum != nil {
		props.SetTopicAliasMaximum(*p.TopicAliasMaximum)
	}
	if p.RequestResponseInformation {
		props.SetRequestResponseInformation(1)
	}
	if p.RequestProblemInformation != nil {
		v := uint8(0)
		if *p.RequestProblemInformation {
			v = 1
		}
		props.SetRequestProblemInformation(v)
	}
	if p.AuthenticationMethod != "" {
		props.SetAuthenticationMethod(p.AuthenticationMethod)
		if p.AuthenticationData != nil {
			props.SetAuthenticationData(p.AuthenticationData)
		}
	}
	for _, up := range p.UserProperties {
		props.AddUserProperty(up.Key, up.Value)
	}
	return props
}
