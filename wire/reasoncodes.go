package wire

import "fmt"

// ReasonCode is a single status byte carried in acknowledgement packets.
// Values < 0x80 indicate success; values >= 0x80 indicate an error. The
// full byte namespace is shared across packet types, but each packet type
// only admits a subset (see the *ReasonCodes lists and Valid*ReasonCode functions below) — an unknown or
// inadmissible reason code for a given packet type is a MalformedPacket.
type ReasonCode uint8

// Error satisfies the error interface so a bare ReasonCode can be used as
// an errors.Is target (see client.ReasonError), without implying that a
// success code is itself an error.
func (rc ReasonCode) Error() string {
	return fmt.Sprintf("reason code 0x%02x", uint8(rc))
}

const (
	Success                         ReasonCode = 0x00
	NormalDisconnection             ReasonCode = 0x00
	GrantedQoS0                     ReasonCode = 0x00
	GrantedQoS1                     ReasonCode = 0x01
	GrantedQoS2                     ReasonCode = 0x02
	DisconnectWithWillMessage       ReasonCode = 0x04
	NoMatchingSubscribers           ReasonCode = 0x10
	NoSubscriptionExisted           ReasonCode = 0x11
	ContinueAuthentication          ReasonCode = 0x18
	ReAuthenticate                  ReasonCode = 0x19
	UnspecifiedError                ReasonCode = 0x80
	MalformedPacket                 ReasonCode = 0x81
	ProtocolErrorCode               ReasonCode = 0x82
	ImplementationSpecificError     ReasonCode = 0x83
	UnsupportedProtocolVersion      ReasonCode = 0x84
	ClientIdentifierNotValid        ReasonCode = 0x85
	BadUsernameOrPassword           ReasonCode = 0x86
	NotAuthorized                   ReasonCode = 0x87
	ServerUnavailable               ReasonCode = 0x88
	ServerBusy                      ReasonCode = 0x89
	Banned                          ReasonCode = 0x8A
	ServerShuttingDown              ReasonCode = 0x8B
	BadAuthenticationMethod         ReasonCode = 0x8C
	KeepAliveTimeout                ReasonCode = 0x8D
	SessionTakenOver                ReasonCode = 0x8E
	TopicFilterInvalid              ReasonCode = 0x8F
	TopicNameInvalid                ReasonCode = 0x90
	PacketIdentifierInUse           ReasonCode = 0x91
	PacketIdentifierNotFound        ReasonCode = 0x92
	ReceiveMaximumExceeded          ReasonCode = 0x93
	TopicAliasInvalid               ReasonCode = 0x94
	PacketTooLarge                  ReasonCode = 0x95
	MessageRateTooHigh              ReasonCode = 0x96
	QuotaExceeded                   ReasonCode = 0x97
	AdministrativeAction            ReasonCode = 0x98
	PayloadFormatInvalid            ReasonCode = 0x99
	RetainNotSupported              ReasonCode = 0x9A
	QoSNotSupported                 ReasonCode = 0x9B
	UseAnotherServer                ReasonCode = 0x9C
	ServerMoved                     ReasonCode = 0x9D
	SharedSubscriptionsNotSupported ReasonCode = 0x9E
	ConnectionRateExceeded          ReasonCode = 0x9F
	MaximumConnectTime              ReasonCode = 0xA0
	SubscriptionIdentifiersNotSupp  ReasonCode = 0xA1
	WildcardSubscriptionsNotSupp    ReasonCode = 0xA2
)

// IsError reports whether rc represents a failure (>= 0x80).
func (rc ReasonCode) IsError() bool { return rc >= 0x80 }

func admits(set []ReasonCode, rc ReasonCode) bool {
	for _, v := range set {
		if v == rc {
			return true
		}
	}
	return false
}

var connackReasonCodes = []ReasonCode{
	Success, UnspecifiedError, MalformedPacket, ProtocolErrorCode,
	ImplementationSpecificError, UnsupportedProtocolVersion, ClientIdentifierNotValid,
	BadUsernameOrPassword, NotAuthorized, ServerUnavailable, ServerBusy, Banned,
	BadAuthenticationMethod, TopicNameInvalid, PacketTooLarge, QuotaExceeded,
	PayloadFormatInvalid, RetainNotSupported, QoSNotSupported, UseAnotherServer,
	ServerMoved, ConnectionRateExceeded,
}

var pubackPubrecReasonCodes = []ReasonCode{
	Success, NoMatchingSubscribers, UnspecifiedError, ImplementationSpecificError,
	NotAuthorized, TopicNameInvalid, PacketIdentifierInUse, QuotaExceeded,
	PayloadFormatInvalid,
}

var pubrelPubcompReasonCodes = []ReasonCode{
	Success, PacketIdentifierNotFound,
}

var subackReasonCodes = []ReasonCode{
	GrantedQoS0, GrantedQoS1, GrantedQoS2, UnspecifiedError,
	ImplementationSpecificError, NotAuthorized, TopicFilterInvalid,
	PacketIdentifierInUse, QuotaExceeded, SharedSubscriptionsNotSupported,
	SubscriptionIdentifiersNotSupp, WildcardSubscriptionsNotSupp,
}

var unsubackReasonCodes = []ReasonCode{
	Success, NoSubscriptionExisted, UnspecifiedError, ImplementationSpecificError,
	NotAuthorized, TopicFilterInvalid, PacketIdentifierInUse,
}

var disconnectReasonCodes = []ReasonCode{
	NormalDisconnection, DisconnectWithWillMessage, UnspecifiedError, MalformedPacket,
	ProtocolErrorCode, ImplementationSpecificError, NotAuthorized, ServerBusy, ServerShuttingDown,
	KeepAliveTimeout, SessionTakenOver, TopicFilterInvalid, TopicNameInvalid,
	ReceiveMaximumExceeded, TopicAliasInvalid, PacketTooLarge, MessageRateTooHigh,
	QuotaExceeded, AdministrativeAction, PayloadFormatInvalid, RetainNotSupported,
	QoSNotSupported, UseAnotherServer, ServerMoved, SharedSubscriptionsNotSupported,
	ConnectionRateExceeded, MaximumConnectTime, SubscriptionIdentifiersNotSupp,
	WildcardSubscriptionsNotSupp,
}

var authReasonCodes = []ReasonCode{
	Success, ContinueAuthentication, ReAuthenticate,
}

// ValidConnackReasonCode reports whether rc is admitted in a CONNACK packet.
func ValidConnackReasonCode(rc ReasonCode) bool { return admits(connackReasonCodes, rc) }

// ValidPubackPubrecReasonCode reports whether rc is admitted in PUBACK/PUBREC.
func ValidPubackPubrecReasonCode(rc ReasonCode) bool { return admits(pubackPubrecReasonCodes, rc) }

// ValidPubrelPubcompReasonCode reports whether rc is admitted in PUBREL/PUBCOMP.
func ValidPubrelPubcompReasonCode(rc ReasonCode) bool { return admits(pubrelPubcompReasonCodes, rc) }

// ValidSubackReasonCode reports whether rc is admitted in a SUBACK packet.
func ValidSubackReasonCode(rc ReasonCode) bool { return admits(subackReasonCodes, rc) }

// ValidUnsubackReasonCode reports whether rc is admitted in an UNSUBACK packet.
func ValidUnsubackReasonCode(rc ReasonCode) bool { return admits(unsubackReasonCodes, rc) }

// ValidDisconnectReasonCode reports whether rc is admitted in a DISCONNECT packet.
func ValidDisconnectReasonCode(rc ReasonCode) bool { return admits(disconnectReasonCodes, rc) }

// ValidAuthReasonCode reports whether rc is admitted in an AUTH packet.
func ValidAuthReasonCode(rc ReasonCode) bool { return admits(authReasonCodes, rc) }
