package client

// State is the client-side connection state tracked by Engine. It mirrors
// the connection phases of MQTT v5 §3.1-3.15: a client sends CONNECT, then
// either waits directly for CONNACK or negotiates enhanced authentication
// via one or more AUTH exchanges first, and only afterward is Connected.
type State int

const (
	// Disconnected is the initial state and the state after a fatal error
	// or a clean DISCONNECT. HandleConnect is the only valid call here.
	Disconnected State = iota

	// ConnectingWithoutAuth has sent CONNECT (with or without an
	// AuthenticationMethod property) and has not yet received any AUTH
	// packet; it is waiting for CONNACK or a first AUTH challenge.
	ConnectingWithoutAuth

	// ConnectingWithAuth has received at least one AUTH(ContinueAuthentication)
	// after CONNECT and is exchanging AUTH packets with the server until it
	// receives either CONNACK or AUTH(Success), or a terminal AUTH/CONNACK
	// failure.
	ConnectingWithAuth

	// Connected has received a successful CONNACK and may publish,
	// subscribe, and receive application messages.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectingWithoutAuth:
		return "connecting_without_auth"
	case ConnectingWithAuth:
		return "connecting_with_auth"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}
