// Package client implements the sans-I/O MQTT v5 client protocol state
// machine. Engine consumes parsed wire packets and a caller-supplied
// monotonic clock, and emits Actions; it never performs I/O itself. The
// background-task-plus-channels façade that drives it in a real deployment
// lives in package facade.
package client

import (
	"fmt"

	"github.com/cloudmqtt/enginego/idstore"
	"github.com/cloudmqtt/enginego/wire"
)

// Engine is the client-side MQTT v5 protocol state machine. The zero value
// is not ready to use; construct with New. An Engine is single-threaded:
// every method must be called from the same goroutine.
type Engine struct {
	state   State
	session *Session

	ready    []Action
	incoming wire.Packet
	hasPkt   bool
}

// New returns an Engine in the initial Disconnected state.
func New() *Engine {
	return &Engine{state: Disconnected, session: newSession()}
}

// State reports the engine's current connection state.
func (e *Engine) State() State { return e.state }

// IsConnected reports whether the engine is in the Connected state.
func (e *Engine) IsConnected() bool { return e.state == Connected }

// Session exposes the engine's session bookkeeping (negotiated limits,
// outstanding flows) for callers that need read access.
func (e *Engine) Session() *Session { return e.session }

func (e *Engine) emit(a Action) { e.ready = append(e.ready, a) }

// sendPacket wraps p in a SendPacket action and resets the keep-alive
// timer, since any packet sent resets the "no packet sent in KeepAlive
// seconds" clock.
func (e *Engine) sendPacket(now Instant, p wire.Packet) Action {
	e.session.lastPacketSentAt = now
	return SendPacket{Packet: p}
}

func (e *Engine) checkSize(p wire.Packet) error {
	if e.session.MaximumPacketSize == 0 {
		return nil
	}
	if uint32(p.Size()) > e.session.MaximumPacketSize {
		return ErrPacketTooLarge
	}
	return nil
}

// popReady returns the oldest queued action, if any.
func (e *Engine) popReady() (Action, bool) {
	if len(e.ready) == 0 {
		return nil, false
	}
	a := e.ready[0]
	e.ready = e.ready[1:]
	return a, true
}

// HandleConnect sends CONNECT. Precondition: State() == Disconnected.
func (e *Engine) HandleConnect(now Instant, params ConnectParams) (Action, error) {
	if e.state != Disconnected {
		return nil, ErrAlreadyConnecting
	}

	if params.CleanStart {
		e.session.reset()
	}

	e.session.clientIDHash = hashClientID(params.ClientIdentifier.wireValue())
	e.session.cleanStart = params.CleanStart
	e.session.KeepAlive = uint16(params.KeepAlive)
	e.session.AuthenticationMethod = params.AuthenticationMethod
	e.session.lastPacketSentAt = now

	pkt := wire.ConnectPacket{
		CleanStart:       params.CleanStart,
		KeepAlive:        uint16(params.KeepAlive),
		ClientIdentifier: params.ClientIdentifier.wireValue(),
		Will:             params.Will,
		Username:         params.Username,
		Password:         params.Password,
		Properties:       params.buildProperties(),
	}

	e.state = ConnectingWithoutAuth
	return e.sendPacket(now, pkt), nil
}

// Consume queues one parsed packet for the next Run call. Precondition: no
// packet is currently queued.
func (e *Engine) Consume(p wire.Packet) error {
	if e.hasPkt {
		return ErrPacketAlreadyQueued
	}
	e.incoming = p
	e.hasPkt = true
	return nil
}

// Run advances the engine and returns the next Action, if any. The caller
// must keep calling Run (draining queued Actions, then feeding the next
// Consume-d packet) until it returns ok == false, at which point the
// engine is idle until the next Consume or the keep-alive deadline.
func (e *Engine) Run(now Instant) (Action, bool) {
	if a, ok := e.popReady(); ok {
		return a, true
	}

	if e.hasPkt {
		p := e.incoming
		e.incoming = nil
		e.hasPkt = false
		e.dispatch(now, p)
		if a, ok := e.popReady(); ok {
			return a, true
		}
	}

	if e.state == Connected {
		e.drainQueuedPublishes(now)
		if a, ok := e.popReady(); ok {
			return a, true
		}
		if a, ok := e.maybeKeepAlive(now); ok {
			return a, true
		}
	}

	return nil, false
}

func (e *Engine) dispatch(now Instant, p wire.Packet) {
	switch pkt := p.(type) {
	case wire.ConnackPacket:
		e.handleConnack(now, pkt)
	case wire.AuthPacket:
		e.handleAuth(now, pkt)
	case wire.PublishPacket:
		e.handlePublish(now, pkt)
	case wire.PubackPacket:
		e.handlePuback(pkt)
	case wire.PubrecPacket:
		e.handlePubrec(now, pkt)
	case wire.PubrelPacket:
		e.handlePubrel(now, pkt)
	case wire.PubcompPacket:
		e.handlePubcomp(pkt)
	case wire.SubackPacket:
		e.handleSuback(pkt)
	case wire.UnsubackPacket:
		e.handleUnsuback(pkt)
	case wire.PingreqPacket:
		e.emit(e.sendPacket(now, wire.PingrespPacket{}))
	case wire.PingrespPacket:
		e.session.pingOutstanding = false
	case wire.DisconnectPacket:
		e.handleDisconnect(pkt)
	default:
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected packet type %T", p))
	}
}

// fatal transitions to Disconnected, asking the caller to send a
// DISCONNECT carrying reason first (unless the engine was already
// disconnected), then surfaces Closed. Every wire-level protocol violation
// the engine detects becomes a DISCONNECT with the matching reason before
// the connection closes.
func (e *Engine) fatal(reason wire.ReasonCode, err error) {
	if e.state != Disconnected {
		e.emit(SendPacket{Packet: wire.DisconnectPacket{Reason: reason}})
	}
	e.state = Disconnected
	e.emit(Closed{Reason: reason, Err: err})
}

func (e *Engine) handleConnack(now Instant, p wire.ConnackPacket) {
	if e.state != ConnectingWithoutAuth && e.state != ConnectingWithAuth {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected CONNACK in state %s", e.state))
		return
	}

	if p.Reason != wire.Success {
		e.state = Disconnected
		e.emit(ConnectFailed{Reason: p.Reason})
		return
	}

	e.finishConnect(now, p.SessionPresent, p.Properties)
}

// finishConnect is the shared CONNACK/AUTH-success tail: apply negotiated
// properties, decide whether the session survives, and (if it does)
// retransmit outstanding flows in allocation order with DUP=1 on PUBLISH.
func (e *Engine) finishConnect(now Instant, sessionPresent bool, props *wire.Properties) {
	if e.session.cleanStart || !sessionPresent {
		e.session.reset()
	}

	if props != nil {
		if props.HasReceiveMaximum() {
			e.session.ReceiveMaximum = props.ReceiveMaximum
		}
		if props.HasMaximumPacketSize() {
			e.session.MaximumPacketSize = props.MaximumPacketSize
		}
		if props.HasMaximumQoS() {
			e.session.MaximumQoS = props.MaximumQoS
		}
		if props.HasRetainAvailable() {
			e.session.RetainAvailable = props.RetainAvailable
		}
		if props.HasTopicAliasMaximum() {
			e.session.TopicAliasMaximum = props.TopicAliasMaximum
		}
		if props.HasSessionExpiryInterval() {
			e.session.SessionExpiryInterval = props.SessionExpiryInterval
		}
		if props.HasServerKeepAlive() {
			e.session.KeepAlive = props.ServerKeepAlive
		}
		if props.HasAssignedClientIdentifier() {
			e.emit(SaveClientIdentifier{ClientIdentifier: props.AssignedClientIdentifier})
		}
	}

	e.state = Connected
	e.session.lastPacketSentAt = now

	if sessionPresent && !e.session.cleanStart {
		for _, id := range append([]uint16(nil), e.session.order...) {
			rec := e.session.outstanding[id]
			pkt := rec.pkt
			if pub, ok := pkt.(wire.PublishPacket); ok {
				pub.Dup = true
				rec.pkt = pub
				pkt = pub
			}
			rec.sent = true
			e.emit(e.sendPacket(now, pkt))
		}
	}
}

func (e *Engine) handleAuth(now Instant, p wire.AuthPacket) {
	hasMethod := e.session.AuthenticationMethod != ""
	exchangeInFlight := e.state == ConnectingWithAuth ||
		(e.state == ConnectingWithoutAuth && hasMethod) ||
		(e.state == Connected && e.session.pendingReauth)

	if !exchangeInFlight {
		// An unsolicited AUTH with no enhanced-auth exchange in progress is
		// a protocol error, not something to silently ignore.
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: AUTH received with no enhanced-auth exchange in progress"))
		return
	}
	if p.Properties != nil && p.Properties.HasAuthenticationMethod() && p.Properties.AuthenticationMethod != e.session.AuthenticationMethod {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: AUTH authentication method mismatch"))
		return
	}

	switch p.Reason {
	case wire.Success:
		switch e.state {
		case ConnectingWithoutAuth, ConnectingWithAuth:
			e.finishConnect(now, false, p.Properties)
		case Connected:
			e.session.pendingReauth = false
			e.emit(Deliver{Packet: p})
		default:
			e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected AUTH(Success) in state %s", e.state))
		}
	case wire.ContinueAuthentication:
		if e.state == ConnectingWithoutAuth {
			e.state = ConnectingWithAuth
		}
		e.emit(Deliver{Packet: p})
	default:
		if e.state != Connected {
			e.state = Disconnected
			e.emit(ConnectFailed{Reason: p.Reason})
			return
		}
		e.fatal(p.Reason, fmt.Errorf("client: AUTH failed with reason 0x%02x", uint8(p.Reason)))
	}
}

// Authenticate sends the next AUTH packet in an enhanced-auth exchange,
// either continuing the CONNECT-time handshake (ConnectingWithAuth) or a
// client-initiated reauthentication (Connected with a prior BeginReauth).
func (e *Engine) Authenticate(now Instant, reason wire.ReasonCode, props *wire.Properties) (Action, error) {
	if e.state != ConnectingWithAuth && !(e.state == Connected && e.session.pendingReauth) {
		return nil, ErrNoAuthExchangeInFlight
	}
	pkt := wire.AuthPacket{Reason: reason, Properties: props}
	if err := e.checkSize(pkt); err != nil {
		return nil, err
	}
	return e.sendPacket(now, pkt), nil
}

// BeginReauth sends an AUTH(ReAuthenticate) packet to start a client-
// initiated reauthentication while already Connected (MQTT v5 §4.12.1).
func (e *Engine) BeginReauth(now Instant, props *wire.Properties) (Action, error) {
	if e.state != Connected {
		return nil, ErrNotConnected
	}
	if e.session.AuthenticationMethod == "" {
		return nil, fmt.Errorf("client: BeginReauth requires an AuthenticationMethod negotiated at CONNECT")
	}
	pkt := wire.AuthPacket{Reason: wire.ReAuthenticate, Properties: props}
	if err := e.checkSize(pkt); err != nil {
		return nil, err
	}
	e.session.pendingReauth = true
	return e.sendPacket(now, pkt), nil
}

func (e *Engine) handlePublish(now Instant, p wire.PublishPacket) {
	if e.state != Connected {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: PUBLISH received while not connected"))
		return
	}
	switch p.QoS {
	case 0:
		e.emit(Deliver{Packet: p})
	case 1:
		e.emit(e.sendPacket(now, wire.PubackPacket{PacketID: p.PacketID, Reason: wire.Success}))
		e.emit(Deliver{Packet: p})
	case 2:
		if _, dup := e.session.inboundQoS2[p.PacketID]; !dup {
			e.session.inboundQoS2[p.PacketID] = p
		}
		e.emit(e.sendPacket(now, wire.PubrecPacket{PacketID: p.PacketID, Reason: wire.Success}))
	}
}

func (e *Engine) handlePubrel(now Instant, p wire.PubrelPacket) {
	orig, ok := e.session.inboundQoS2[p.PacketID]
	delete(e.session.inboundQoS2, p.PacketID)
	// PUBCOMP must be sent regardless of whether we still hold the
	// matching inbound record, so a retransmitted PUBREL after we've
	// already delivered and forgotten it still completes cleanly.
	e.emit(e.sendPacket(now, wire.PubcompPacket{PacketID: p.PacketID, Reason: wire.Success}))
	if ok {
		e.emit(Deliver{Packet: orig})
	}
}

func (e *Engine) handlePuback(p wire.PubackPacket) {
	rec, ok := e.session.outstanding[p.PacketID]
	if !ok || rec.flow != flowPublishQoS1 {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected PUBACK for id %d", p.PacketID))
		return
	}
	e.session.release(p.PacketID)
	rec.completePublish(p.Reason)
}

func (e *Engine) handlePubrec(now Instant, p wire.PubrecPacket) {
	rec, ok := e.session.outstanding[p.PacketID]
	if !ok || rec.flow != flowPublishQoS2AwaitPubrec {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected PUBREC for id %d", p.PacketID))
		return
	}
	if p.Reason.IsError() {
		e.session.release(p.PacketID)
		rec.completePublish(p.Reason)
		return
	}
	if rec.publishReceived != nil {
		close(rec.publishReceived)
		rec.publishReceived = nil
	}
	pubrel := wire.PubrelPacket{PacketID: p.PacketID, Reason: wire.Success}
	rec.flow = flowPublishQoS2AwaitPubcomp
	rec.pkt = pubrel
	e.emit(e.sendPacket(now, pubrel))
}

func (e *Engine) handlePubcomp(p wire.PubcompPacket) {
	rec, ok := e.session.outstanding[p.PacketID]
	if !ok || rec.flow != flowPublishQoS2AwaitPubcomp {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected PUBCOMP for id %d", p.PacketID))
		return
	}
	e.session.release(p.PacketID)
	rec.completePublish(p.Reason)
}

func (e *Engine) handleSuback(p wire.SubackPacket) {
	rec, ok := e.session.outstanding[p.PacketID]
	if !ok || rec.flow != flowSubscribe {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected SUBACK for id %d", p.PacketID))
		return
	}
	e.session.release(p.PacketID)
	rec.completeSubscribe(p.ReasonCodes)
}

func (e *Engine) handleUnsuback(p wire.UnsubackPacket) {
	rec, ok := e.session.outstanding[p.PacketID]
	if !ok || rec.flow != flowUnsubscribe {
		e.fatal(wire.ProtocolErrorCode, fmt.Errorf("client: unexpected UNSUBACK for id %d", p.PacketID))
		return
	}
	e.session.release(p.PacketID)
	rec.completeUnsubscribe(p.ReasonCodes)
}

func (e *Engine) handleDisconnect(p wire.DisconnectPacket) {
	e.state = Disconnected
	e.emit(Closed{Reason: p.Reason})
}

func (e *Engine) drainQueuedPublishes(now Instant) {
	for len(e.session.queued) > 0 && e.session.sentPublishCount() < int(e.session.ReceiveMaximum) {
		id := e.session.queued[0]
		e.session.queued = e.session.queued[1:]
		rec, ok := e.session.outstanding[id]
		if !ok {
			continue
		}
		rec.sent = true
		e.emit(e.sendPacket(now, rec.pkt))
	}
}

func (e *Engine) maybeKeepAlive(now Instant) (Action, bool) {
	if e.session.KeepAlive == 0 {
		return nil, false
	}
	if now < e.session.lastPacketSentAt.Add(e.session.KeepAlive) {
		return nil, false
	}
	e.session.pingOutstanding = true
	return e.sendPacket(now, wire.PingreqPacket{}), true
}

// PublishParams configures Engine.Publish.
type PublishParams struct {
	Topic      string
	Payload    []byte
	QoS        uint8
	Retain     bool
	Properties *wire.Properties
}

// Publish begins a publish flow. For QoS 0 the returned Publication is nil
// (there is no acknowledgement to wait for); for QoS 1/2 its Done channel
// completes on PUBACK/PUBCOMP. The returned Action is nil when the flow
// had to be queued behind the server's ReceiveMaximum; the caller must
// keep calling Run to discover when it is eventually sent.
func (e *Engine) Publish(now Instant, p PublishParams) (Action, *Publication, error) {
	if e.state != Connected {
		return nil, nil, ErrNotConnected
	}
	if p.Retain && !e.session.RetainAvailable {
		return nil, nil, ErrRetainNotAvailable
	}
	if p.QoS > e.session.MaximumQoS {
		return nil, nil, ErrQoSNotSupported
	}

	if p.QoS == 0 {
		pkt := wire.PublishPacket{Topic: p.Topic, Payload: p.Payload, Retain: p.Retain, Properties: p.Properties}
		if err := e.checkSize(pkt); err != nil {
			return nil, nil, err
		}
		return e.sendPacket(now, pkt), nil, nil
	}

	id, ok := e.session.ids.GetNextFree(idstore.Publish)
	if !ok {
		return nil, nil, ErrIdentifiersExhausted
	}
	pkt := wire.PublishPacket{QoS: p.QoS, Retain: p.Retain, Topic: p.Topic, PacketID: id, Properties: p.Properties, Payload: p.Payload}
	if err := e.checkSize(pkt); err != nil {
		e.session.ids.Release(id)
		return nil, nil, err
	}

	flow := flowPublishQoS1
	if p.QoS == 2 {
		flow = flowPublishQoS2AwaitPubrec
	}
	rec := newPublishRecord(id, flow, pkt)
	e.session.addOutstanding(rec)

	if e.session.sentPublishCount() >= int(e.session.ReceiveMaximum) {
		e.session.queued = append(e.session.queued, id)
		return nil, rec.publication(), nil
	}
	rec.sent = true
	return e.sendPacket(now, pkt), rec.publication(), nil
}

// SubscribeParams configures Engine.Subscribe.
type SubscribeParams struct {
	Subscriptions []wire.SubscriptionRequest
	Properties    *wire.Properties
}

// Subscribe serializes SUBSCRIBE with a newly allocated non-publish
// identifier and records the pending subscription.
func (e *Engine) Subscribe(now Instant, p SubscribeParams) (Action, *Subscription, error) {
	if e.state != Connected {
		return nil, nil, ErrNotConnected
	}
	if len(p.Subscriptions) == 0 {
		return nil, nil, ErrEmptySubscribeRequest
	}
	id, ok := e.session.ids.GetNextFree(idstore.NonPublish)
	if !ok {
		return nil, nil, ErrIdentifiersExhausted
	}
	pkt := wire.SubscribePacket{PacketID: id, Subscriptions: p.Subscriptions, Properties: p.Properties}
	if err := e.checkSize(pkt); err != nil {
		e.session.ids.Release(id)
		return nil, nil, err
	}
	rec := newSubscribeRecord(id, pkt)
	e.session.addOutstanding(rec)
	return e.sendPacket(now, pkt), rec.subscription(), nil
}

// UnsubscribeParams configures Engine.Unsubscribe.
type UnsubscribeParams struct {
	Filters    []string
	Properties *wire.Properties
}

// Unsubscribe serializes UNSUBSCRIBE with a newly allocated non-publish
// identifier.
func (e *Engine) Unsubscribe(now Instant, p UnsubscribeParams) (Action, *Unsubscription, error) {
	if e.state != Connected {
		return nil, nil, ErrNotConnected
	}
	if len(p.Filters) == 0 {
		return nil, nil, ErrEmptySubscribeRequest
	}
	id, ok := e.session.ids.GetNextFree(idstore.NonPublish)
	if !ok {
		return nil, nil, ErrIdentifiersExhausted
	}
	pkt := wire.UnsubscribePacket{PacketID: id, Filters: p.Filters, Properties: p.Properties}
	if err := e.checkSize(pkt); err != nil {
		e.session.ids.Release(id)
		return nil, nil, err
	}
	rec := newUnsubscribeRecord(id, pkt)
	e.session.addOutstanding(rec)
	return e.sendPacket(now, pkt), rec.unsubscription(), nil
}

// Ping emits a PINGREQ outside the normal keep-alive timer, for callers
// that want an explicit liveness check.
func (e *Engine) Ping(now Instant) (Action, error) {
	if e.state != Connected {
		return nil, ErrNotConnected
	}
	e.session.pingOutstanding = true
	return e.sendPacket(now, wire.PingreqPacket{}), nil
}

// Disconnect sends a client-initiated DISCONNECT and transitions to
// Disconnected. Session state (outstanding records, identifiers) is left
// untouched: it is resumed on the next HandleConnect with CleanStart=false
// if the server reports SessionPresent=true.
func (e *Engine) Disconnect(now Instant, reason wire.ReasonCode, props *wire.Properties) (Action, error) {
	if e.state == Disconnected {
		return nil, ErrNotConnected
	}
	pkt := wire.DisconnectPacket{Reason: reason, Properties: props}
	if err := e.checkSize(pkt); err != nil {
		return nil, err
	}
	e.state = Disconnected
	return e.sendPacket(now, pkt), nil
}
