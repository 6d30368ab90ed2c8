package client

import (
	"errors"
	"testing"

	"github.com/cloudmqtt/enginego/wire"
)

func mustMinimalID(t *testing.T, s string) ClientIdentifier {
	t.Helper()
	id, err := MinimalClientIdentifier(s)
	if err != nil {
		t.Fatalf("MinimalClientIdentifier(%q): %v", s, err)
	}
	return id
}

// TestHandleConnectFromDisconnected checks that, from Disconnected,
// HandleConnect emits exactly one SendPacket(CONNECT) and transitions to
// ConnectingWithoutAuth.
func TestHandleConnectFromDisconnected(t *testing.T) {
	e := New()
	keepAlive, _ := KeepAliveSeconds(10)
	action, err := e.HandleConnect(0, ConnectParams{
		ClientIdentifier: mustMinimalID(t, "c"),
		CleanStart:       true,
		KeepAlive:        keepAlive,
	})
	if err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}
	send, ok := action.(SendPacket)
	if !ok {
		t.Fatalf("expected SendPacket, got %T", action)
	}
	connect, ok := send.Packet.(wire.ConnectPacket)
	if !ok {
		t.Fatalf("expected ConnectPacket, got %T", send.Packet)
	}
	if connect.ClientIdentifier != "c" || !connect.CleanStart || connect.KeepAlive != 10 {
		t.Fatalf("unexpected CONNECT: %+v", connect)
	}
	if e.State() != ConnectingWithoutAuth {
		t.Fatalf("expected ConnectingWithoutAuth, got %s", e.State())
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("expected no further action queued after HandleConnect")
	}
}

// TestHandleConnectPreconditionViolated enforces the precondition that
// HandleConnect requires Disconnected.
func TestHandleConnectPreconditionViolated(t *testing.T) {
	e := connectedEngine(t)
	if _, err := e.HandleConnect(0, ConnectParams{ClientIdentifier: mustMinimalID(t, "c")}); !errors.Is(err, ErrAlreadyConnecting) {
		t.Fatalf("expected ErrAlreadyConnecting, got %v", err)
	}
}

// connectedEngine drives a minimal CONNECT/CONNACK exchange and returns the
// resulting Connected engine.
func connectedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	if _, err := e.HandleConnect(0, ConnectParams{
		ClientIdentifier: mustMinimalID(t, "c"),
		CleanStart:       true,
	}); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}
	if err := e.Consume(wire.ConnackPacket{SessionPresent: false, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if a, ok := e.Run(0); ok {
		t.Fatalf("no action (in particular no SaveClientIdentifier) expected when the server did not assign an identifier, got %T", a)
	}
	if e.State() != Connected {
		t.Fatalf("expected Connected, got %s", e.State())
	}
	return e
}

// TestMinimalConnectConnack exercises the baseline CONNECT/CONNACK exchange.
func TestMinimalConnectConnack(t *testing.T) {
	connectedEngine(t)
}

// TestConnackRejectionSurfacesConnectFailed covers the ConnectingWithoutAuth
// -> Disconnected transition on a non-Success CONNACK.
func TestConnackRejectionSurfacesConnectFailed(t *testing.T) {
	e := New()
	if _, err := e.HandleConnect(0, ConnectParams{ClientIdentifier: mustMinimalID(t, "c"), CleanStart: true}); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}
	if err := e.Consume(wire.ConnackPacket{Reason: wire.NotAuthorized, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected an action")
	}
	failed, ok := a.(ConnectFailed)
	if !ok {
		t.Fatalf("expected ConnectFailed, got %T", a)
	}
	if failed.Reason != wire.NotAuthorized {
		t.Fatalf("unexpected reason: %v", failed.Reason)
	}
	if e.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", e.State())
	}
}

// TestQoS1Publish drives a QoS 1 publish flow from request through PUBACK.
func TestQoS1Publish(t *testing.T) {
	e := connectedEngine(t)

	action, pub, err := e.Publish(0, PublishParams{Topic: "t", QoS: 1, Payload: []byte{0x7B}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if pub.PacketID != 1 {
		t.Fatalf("expected first allocated id to be 1, got %d", pub.PacketID)
	}
	send := action.(SendPacket)
	publish := send.Packet.(wire.PublishPacket)
	if publish.PacketID != 1 || publish.QoS != 1 {
		t.Fatalf("unexpected PUBLISH: %+v", publish)
	}

	if err := e.Consume(wire.PubackPacket{PacketID: 1, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("PUBACK produces no further Action")
	}

	select {
	case outcome := <-pub.Done:
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
	default:
		t.Fatal("expected Done to be ready")
	}
	if e.Session().ids.Contains(1) {
		t.Fatal("expected id 1 to be released after PUBACK")
	}
}

// TestQoS2Publish drives a QoS 2 publish flow through PUBREC/PUBREL/PUBCOMP.
func TestQoS2Publish(t *testing.T) {
	e := connectedEngine(t)

	action, pub, err := e.Publish(0, PublishParams{Topic: "t", QoS: 2, Payload: []byte{0x7B}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, ok := action.(SendPacket).Packet.(wire.PublishPacket); !ok {
		t.Fatalf("expected PUBLISH action, got %+v", action)
	}

	if err := e.Consume(wire.PubrecPacket{PacketID: 1, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected SendPacket(PUBREL)")
	}
	pubrel, ok := a.(SendPacket).Packet.(wire.PubrelPacket)
	if !ok || pubrel.PacketID != 1 {
		t.Fatalf("expected PUBREL(1), got %+v", a)
	}
	select {
	case <-pub.Received:
	default:
		t.Fatal("expected Received to be closed after PUBREC")
	}

	if err := e.Consume(wire.PubcompPacket{PacketID: 1, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("PUBCOMP produces no further Action")
	}
	select {
	case outcome := <-pub.Done:
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
	default:
		t.Fatal("expected Done to be ready")
	}
}

// TestInboundQoS2DeferredDelivery checks that an inbound QoS 2 payload is
// not surfaced until PUBREL arrives, and PUBCOMP follows, exactly once.
func TestInboundQoS2DeferredDelivery(t *testing.T) {
	e := connectedEngine(t)

	if err := e.Consume(wire.PublishPacket{QoS: 2, PacketID: 5, Topic: "t", Payload: []byte("hi")}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected PUBREC")
	}
	if pubrec, ok := a.(SendPacket).Packet.(wire.PubrecPacket); !ok || pubrec.PacketID != 5 {
		t.Fatalf("expected PUBREC(5), got %+v", a)
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("no Deliver yet: PUBREL has not arrived")
	}

	if err := e.Consume(wire.PubrelPacket{PacketID: 5, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok = e.Run(0)
	if !ok {
		t.Fatal("expected PUBCOMP")
	}
	if pubcomp, ok := a.(SendPacket).Packet.(wire.PubcompPacket); !ok || pubcomp.PacketID != 5 {
		t.Fatalf("expected PUBCOMP(5), got %+v", a)
	}
	a, ok = e.Run(0)
	if !ok {
		t.Fatal("expected Deliver after PUBREL")
	}
	deliver, ok := a.(Deliver)
	if !ok {
		t.Fatalf("expected Deliver, got %T", a)
	}
	if deliver.Packet.(wire.PublishPacket).Payload == nil {
		t.Fatal("expected original payload to be delivered")
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("expected no further action")
	}
}

// TestRetainedPublishRejected checks that a retained publish is rejected
// locally when the server never advertised retain support.
func TestRetainedPublishRejected(t *testing.T) {
	e := connectedEngine(t)
	e.Session().RetainAvailable = false

	action, pub, err := e.Publish(0, PublishParams{Topic: "t", Retain: true, QoS: 0})
	if !errors.Is(err, ErrRetainNotAvailable) {
		t.Fatalf("expected ErrRetainNotAvailable, got %v", err)
	}
	if action != nil || pub != nil {
		t.Fatalf("expected no action or publication, got %v %v", action, pub)
	}
}

// TestPublishQoSAboveMaximumQoSRejected covers the MaximumQoS edge case.
func TestPublishQoSAboveMaximumQoSRejected(t *testing.T) {
	e := connectedEngine(t)
	e.Session().MaximumQoS = 1

	if _, _, err := e.Publish(0, PublishParams{Topic: "t", QoS: 2}); !errors.Is(err, ErrQoSNotSupported) {
		t.Fatalf("expected ErrQoSNotSupported, got %v", err)
	}
}

// TestPacketTooLarge covers MaximumPacketSize enforcement.
func TestPacketTooLarge(t *testing.T) {
	e := connectedEngine(t)
	e.Session().MaximumPacketSize = 4

	if _, _, err := e.Publish(0, PublishParams{Topic: "t", QoS: 0, Payload: []byte("this payload is too large")}); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
}

// TestIdentifierReleasedOnlyOnTerminalAck checks that dropping the
// application future (never reading Done) does not release the identifier
// early; only the terminal ack does.
func TestIdentifierReleasedOnlyOnTerminalAck(t *testing.T) {
	e := connectedEngine(t)
	_, pub, err := e.Publish(0, PublishParams{Topic: "t", QoS: 1})
	if err != nil {
		t.Fatal(err)
	}
	_ = pub // future "dropped": never read from pub.Done

	if !e.Session().ids.Contains(1) {
		t.Fatal("id must remain allocated until PUBACK")
	}
	if err := e.Consume(wire.PubackPacket{PacketID: 1, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	e.Run(0)
	if e.Session().ids.Contains(1) {
		t.Fatal("id must be released after PUBACK even if the future was never read")
	}
}

// TestReceiveMaximumQueuesExcessPublishes checks that publishes beyond
// ReceiveMaximum are queued until an outstanding record terminates.
func TestReceiveMaximumQueuesExcessPublishes(t *testing.T) {
	e := connectedEngine(t)
	rm := uint16(1)
	e.Session().ReceiveMaximum = rm

	a1, pub1, err := e.Publish(0, PublishParams{Topic: "t", QoS: 1})
	if err != nil || a1 == nil {
		t.Fatalf("expected first publish to send immediately: %v %v", a1, err)
	}
	a2, pub2, err := e.Publish(0, PublishParams{Topic: "t", QoS: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a2 != nil {
		t.Fatalf("expected second publish to be queued (nil action), got %v", a2)
	}
	if pub2.PacketID != 2 {
		t.Fatalf("expected id 2 allocated even though queued, got %d", pub2.PacketID)
	}

	if err := e.Consume(wire.PubackPacket{PacketID: pub1.PacketID, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected the queued publish to be sent once capacity frees up")
	}
	sent := a.(SendPacket).Packet.(wire.PublishPacket)
	if sent.PacketID != pub2.PacketID {
		t.Fatalf("expected queued PUBLISH(%d) to be sent, got %+v", pub2.PacketID, sent)
	}
}

// TestReconnectRetransmitsOutstandingInOrder checks that, after a
// session-resuming reconnect, every outstanding record is retransmitted in
// original allocation order with DUP=1 on PUBLISH.
func TestReconnectRetransmitsOutstandingInOrder(t *testing.T) {
	e := connectedEngine(t)

	_, _, err := e.Publish(0, PublishParams{Topic: "a", QoS: 1})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = e.Subscribe(0, SubscribeParams{Subscriptions: []wire.SubscriptionRequest{{Filter: "x"}}})
	if err != nil {
		t.Fatal(err)
	}

	// Transport lost; reconnect with CleanStart=false.
	e2 := New()
	e2.session = e.session // simulate the façade reusing the same session across reconnect
	e2.state = Disconnected
	e2.session.cleanStart = false

	if _, err := e2.HandleConnect(10, ConnectParams{ClientIdentifier: mustMinimalID(t, "c"), CleanStart: false}); err != nil {
		t.Fatal(err)
	}
	if err := e2.Consume(wire.ConnackPacket{SessionPresent: true, Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}

	a, ok := e2.Run(10)
	if !ok {
		t.Fatal("expected retransmission of the PUBLISH")
	}
	pub := a.(SendPacket).Packet.(wire.PublishPacket)
	if !pub.Dup || pub.PacketID != 1 {
		t.Fatalf("expected DUP PUBLISH(1), got %+v", pub)
	}

	a, ok = e2.Run(10)
	if !ok {
		t.Fatal("expected retransmission of the SUBSCRIBE")
	}
	sub := a.(SendPacket).Packet.(wire.SubscribePacket)
	if sub.PacketID != 2 {
		t.Fatalf("expected SUBSCRIBE(2) retransmitted second, got %+v", sub)
	}
}

// TestCleanStartDiscardsSession checks that CleanStart=Yes composes
// idstore.ReleaseNonPublishSlots with full session teardown, releasing
// publish identifiers too.
func TestCleanStartDiscardsSession(t *testing.T) {
	e := connectedEngine(t)
	_, pub, err := e.Publish(0, PublishParams{Topic: "a", QoS: 1})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Disconnect(0, wire.NormalDisconnection, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.HandleConnect(0, ConnectParams{ClientIdentifier: mustMinimalID(t, "c"), CleanStart: true}); err != nil {
		t.Fatal(err)
	}

	select {
	case outcome := <-pub.Done:
		if !errors.Is(outcome.Err, ErrSessionReset) {
			t.Fatalf("expected ErrSessionReset, got %v", outcome.Err)
		}
	default:
		t.Fatal("expected the outstanding publish to be failed by CleanStart")
	}
	if e.Session().ids.Contains(1) {
		t.Fatal("expected id 1 released by CleanStart teardown")
	}
}

// TestAuthOutsideHandshakeIsProtocolError checks that an AUTH packet
// received with no enhanced-auth exchange in progress is a ProtocolError,
// not a panic.
func TestAuthOutsideHandshakeIsProtocolError(t *testing.T) {
	e := connectedEngine(t)
	if err := e.Consume(wire.AuthPacket{Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected an action")
	}
	if _, ok := a.(SendPacket).Packet.(wire.DisconnectPacket); !ok {
		t.Fatalf("expected a DISCONNECT to be queued first, got %+v", a)
	}
	a, ok = e.Run(0)
	if !ok {
		t.Fatal("expected Closed")
	}
	closed, ok := a.(Closed)
	if !ok || closed.Reason != wire.ProtocolErrorCode {
		t.Fatalf("expected Closed(ProtocolError), got %+v", a)
	}
	if e.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", e.State())
	}
}

// TestEnhancedAuthHandshake exercises ConnectingWithAuth end to end.
func TestEnhancedAuthHandshake(t *testing.T) {
	e := New()
	if _, err := e.HandleConnect(0, ConnectParams{
		ClientIdentifier:     mustMinimalID(t, "c"),
		CleanStart:           true,
		AuthenticationMethod: "SCRAM-SHA-1",
		AuthenticationData:   []byte("client-first"),
	}); err != nil {
		t.Fatal(err)
	}

	authProps := &wire.Properties{}
	authProps.SetAuthenticationMethod("SCRAM-SHA-1")
	authProps.SetAuthenticationData([]byte("server-first"))
	if err := e.Consume(wire.AuthPacket{Reason: wire.ContinueAuthentication, Properties: authProps}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected a Deliver action surfacing the challenge")
	}
	if _, ok := a.(Deliver); !ok {
		t.Fatalf("expected Deliver, got %T", a)
	}
	if e.State() != ConnectingWithAuth {
		t.Fatalf("expected ConnectingWithAuth, got %s", e.State())
	}

	respProps := &wire.Properties{}
	respProps.SetAuthenticationMethod("SCRAM-SHA-1")
	action, err := e.Authenticate(0, wire.ContinueAuthentication, respProps)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := action.(SendPacket); !ok {
		t.Fatalf("expected SendPacket, got %T", action)
	}

	finalProps := &wire.Properties{}
	finalProps.SetAuthenticationMethod("SCRAM-SHA-1")
	if err := e.Consume(wire.AuthPacket{Reason: wire.Success, Properties: finalProps}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("expected no pending actions from the final AUTH(Success)")
	}
	if e.State() != Connected {
		t.Fatalf("expected Connected, got %s", e.State())
	}
}

// The raw PINGREQ/PINGRESP and DISCONNECT wire round trips live in package
// wire (wire.Encode/wire.Parse); this package exercises the engine-level
// ping and disconnect operations instead.
func TestPingEmitsPingreqAndPingrespSatisfiesIt(t *testing.T) {
	e := connectedEngine(t)
	action, err := e.Ping(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := action.(SendPacket).Packet.(wire.PingreqPacket); !ok {
		t.Fatalf("expected PINGREQ, got %+v", action)
	}
	if !e.Session().pingOutstanding {
		t.Fatal("expected pingOutstanding to be set")
	}
	if err := e.Consume(wire.PingrespPacket{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Run(0); ok {
		t.Fatal("PINGRESP produces no Action")
	}
	if e.Session().pingOutstanding {
		t.Fatal("expected pingOutstanding to be cleared by PINGRESP")
	}
}

func TestKeepAliveEmitsPingreqAfterSilence(t *testing.T) {
	e := New()
	keepAlive, _ := KeepAliveSeconds(10)
	if _, err := e.HandleConnect(0, ConnectParams{ClientIdentifier: mustMinimalID(t, "c"), CleanStart: true, KeepAlive: keepAlive}); err != nil {
		t.Fatal(err)
	}
	if err := e.Consume(wire.ConnackPacket{Reason: wire.Success, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	e.Run(0)

	if _, ok := e.Run(5); ok {
		t.Fatal("keep-alive has not elapsed yet")
	}
	a, ok := e.Run(10)
	if !ok {
		t.Fatal("expected PINGREQ once the keep-alive interval elapses")
	}
	if _, ok := a.(SendPacket).Packet.(wire.PingreqPacket); !ok {
		t.Fatalf("expected PINGREQ, got %+v", a)
	}
}

func TestDisconnectFromServerSurfacesClosed(t *testing.T) {
	e := connectedEngine(t)
	if err := e.Consume(wire.DisconnectPacket{Reason: wire.ServerShuttingDown, Properties: &wire.Properties{}}); err != nil {
		t.Fatal(err)
	}
	a, ok := e.Run(0)
	if !ok {
		t.Fatal("expected Closed")
	}
	closed, ok := a.(Closed)
	if !ok || closed.Reason != wire.ServerShuttingDown {
		t.Fatalf("expected Closed(ServerShuttingDown), got %+v", a)
	}
	if e.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", e.State())
	}
}

func TestConsumeRejectsSecondPacketBeforeRun(t *testing.T) {
	e := connectedEngine(t)
	if err := e.Consume(wire.PingreqPacket{}); err != nil {
		t.Fatal(err)
	}
	if err := e.Consume(wire.PingreqPacket{}); !errors.Is(err, ErrPacketAlreadyQueued) {
		t.Fatalf("expected ErrPacketAlreadyQueued, got %v", err)
	}
}
