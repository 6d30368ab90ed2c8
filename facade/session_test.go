package facade

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cloudmqtt/enginego/client"
	"github.com/cloudmqtt/enginego/frame"
	"github.com/cloudmqtt/enginego/wire"
)

// pipeDialer hands out one fixed net.Conn (the client half of a net.Pipe),
// letting tests stand in a fake broker on the other half without opening a
// real socket.
type pipeDialer struct{ conn net.Conn }

func (d pipeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.conn, nil
}

// fakeBroker reads decoded packets off one net.Pipe half and lets a test
// script respond, exercising Dial against a controllable peer without a
// real TCP listener.
type fakeBroker struct {
	conn net.Conn
	dec  frame.Decoder
}

func newFakeBroker(conn net.Conn) *fakeBroker {
	return &fakeBroker{conn: conn}
}

func (b *fakeBroker) next(t *testing.T) wire.Packet {
	t.Helper()
	buf := make([]byte, 4096)
	for {
		pkt, ok, err := b.dec.Decode()
		if err != nil {
			t.Fatalf("fakeBroker: decode: %v", err)
		}
		if ok {
			return pkt
		}
		n, err := b.conn.Read(buf)
		if err != nil {
			t.Fatalf("fakeBroker: read: %v", err)
		}
		b.dec.Feed(buf[:n])
	}
}

func (b *fakeBroker) send(t *testing.T, p wire.Packet) {
	t.Helper()
	if _, err := b.conn.Write(wire.Encode(p)); err != nil {
		t.Fatalf("fakeBroker: write: %v", err)
	}
}

func dialOverPipe(t *testing.T, params client.ConnectParams, opts ...Option) (*Session, *fakeBroker) {
	t.Helper()
	clientConn, brokerConn := net.Pipe()
	broker := newFakeBroker(brokerConn)

	type dialResult struct {
		sess *Session
		err  error
	}
	resCh := make(chan dialResult, 1)
	go func() {
		sess, err := Dial(context.Background(), "broker.invalid:1883", params, append([]Option{WithDialer(pipeDialer{clientConn})}, opts...)...)
		resCh <- dialResult{sess, err}
	}()

	connectPkt, ok := broker.next(t).(wire.ConnectPacket)
	if !ok {
		t.Fatalf("expected CONNECT, got %T", connectPkt)
	}
	broker.send(t, wire.ConnackPacket{Reason: wire.Success, Properties: &wire.Properties{}})

	select {
	case r := <-resCh:
		if r.err != nil {
			t.Fatalf("Dial: %v", r.err)
		}
		return r.sess, broker
	case <-time.After(2 * time.Second):
		t.Fatal("Dial did not return")
		return nil, nil
	}
}

func minimalParams(t *testing.T) client.ConnectParams {
	t.Helper()
	id, err := client.MinimalClientIdentifier("facadetest")
	if err != nil {
		t.Fatal(err)
	}
	return client.ConnectParams{ClientIdentifier: id, CleanStart: true}
}

func TestDialPerformsHandshakeAndReachesConnected(t *testing.T) {
	sess, _ := dialOverPipe(t, minimalParams(t))
	defer sess.Close()

	if sess.State() != client.Connected {
		t.Fatalf("expected Connected, got %s", sess.State())
	}
}

func TestPublishQoS1RoundTripOverFacade(t *testing.T) {
	sess, broker := dialOverPipe(t, minimalParams(t))
	defer sess.Close()

	type pubResult struct {
		pub *client.Publication
		err error
	}
	resCh := make(chan pubResult, 1)
	go func() {
		pub, err := sess.Publish(context.Background(), client.PublishParams{Topic: "t", QoS: 1, Payload: []byte("hi")})
		resCh <- pubResult{pub, err}
	}()

	pkt := broker.next(t)
	publish, ok := pkt.(wire.PublishPacket)
	if !ok {
		t.Fatalf("expected PUBLISH, got %T", pkt)
	}
	if publish.QoS != 1 || publish.Topic != "t" {
		t.Fatalf("unexpected PUBLISH: %+v", publish)
	}
	broker.send(t, wire.PubackPacket{PacketID: publish.PacketID, Reason: wire.Success, Properties: &wire.Properties{}})

	var pub *client.Publication
	select {
	case r := <-resCh:
		if r.err != nil {
			t.Fatalf("Publish: %v", r.err)
		}
		pub = r.pub
	case <-time.After(2 * time.Second):
		t.Fatal("Publish did not return")
	}

	select {
	case outcome := <-pub.Done:
		if outcome.Err != nil {
			t.Fatalf("unexpected publish outcome error: %v", outcome.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the publish to complete after PUBACK")
	}
}

func TestOnMessageCallbackInvokedForIncomingPublish(t *testing.T) {
	received := make(chan wire.PublishPacket, 1)
	sess, broker := dialOverPipe(t, minimalParams(t), WithOnMessage(func(p wire.PublishPacket) {
		received <- p
	}))
	defer sess.Close()

	broker.send(t, wire.PublishPacket{Topic: "news", Payload: []byte("hello")})

	select {
	case p := <-received:
		if p.Topic != "news" || string(p.Payload) != "hello" {
			t.Fatalf("unexpected delivered packet: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected onMessage to be invoked for the inbound QoS 0 PUBLISH")
	}
}

func TestDisconnectClosesTransportCleanly(t *testing.T) {
	sess, broker := dialOverPipe(t, minimalParams(t))

	done := make(chan error, 1)
	go func() {
		done <- sess.Disconnect(context.Background(), wire.NormalDisconnection, nil)
	}()

	pkt := broker.next(t)
	if _, ok := pkt.(wire.DisconnectPacket); !ok {
		t.Fatalf("expected DISCONNECT, got %T", pkt)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return")
	}
	if sess.State() != client.Disconnected {
		t.Fatalf("expected Disconnected, got %s", sess.State())
	}
}
