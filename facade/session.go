// Package facade wraps the sans-I/O client.Engine with a real transport and
// a background-task-plus-channels concurrency model: a single goroutine
// owns the Engine and the connection's write side, a second goroutine owns
// the read side and feeds it decoded packets, and application-facing
// methods push requests through a channel rather than touching the Engine
// directly.
package facade

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudmqtt/enginego/client"
	"github.com/cloudmqtt/enginego/frame"
	"github.com/cloudmqtt/enginego/wire"
)

// job is a unit of work the core loop runs with exclusive access to the
// Engine, preserving single-threaded ownership of client state.
type job func(now client.Instant)

// Session is a live MQTT connection: an Engine driven by a background task
// reading and writing a net.Conn. Construct with Dial.
type Session struct {
	conn   net.Conn
	engine *client.Engine
	logger *slog.Logger

	onMessage func(wire.PublishPacket)
	onAuth    func(wire.AuthPacket)

	dec      frame.Decoder
	incoming chan wire.Packet
	requests chan job

	stop     chan struct{}
	closeErr error
	once     sync.Once
	wg       sync.WaitGroup

	start time.Time
	state atomic.Int32

	mu               sync.Mutex
	assignedClientID string
}

// Dial opens a TCP (or TLS, via WithTLS) connection to address, performs
// the CONNECT/CONNACK (or enhanced-auth) handshake synchronously, and, on
// success, starts the background reader and core-loop goroutines.
func Dial(ctx context.Context, address string, params client.ConnectParams, opts ...Option) (*Session, error) {
	cfg := defaultOptions()
	for _, o := range opts {
		o(cfg)
	}

	if cfg.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.dialTimeout)
		defer cancel()
	}

	conn, err := cfg.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if cfg.tlsConfig != nil {
		conn = tls.Client(conn, cfg.tlsConfig)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	s := &Session{
		conn:      conn,
		engine:    client.New(),
		logger:    cfg.logger,
		onMessage: cfg.onMessage,
		onAuth:    cfg.onAuth,
		incoming:  make(chan wire.Packet, cfg.incomingBuffer),
		requests:  make(chan job),
		stop:      make(chan struct{}),
		start:     time.Now(),
	}

	if err := s.handshake(params); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	s.wg.Add(2)
	go s.readLoop()
	go s.run()

	return s, nil
}

func (s *Session) now() client.Instant {
	return client.Instant(time.Since(s.start) / time.Second)
}

// handshake drives HandleConnect and reads directly off conn until the
// Engine reaches Connected or the connection attempt fails. It runs before
// the background goroutines exist, so it owns the Engine and s.dec
// exclusively; readLoop continues from wherever s.dec leaves off.
func (s *Session) handshake(params client.ConnectParams) error {
	action, err := s.engine.HandleConnect(s.now(), params)
	if err != nil {
		return err
	}
	if err := s.writeAction(action); err != nil {
		return err
	}
	s.drain()

	buf := make([]byte, 4096)
	for {
		switch s.engine.State() {
		case client.Connected:
			return nil
		case client.Disconnected:
			return client.ErrConnectionClosed
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			if err := s.drainDecoded(); err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) drainDecoded() error {
	for {
		pkt, ok, err := s.dec.Decode()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.engine.Consume(pkt); err != nil {
			return err
		}
		s.drain()
	}
}

// writeAction dispatches a single Action obtained directly from an Engine
// call (as opposed to one drained from Engine.Run), e.g. the SendPacket
// HandleConnect returns.
func (s *Session) writeAction(a client.Action) error {
	if a == nil {
		return nil
	}
	s.dispatch(a)
	return s.closeErr
}

// drain pulls every ready Action off the Engine and dispatches it.
func (s *Session) drain() {
	s.state.Store(int32(s.engine.State()))
	for {
		a, ok := s.engine.Run(s.now())
		if !ok {
			s.state.Store(int32(s.engine.State()))
			return
		}
		s.dispatch(a)
	}
}

func (s *Session) dispatch(a client.Action) {
	switch act := a.(type) {
	case client.SendPacket:
		if err := s.write(act.Packet); err != nil {
			s.fail(err)
		}
	case client.Deliver:
		switch p := act.Packet.(type) {
		case wire.PublishPacket:
			if s.onMessage != nil {
				s.onMessage(p)
			}
		case wire.AuthPacket:
			if s.onAuth != nil {
				s.onAuth(p)
			}
		}
	case client.SaveClientIdentifier:
		s.mu.Lock()
		s.assignedClientID = act.ClientIdentifier
		s.mu.Unlock()
	case client.ConnectFailed:
		s.logger.Warn("mqtt connect rejected", "reason", act.Reason)
	case client.Closed:
		s.logger.Debug("mqtt session closed", "reason", act.Reason, "error", act.Err)
		s.fail(fmt.Errorf("mqtt: session closed: reason 0x%02x", uint8(act.Reason)))
	}
	s.state.Store(int32(s.engine.State()))
}

func (s *Session) write(p wire.Packet) error {
	_, err := s.conn.Write(wire.Encode(p))
	return err
}

// fail tears down the transport exactly once, waking every goroutine
// blocked on s.stop.
func (s *Session) fail(err error) {
	s.once.Do(func() {
		s.closeErr = err
		close(s.stop)
		s.conn.Close()
	})
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			for {
				pkt, ok, derr := s.dec.Decode()
				if derr != nil {
					s.fail(derr)
					return
				}
				if !ok {
					break
				}
				select {
				case s.incoming <- pkt:
				case <-s.stop:
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("mqtt read error", "error", err)
			}
			s.fail(err)
			return
		}
	}
}

func (s *Session) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case pkt, ok := <-s.incoming:
			if !ok {
				return
			}
			if err := s.engine.Consume(pkt); err != nil {
				s.logger.Error("mqtt consume error", "error", err)
				continue
			}
			s.drain()
		case op := <-s.requests:
			op(s.now())
			s.drain()
		case <-ticker.C:
			s.drain()
		case <-s.stop:
			return
		}
	}
}

// submit hands op to the core loop and blocks until it has been accepted
// (not until it has finished: callers needing the result thread it through
// a channel captured by the closure, as Publish/Subscribe/Unsubscribe do).
func (s *Session) submit(ctx context.Context, op job) error {
	select {
	case s.requests <- op:
		return nil
	case <-s.stop:
		return client.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the Engine's connection state as of the most recently
// processed event. Safe to call from any goroutine.
func (s *Session) State() client.State { return client.State(s.state.Load()) }

// AssignedClientIdentifier returns the identifier the server assigned, if
// the client connected with ServerProvidedClientIdentifier and the server
// supplied one via CONNACK's AssignedClientIdentifier property.
func (s *Session) AssignedClientIdentifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignedClientID
}

// Publish begins a publish flow and waits for it to be accepted by the
// core loop (not for any acknowledgement). For QoS > 0 the returned
// Publication's Done channel later reports the terminal outcome.
func (s *Session) Publish(ctx context.Context, p client.PublishParams) (*client.Publication, error) {
	type result struct {
		pub *client.Publication
		err error
	}
	resCh := make(chan result, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, pub, err := s.engine.Publish(now, p)
		s.writeAction(action)
		resCh <- result{pub, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-resCh:
		return r.pub, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, client.ErrConnectionClosed
	}
}

// Subscribe sends SUBSCRIBE and returns a handle whose Done channel
// reports the server's per-filter reason codes once SUBACK arrives.
func (s *Session) Subscribe(ctx context.Context, p client.SubscribeParams) (*client.Subscription, error) {
	type result struct {
		sub *client.Subscription
		err error
	}
	resCh := make(chan result, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, sub, err := s.engine.Subscribe(now, p)
		s.writeAction(action)
		resCh <- result{sub, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-resCh:
		return r.sub, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, client.ErrConnectionClosed
	}
}

// Unsubscribe sends UNSUBSCRIBE and returns a handle for UNSUBACK.
func (s *Session) Unsubscribe(ctx context.Context, p client.UnsubscribeParams) (*client.Unsubscription, error) {
	type result struct {
		unsub *client.Unsubscription
		err   error
	}
	resCh := make(chan result, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, unsub, err := s.engine.Unsubscribe(now, p)
		s.writeAction(action)
		resCh <- result{unsub, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-resCh:
		return r.unsub, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, client.ErrConnectionClosed
	}
}

// Ping sends a PINGREQ outside the keep-alive timer.
func (s *Session) Ping(ctx context.Context) error {
	errCh := make(chan error, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, err := s.engine.Ping(now)
		s.writeAction(action)
		errCh <- err
	})
	if err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return client.ErrConnectionClosed
	}
}

// Authenticate continues an in-flight enhanced-auth exchange, either the
// CONNECT-time handshake or a reauthentication begun with BeginReauth.
func (s *Session) Authenticate(ctx context.Context, reason wire.ReasonCode, props *wire.Properties) error {
	errCh := make(chan error, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, err := s.engine.Authenticate(now, reason, props)
		s.writeAction(action)
		errCh <- err
	})
	if err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return client.ErrConnectionClosed
	}
}

// BeginReauth starts a client-initiated reauthentication while Connected.
func (s *Session) BeginReauth(ctx context.Context, props *wire.Properties) error {
	errCh := make(chan error, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, err := s.engine.BeginReauth(now, props)
		s.writeAction(action)
		errCh <- err
	})
	if err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return client.ErrConnectionClosed
	}
}

// Disconnect sends a client-initiated DISCONNECT and tears down the
// transport. It does not discard session state: a future Dial with
// CleanStart=false against the same broker may resume it.
func (s *Session) Disconnect(ctx context.Context, reason wire.ReasonCode, props *wire.Properties) error {
	errCh := make(chan error, 1)
	err := s.submit(ctx, func(now client.Instant) {
		action, err := s.engine.Disconnect(now, reason, props)
		s.writeAction(action)
		errCh <- err
	})
	if err != nil {
		return err
	}
	select {
	case err = <-errCh:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		err = nil
	}
	s.fail(client.ErrConnectionClosed)
	s.wg.Wait()
	return err
}

// Close forcibly tears down the transport without sending DISCONNECT.
func (s *Session) Close() error {
	s.fail(client.ErrConnectionClosed)
	s.wg.Wait()
	return nil
}
