package facade

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/cloudmqtt/enginego/wire"
)

// ContextDialer is the network-dialing interface Dial uses, matching
// net.Dialer's signature so a caller can substitute a proxying or
// rate-limited dialer without the façade depending on anything concrete.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type options struct {
	dialer         ContextDialer
	tlsConfig      *tls.Config
	logger         *slog.Logger
	onMessage      func(wire.PublishPacket)
	onAuth         func(wire.AuthPacket)
	dialTimeout    time.Duration
	incomingBuffer int
}

func defaultOptions() *options {
	return &options{
		dialer:         &net.Dialer{},
		logger:         slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		dialTimeout:    10 * time.Second,
		incomingBuffer: 32,
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Option configures Dial.
type Option func(*options)

// WithDialer overrides the ContextDialer used to open the transport.
func WithDialer(d ContextDialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTLS dials with tls.Client wrapped around the underlying connection.
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) { o.tlsConfig = cfg }
}

// WithLogger sets the structured logger the session reports activity to.
// The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOnMessage registers the callback invoked from the background task for
// every application message the engine surfaces via a Deliver action
// (QoS 0 immediately, QoS 1/2 only once the delivery handshake completes).
func WithOnMessage(fn func(wire.PublishPacket)) Option {
	return func(o *options) { o.onMessage = fn }
}

// WithOnAuth registers the callback invoked for every AUTH(ContinueAuthentication)
// challenge the engine surfaces mid-exchange (either at CONNECT time or
// during a client-initiated reauthentication started with BeginReauth).
// The caller is expected to answer it via Session.Authenticate.
func WithOnAuth(fn func(wire.AuthPacket)) Option {
	return func(o *options) { o.onAuth = fn }
}

// WithDialTimeout bounds how long Dial waits for the TCP handshake plus the
// CONNECT/CONNACK exchange.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithIncomingBuffer sets the channel depth between the reader goroutine
// and the session's single-threaded core loop.
func WithIncomingBuffer(n int) Option {
	return func(o *options) { o.incomingBuffer = n }
}
