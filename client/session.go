package client

import (
	"hash/fnv"

	"github.com/cloudmqtt/enginego/idstore"
	"github.com/cloudmqtt/enginego/wire"
)

// defaultReceiveMaximum is the value MQTT v5 mandates when the server's
// CONNACK omits the ReceiveMaximum property.
const defaultReceiveMaximum = 65535

// Session holds everything that is orthogonal to connection State and, when
// CleanStart=No, survives a transport reconnect. Engine owns exactly one
// Session and touches it only from within a single goroutine.
type Session struct {
	// clientIDHash is an FNV-1a hash of the negotiated client identifier,
	// kept only for equality checks so the identifier itself never has to
	// be retained in memory longer than the CONNECT that carries it.
	clientIDHash uint64

	cleanStart bool

	KeepAlive             uint16
	ReceiveMaximum        uint16
	MaximumPacketSize     uint32
	MaximumQoS            uint8
	RetainAvailable       bool
	TopicAliasMaximum     uint16
	SessionExpiryInterval uint32
	AuthenticationMethod  string

	ids         idstore.Store
	outstanding map[uint16]*outstandingRecord
	order       []uint16 // allocation order, for reconnect retransmission
	queued      []uint16 // ids allocated but not yet sent (ReceiveMaximum backlog)

	inboundQoS2 map[uint16]wire.PublishPacket

	lastPacketSentAt Instant
	pingOutstanding  bool
	pendingReauth    bool
}

func newSession() *Session {
	return &Session{
		MaximumQoS:      2,
		RetainAvailable: true,
		ReceiveMaximum:  defaultReceiveMaximum,
		outstanding:     make(map[uint16]*outstandingRecord),
		inboundQoS2:     make(map[uint16]wire.PublishPacket),
	}
}

func hashClientID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func (s *Session) addOutstanding(r *outstandingRecord) {
	s.outstanding[r.id] = r
	s.order = append(s.order, r.id)
}

// release drops id's outstanding record and its place in allocation order,
// and frees the identifier itself. It does not complete the record's
// channel; callers do that first with the terminal reason.
func (s *Session) release(id uint16) {
	delete(s.outstanding, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.ids.Release(id)
}

// sentPublishCount counts outstanding, already-sent PUBLISH flows, the
// quantity ReceiveMaximum bounds.
func (s *Session) sentPublishCount() int {
	n := 0
	for _, id := range s.order {
		r := s.outstanding[id]
		if r.sent && (r.flow == flowPublishQoS1 || r.flow == flowPublishQoS2AwaitPubrec || r.flow == flowPublishQoS2AwaitPubcomp) {
			n++
		}
	}
	return n
}

// reset discards all session state: every outstanding flow is dropped
// (after failing its completion channel with ErrSessionReset), every
// packet identifier is freed, and every deferred inbound QoS 2 record is
// cleared. CleanStart=Yes (or a CONNACK with SessionPresent=false) discards
// all session state, not merely the non-publish identifier half
// idstore.ReleaseNonPublishSlots covers on its own.
func (s *Session) reset() {
	for _, id := range s.order {
		r := s.outstanding[id]
		switch r.flow {
		case flowPublishQoS1, flowPublishQoS2AwaitPubrec, flowPublishQoS2AwaitPubcomp:
			r.failPublish(ErrSessionReset)
		case flowSubscribe:
			r.failSubscribe(ErrSessionReset)
		case flowUnsubscribe:
			r.failUnsubscribe(ErrSessionReset)
		}
	}
	s.ids = idstore.Store{}
	s.outstanding = make(map[uint16]*outstandingRecord)
	s.order = nil
	s.queued = nil
	s.inboundQoS2 = make(map[uint16]wire.PublishPacket)
}
