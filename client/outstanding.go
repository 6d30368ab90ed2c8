package client

import "github.com/cloudmqtt/enginego/wire"

// flowKind identifies what an outstanding packet identifier is waiting for.
type flowKind uint8

const (
	flowPublishQoS1             flowKind = iota // awaiting PUBACK
	flowPublishQoS2AwaitPubrec                  // awaiting PUBREC
	flowPublishQoS2AwaitPubcomp                 // PUBREL sent, awaiting PUBCOMP
	flowSubscribe                                // awaiting SUBACK
	flowUnsubscribe                              // awaiting UNSUBACK
)

// PublishOutcome is delivered on a Publication's Done channel once a QoS 1
// or QoS 2 publish reaches its terminal acknowledgement.
type PublishOutcome struct {
	Reason wire.ReasonCode
	Err    error
}

// Publication is returned by Engine.Publish for QoS > 0. Done receives
// exactly one PublishOutcome when the flow reaches PUBACK (QoS 1) or
// PUBCOMP (QoS 2); Received, present only for QoS 2, closes as soon as
// PUBREC arrives, before the flow is complete. Done is buffered (capacity
// 1) and Received is only ever closed, never sent on, so a caller who drops
// the Publication without ever reading them cannot block the engine.
type Publication struct {
	PacketID uint16
	Received <-chan struct{}
	Done     <-chan PublishOutcome
}

// SubscribeOutcome is delivered on a Subscription's Done channel once
// SUBACK arrives, one ReasonCode per requested filter in request order.
type SubscribeOutcome struct {
	Reasons []wire.ReasonCode
	Err     error
}

// Subscription is returned by Engine.Subscribe.
type Subscription struct {
	PacketID uint16
	Done     <-chan SubscribeOutcome
}

// UnsubscribeOutcome is delivered on an Unsubscription's Done channel once
// UNSUBACK arrives.
type UnsubscribeOutcome struct {
	Reasons []wire.ReasonCode
	Err     error
}

// Unsubscription is returned by Engine.Unsubscribe.
type Unsubscription struct {
	PacketID uint16
	Done     <-chan UnsubscribeOutcome
}

// outstandingRecord is the per-packet-identifier bookkeeping entry: the
// last packet serialized for this flow, kept for retransmission on
// reconnect, plus the one-shot completion channel that wakes the matching
// application future.
type outstandingRecord struct {
	id   uint16
	flow flowKind
	sent bool // false while queued behind ReceiveMaximum
	pkt  wire.Packet

	publishReceived chan struct{}
	publishDone     chan PublishOutcome
	subscribeDone   chan SubscribeOutcome
	unsubscribeDone chan UnsubscribeOutcome
}

func newPublishRecord(id uint16, flow flowKind, pkt wire.PublishPacket) *outstandingRecord {
	r := &outstandingRecord{id: id, flow: flow, pkt: pkt, publishDone: make(chan PublishOutcome, 1)}
	if flow == flowPublishQoS2AwaitPubrec {
		r.publishReceived = make(chan struct{})
	}
	return r
}

func newSubscribeRecord(id uint16, pkt wire.SubscribePacket) *outstandingRecord {
	return &outstandingRecord{id: id, flow: flowSubscribe, sent: true, pkt: pkt, subscribeDone: make(chan SubscribeOutcome, 1)}
}

func newUnsubscribeRecord(id uint16, pkt wire.UnsubscribePacket) *outstandingRecord {
	return &outstandingRecord{id: id, flow: flowUnsubscribe, sent: true, pkt: pkt, unsubscribeDone: make(chan UnsubscribeOutcome, 1)}
}

func (r *outstandingRecord) publication() *Publication {
	return &Publication{PacketID: r.id, Received: r.publishReceived, Done: r.publishDone}
}

func (r *outstandingRecord) subscription() *Subscription {
	return &Subscription{PacketID: r.id, Done: r.subscribeDone}
}

func (r *outstandingRecord) unsubscription() *Unsubscription {
	return &Unsubscription{PacketID: r.id, Done: r.unsubscribeDone}
}

// completePublish sends the terminal outcome and marks Received closed if
// it hadn't been already (a PUBACK on a QoS 1 flow has no separate "received"
// signal, so this is a no-op for QoS 1).
func (r *outstandingRecord) completePublish(reason wire.ReasonCode) {
	if r.publishReceived != nil {
		select {
		case <-r.publishReceived:
		default:
			close(r.publishReceived)
		}
	}
	r.publishDone <- PublishOutcome{Reason: reason, Err: reasonErr(reason)}
}

func (r *outstandingRecord) failPublish(err error) {
	if r.publishReceived != nil {
		select {
		case <-r.publishReceived:
		default:
			close(r.publishReceived)
		}
	}
	r.publishDone <- PublishOutcome{Err: err}
}

func (r *outstandingRecord) completeSubscribe(reasons []wire.ReasonCode) {
	var err error
	for _, rc := range reasons {
		if rc.IsError() {
			err = &ReasonError{Reason: rc}
			break
		}
	}
	r.subscribeDone <- SubscribeOutcome{Reasons: reasons, Err: err}
}

func (r *outstandingRecord) failSubscribe(err error) {
	r.subscribeDone <- SubscribeOutcome{Err: err}
}

func (r *outstandingRecord) completeUnsubscribe(reasons []wire.ReasonCode) {
	var err error
	for _, rc := range reasons {
		if rc.IsError() {
			err = &ReasonError{Reason: rc}
			break
		}
	}
	r.unsubscribeDone <- UnsubscribeOutcome{Reasons: reasons, Err: err}
}

func (r *outstandingRecord) failUnsubscribe(err error) {
	r.unsubscribeDone <- UnsubscribeOutcome{Err: err}
}
