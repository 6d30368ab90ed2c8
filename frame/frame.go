// Package frame implements the stateful byte-stream-to-packet-stream
// decoder that sits in front of package wire's one-shot Parse. It owns no
// transport of its own: callers feed it bytes as they arrive and it
// reports how much more it needs.
package frame

import "github.com/cloudmqtt/enginego/wire"

// Decoder accumulates bytes read from a transport and splits them into
// complete MQTT control packets. The zero value is ready to use.
//
// Decoder never returns a Packet that outlives the byte slice it was
// parsed from: each call to Decode that yields a packet first copies
// exactly that packet's bytes into their own buffer before parsing, so a
// caller is free to reuse or overwrite whatever buffer it read into.
type Decoder struct {
	buf []byte
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Decode attempts to split one complete packet off the front of the
// accumulated buffer and parse it.
//
//   - (packet, true, nil): a packet was decoded; its bytes have been
//     removed from the internal buffer. Call Decode again immediately in
//     case a second packet is already buffered.
//   - (nil, false, nil): not enough bytes yet; the caller must Feed more
//     and try again.
//   - (nil, false, err): the stream is malformed (the remaining-length
//     integer overruns four bytes) or the packet itself failed to parse.
//     This is always fatal: the caller MUST terminate the transport after
//     reporting err.
func (d *Decoder) Decode() (wire.Packet, bool, error) {
	if len(d.buf) < 2 {
		return nil, false, nil
	}

	fh, headerLen, err := wire.ParseFixedHeader(d.buf)
	if err != nil {
		if _, incomplete := err.(*wire.IncompleteError); incomplete {
			return nil, false, nil
		}
		return nil, false, err
	}

	total := headerLen + fh.RemainingLength
	if len(d.buf) < total {
		return nil, false, nil
	}

	owned := make([]byte, total)
	copy(owned, d.buf[:total])
	d.buf = d.buf[total:]

	pkt, err := wire.Parse(owned)
	if err != nil {
		return nil, false, err
	}
	return pkt, true, nil
}

// Pending reports how many bytes are currently buffered, waiting on a
// packet boundary. Exposed for callers enforcing a maximum incoming
// packet size ahead of a full parse.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
