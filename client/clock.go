package client

// Instant is a monotonic count of seconds since an arbitrary epoch chosen
// by the caller. The engine never reads the wall clock itself — every
// operation that needs "now" takes one as a parameter, keeping the engine
// a pure step function that never awaits anything on its own.
type Instant uint64

// Add returns the instant secs seconds after i.
func (i Instant) Add(secs uint16) Instant { return i + Instant(secs) }
