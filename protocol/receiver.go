package protocol

// Handler receives every packet the Receiver completes. The packet aliases the
// receiver's buffer and is only valid for the duration of the call; Clone it
// to keep it.
type Handler func(p Packet)

// ReceiverStats counts what the Receiver did with incoming bytes.
type ReceiverStats struct {
	Completed      uint32
	Faulted        uint32 // bytes dropped for parity/framing/overrun errors
	Overflowed     uint32 // bytes dropped because the accumulator was full
	TimedOut       uint32 // partial packets discarded by Tick
	ChecksumFailed uint32 // complete packets dropped in checksum mode
}

// Receiver turns a byte stream into packets. It accumulates bytes until the
// length field announces a complete packet, hands the packet to its handler
// and starts over. Tick discards a partial packet.
//
// A Receiver is not safe for concurrent use; Feed and Tick must not overlap.
type Receiver struct {
	buf     []byte
	size    int
	n       int
	handler Handler

	verify bool
	rearm  bool
	fresh  bool

	stats ReceiverStats
}

type ReceiverOption func(*Receiver)

// WithChecksum drops complete packets whose checksum does not match instead of
// dispatching them. By default only the length field is checked.
func WithChecksum() ReceiverOption {
	return func(r *Receiver) { r.verify = true }
}

// WithRearm makes Tick keep a partial packet if a byte arrived since the
// previous tick, for tick sources that are not restarted on every byte.
func WithRearm() ReceiverOption {
	return func(r *Receiver) { r.rearm = true }
}

// WithCapacity sets the accumulator size. Bytes beyond it are dropped, so
// longer packets never complete. The default is RxBufferSize.
func WithCapacity(n int) ReceiverOption {
	return func(r *Receiver) { r.size = n }
}

func NewReceiver(h Handler, opts ...ReceiverOption) *Receiver {
	r := &Receiver{handler: h, size: RxBufferSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.size < MinPacketSize {
		r.size = MinPacketSize
	}
	if r.size > MaxPacketSize {
		r.size = MaxPacketSize
	}
	r.buf = make([]byte, r.size)
	return r
}

// Feed adds one byte. fault marks a byte received with a line error; such
// bytes are ignored and leave the accumulator untouched.
func (r *Receiver) Feed(b byte, fault bool) {
	if fault {
		r.stats.Faulted++
		return
	}
	r.fresh = true
	if r.n >= len(r.buf) {
		r.stats.Overflowed++
		return
	}
	r.buf[r.n] = b
	r.n++

	if r.n < MinPacketSize || ExpectedSize(r.buf[lengthIndex]) != r.n {
		return
	}

	p := Packet(r.buf[:r.n])
	r.n = 0
	if r.verify && !p.Valid() {
		r.stats.ChecksumFailed++
		return
	}
	r.stats.Completed++
	if r.handler != nil {
		r.handler(p)
	}
}

// Write feeds every byte of p as fault free. It never fails.
func (r *Receiver) Write(p []byte) (int, error) {
	for _, b := range p {
		r.Feed(b, false)
	}
	return len(p), nil
}

// Tick is the inter-byte timeout. It discards any partial packet.
func (r *Receiver) Tick() {
	if r.rearm && r.fresh {
		r.fresh = false
		return
	}
	r.fresh = false
	if r.n > 0 {
		r.stats.TimedOut++
	}
	r.n = 0
}

func (r *Receiver) Reset() {
	r.n = 0
	r.fresh = false
}

// Pending reports whether a packet is partially accumulated.
func (r *Receiver) Pending() bool { return r.n > 0 }

func (r *Receiver) Len() int { return r.n }

func (r *Receiver) Stats() ReceiverStats { return r.stats }
