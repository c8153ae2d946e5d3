package transport

import (
	"sync"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/ibusgw/protocol"
)

// Receiver is the host receive path. It classifies the incoming byte stream
// into packets, acknowledges queued packets whose echo it sees, and hands every
// packet to the registered callbacks.
type Receiver struct {
	rx    *proto.Receiver
	queue *Queue

	mu        sync.Mutex
	callbacks map[proto.Address]func(proto.Packet)
	fallback  func(proto.Packet)

	observer Observer
	log      zerolog.Logger
}

// NewReceiver creates a receive path that acknowledges packets queued in q.
// Partial packets survive one quiet tick, since host ticks are not restarted by
// incoming bytes.
func NewReceiver(q *Queue, opts ...Option) *Receiver {
	cfg := newConfig(opts)
	r := &Receiver{
		queue:     q,
		callbacks: make(map[proto.Address]func(proto.Packet)),
		observer:  cfg.Observer,
		log:       cfg.Logger,
	}
	// the host must see the echo of anything the queue accepts
	rxOpts := []proto.ReceiverOption{proto.WithRearm(), proto.WithCapacity(proto.MaxPacketSize)}
	if cfg.StrictChecksum {
		rxOpts = append(rxOpts, proto.WithChecksum())
	}
	r.rx = proto.NewReceiver(r.process, rxOpts...)
	return r
}

// RegisterCallback sets the callback for packets sent by src. Callbacks run on
// the transmitter goroutine and receive a private copy of the packet.
func (r *Receiver) RegisterCallback(src proto.Address, cb func(proto.Packet)) {
	r.mu.Lock()
	r.callbacks[src] = cb
	r.mu.Unlock()
}

// RegisterDefault sets the callback for packets from sources without their own.
func (r *Receiver) RegisterDefault(cb func(proto.Packet)) {
	r.mu.Lock()
	r.fallback = cb
	r.mu.Unlock()
}

// Feed classifies received bytes.
func (r *Receiver) Feed(data []byte) {
	_, _ = r.rx.Write(data)
}

// Tick expires a partial packet that has gone quiet.
func (r *Receiver) Tick() { r.rx.Tick() }

// Pending reports whether a packet is partially received.
func (r *Receiver) Pending() bool { return r.rx.Pending() }

func (r *Receiver) Stats() proto.ReceiverStats { return r.rx.Stats() }

func (r *Receiver) process(p proto.Packet) {
	p = p.Clone()

	echo := r.queue != nil && r.queue.RemoveMatching(p)
	r.log.Debug().
		Stringer("src", p.Source()).
		Stringer("dst", p.Dest()).
		Hex("data", p).
		Bool("echo", echo).
		Msg("packet")

	if r.observer != nil {
		r.observer.ObserveRx(p)
	}

	r.mu.Lock()
	cb, ok := r.callbacks[p.Source()]
	if !ok {
		cb = r.fallback
	}
	r.mu.Unlock()

	if cb != nil {
		cb(p)
	}
}
