package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/ibusgw/protocol"
)

// busyWarnTicks is how many consecutive arbitration failures are tolerated
// before a warning is logged.
const busyWarnTicks = 40

type requestKind int

const (
	reqEnqueue requestKind = iota
	reqCancel
	reqDiscard
	reqLen
)

type request struct {
	kind    requestKind
	msg     []byte
	sync    bool
	prepend bool
	tag     int
	reply   chan result
}

type result struct {
	n   int
	err error
}

// Transmitter owns a bus driver, the transmit queue and the receive path. All
// queue work happens on the goroutine running Run; other goroutines talk to it
// through Send, Cancel and Discard.
type Transmitter struct {
	driver   BusDriver
	cfg      Config
	log      zerolog.Logger
	queue    *Queue
	receiver *Receiver

	requests chan request
	done     chan struct{}
	running  atomic.Bool

	linkDown  bool
	busyTicks int
}

func NewTransmitterWithDriver(d BusDriver, opts ...Option) *Transmitter {
	cfg := newConfig(opts)
	q := NewQueue(opts...)
	return &Transmitter{
		driver:   d,
		cfg:      cfg,
		log:      cfg.Logger,
		queue:    q,
		receiver: NewReceiver(q, opts...),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// Receiver returns the receive path, for registering callbacks before Run.
func (t *Transmitter) Receiver() *Receiver { return t.receiver }

// Send queues msg for delivery. The trailing byte of msg is overwritten with
// the checksum.
func (t *Transmitter) Send(ctx context.Context, msg []byte) error {
	return t.SendWithTag(ctx, msg, false, false, 0)
}

// SendWithTag queues msg with the given ordering flags and a tag that Cancel
// can later withdraw it by.
func (t *Transmitter) SendWithTag(ctx context.Context, msg []byte, sync, prepend bool, tag int) error {
	if len(msg) == 0 {
		return proto.ErrEmptyPacket
	}
	if len(msg) > proto.MaxPacketSize {
		return proto.ErrPacketTooLarge
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	res := t.do(ctx, request{kind: reqEnqueue, msg: cp, sync: sync, prepend: prepend, tag: tag})
	return res.err
}

// Cancel withdraws every queued packet carrying tag.
func (t *Transmitter) Cancel(ctx context.Context, tag int) (int, error) {
	res := t.do(ctx, request{kind: reqCancel, tag: tag})
	return res.n, res.err
}

// Discard empties the transmit queue.
func (t *Transmitter) Discard(ctx context.Context) (int, error) {
	res := t.do(ctx, request{kind: reqDiscard})
	return res.n, res.err
}

// Queued returns the number of packets awaiting their echo.
func (t *Transmitter) Queued(ctx context.Context) (int, error) {
	res := t.do(ctx, request{kind: reqLen})
	return res.n, res.err
}

func (t *Transmitter) do(ctx context.Context, req request) result {
	req.reply = make(chan result, 1)
	select {
	case t.requests <- req:
	case <-t.done:
		return result{err: ErrStopped}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
	select {
	case res := <-req.reply:
		return res
	case <-t.done:
		return result{err: ErrStopped}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

// Run services the bus until ctx is cancelled. It may only be called once.
func (t *Transmitter) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(t.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 16)
	go t.readLoop(ctx, chunks)

	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	t.log.Info().Dur("tick", t.cfg.TickInterval).Msg("transmitter started")
	for {
		select {
		case <-ctx.Done():
			t.log.Info().Int("queued", t.queue.Len()).Msg("transmitter stopped")
			return ctx.Err()
		case data := <-chunks:
			t.receiver.Feed(data)
		case req := <-t.requests:
			req.reply <- t.handle(req)
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Transmitter) handle(req request) result {
	switch req.kind {
	case reqEnqueue:
		return result{err: t.queue.Enqueue(req.msg, req.sync, req.tag, req.prepend)}
	case reqCancel:
		return result{n: t.queue.RemoveByTag(req.tag)}
	case reqDiscard:
		return result{n: t.queue.DiscardAll()}
	case reqLen:
		return result{n: t.queue.Len()}
	}
	return result{}
}

func (t *Transmitter) tick() {
	if t.linkDown {
		t.resetDriver()
	}

	busy, giveUp := t.queue.Service(!t.linkDown, arbiter{t.driver, t.receiver})

	// expire partial packets after the queue has seen them as pending
	t.receiver.Tick()

	if busy {
		t.busyTicks++
		if t.busyTicks%busyWarnTicks == 0 {
			t.log.Warn().Int("ticks", t.busyTicks).Int("queued", t.queue.Len()).Msg("bus busy, transmit deferred")
		}
	} else {
		t.busyTicks = 0
	}

	if giveUp {
		t.giveUp()
	}
}

func (t *Transmitter) giveUp() {
	failed := t.queue.Failed()
	t.log.Error().Hex("data", failed).Int("queued", t.queue.Len()).Msg("link gave up, resetting driver")
	if t.cfg.OnGiveUp != nil {
		t.cfg.OnGiveUp(failed.Clone())
	}
	t.resetDriver()
}

func (t *Transmitter) resetDriver() {
	if err := t.driver.Reset(); err != nil {
		if !t.linkDown {
			t.log.Error().Err(err).Msg("driver reset failed")
		}
		t.linkDown = true
		return
	}
	if t.linkDown {
		t.log.Info().Msg("driver reset")
	}
	t.linkDown = false
}

func (t *Transmitter) readLoop(ctx context.Context, out chan<- []byte) {
	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := t.driver.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Debug().Err(err).Msg("read failed")
			select {
			case <-time.After(t.cfg.TickInterval):
			case <-ctx.Done():
				return
			}
		}
	}
}

// arbiter presents the driver to the queue, treating a partially received
// packet as a non-empty receive buffer.
type arbiter struct {
	BusDriver
	rx *Receiver
}

func (a arbiter) RxEmpty() bool {
	return a.BusDriver.RxEmpty() && !a.rx.Pending()
}
