package transport

import (
	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/ibusgw/protocol"
)

type entry struct {
	msg       proto.Packet
	countdown int
	sync      bool
	tag       int
	attempts  int
}

// Queue is the ordered set of outbound packets awaiting their echo. A packet
// stays queued, and is written again every ResendTicks, until the same bytes
// are read back from the bus or it is withdrawn.
//
// A Queue is owned by a single goroutine and does no locking.
type Queue struct {
	entries  []*entry
	linkGood bool
	failed   proto.Packet

	cfg Config
	log zerolog.Logger
}

func NewQueue(opts ...Option) *Queue {
	cfg := newConfig(opts)
	return &Queue{
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Enqueue copies msg, fills in its trailing checksum and queues it to be
// written on the next tick. prepend puts it ahead of everything already
// queued. A sync packet is only written once it is at the head of the queue,
// and nothing behind it is written until it has been echoed.
func (q *Queue) Enqueue(msg []byte, sync bool, tag int, prepend bool) error {
	if q.cfg.Capacity > 0 && len(q.entries) >= q.cfg.Capacity {
		return ErrQueueFull
	}

	p := make(proto.Packet, len(msg))
	copy(p, msg)
	if err := proto.Frame(p); err != nil {
		return err
	}

	e := &entry{msg: p, countdown: 1, sync: sync, tag: tag}
	if prepend {
		q.entries = append([]*entry{e}, q.entries...)
	} else {
		q.entries = append(q.entries, e)
	}

	q.log.Debug().
		Hex("data", p).
		Int("tag", tag).
		Bool("sync", sync).
		Bool("prepend", prepend).
		Msg("queued")
	return nil
}

// Service runs one queue tick. Every countdown is decremented first. When
// canTransmit is false nothing is written. When the queue has work but link
// arbitration fails, busy is true and nothing is written. giveUp is true when
// a packet ran out of attempts before any packet was ever echoed; the tick is
// abandoned at that point.
func (q *Queue) Service(canTransmit bool, link Link) (busy, giveUp bool) {
	for _, e := range q.entries {
		if e.countdown > 0 {
			e.countdown--
		}
	}

	if !canTransmit || len(q.entries) == 0 {
		return false, false
	}

	switch {
	case !link.ClearToSend():
		q.log.Debug().Msg("cts busy - waiting")
		return true, false
	case !link.LineIdle():
		q.log.Debug().Msg("bus line busy - waiting")
		return true, false
	case !link.RxEmpty():
		q.log.Debug().Msg("rx not empty - waiting")
		return true, false
	}

	sent := 0
	for i, e := range q.entries {
		if e.sync && i != 0 {
			break
		}

		if e.countdown == 0 {
			q.log.Debug().Hex("data", e.msg).Int("attempt", e.attempts+1).Msg("transmit")
			if _, err := link.Write(e.msg); err != nil {
				q.log.Warn().Err(err).Hex("data", e.msg).Msg("write failed")
			}
			if q.cfg.Observer != nil {
				q.cfg.Observer.ObserveTx(e.msg)
			}

			e.attempts++
			if e.attempts > q.cfg.RetryLimit && !q.linkGood {
				e.attempts = 1
				q.failed = e.msg.Clone()
				q.log.Error().Hex("data", e.msg).Msg("no echo from an unproven link - giving up")
				return false, true
			}

			e.countdown = q.cfg.ResendTicks
			sent++
		}

		if e.sync {
			break
		}
	}

	if sent > 0 {
		if err := link.Flush(); err != nil {
			q.log.Warn().Err(err).Msg("flush failed")
		}
	}
	return false, false
}

// RemoveMatching removes the first queued packet identical to msg and marks
// the link as proven good. It reports whether a packet was removed.
func (q *Queue) RemoveMatching(msg []byte) bool {
	for i, e := range q.entries {
		if !e.msg.Equal(msg) {
			continue
		}
		q.linkGood = true
		q.remove(i)
		q.log.Debug().Hex("data", e.msg).Int("attempts", e.attempts).Msg("echo received")
		return true
	}
	return false
}

// RemoveByTag withdraws every packet carrying tag and returns how many were
// removed.
func (q *Queue) RemoveByTag(tag int) int {
	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if e.tag == tag {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	if removed > 0 {
		q.log.Debug().Int("tag", tag).Int("removed", removed).Msg("withdrawn by tag")
	}
	return removed
}

// DiscardAll empties the queue and returns how many packets were dropped.
func (q *Queue) DiscardAll() int {
	n := len(q.entries)
	q.entries = nil
	if n > 0 {
		q.log.Debug().Int("removed", n).Msg("queue discarded")
	}
	return n
}

func (q *Queue) Len() int { return len(q.entries) }

// Failed returns the packet whose attempts ran out at the most recent give-up,
// or nil before any give-up. It need not be the head of the queue.
func (q *Queue) Failed() proto.Packet { return q.failed }

// LinkGood reports whether any queued packet has ever been echoed.
func (q *Queue) LinkGood() bool { return q.linkGood }

// Packets returns copies of the queued packets in order.
func (q *Queue) Packets() []proto.Packet {
	out := make([]proto.Packet, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.msg.Clone()
	}
	return out
}

func (q *Queue) remove(i int) {
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
}
