package transport

import (
	"bytes"
	"errors"
	"testing"

	proto "github.com/ystepanoff/ibusgw/protocol"
)

// fakeLink records writes and lets tests flip each arbitration probe.
type fakeLink struct {
	holdCTS  bool
	busyLine bool
	rxBytes  bool
	writes   [][]byte
	flushes  int
	writeErr error
}

func (l *fakeLink) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	l.writes = append(l.writes, cp)
	return len(p), l.writeErr
}

func (l *fakeLink) Flush() error      { l.flushes++; return nil }
func (l *fakeLink) ClearToSend() bool { return !l.holdCTS }
func (l *fakeLink) LineIdle() bool    { return !l.busyLine }
func (l *fakeLink) RxEmpty() bool     { return !l.rxBytes }

// recordingObserver keeps every packet it is shown.
type recordingObserver struct {
	tx, rx []proto.Packet
}

func (o *recordingObserver) ObserveTx(p proto.Packet) { o.tx = append(o.tx, p.Clone()) }
func (o *recordingObserver) ObserveRx(p proto.Packet) { o.rx = append(o.rx, p.Clone()) }

// framed returns msg with its checksum filled in, as the queue stores it.
func framed(t *testing.T, msg []byte) []byte {
	t.Helper()
	cp := make([]byte, len(msg))
	copy(cp, msg)
	if err := proto.Frame(cp); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	return cp
}

var (
	pktA = []byte{0xC8, 0x04, 0xE7, 0x2B, 0x01, 0x00}
	pktB = []byte{0xC8, 0x04, 0xE7, 0x2B, 0x10, 0x00}
	pktC = []byte{0xC8, 0x04, 0xE7, 0x2B, 0x04, 0x00}
)

func TestQueueEnqueue(t *testing.T) {
	tests := []struct {
		name    string
		msg     []byte
		opts    []Option
		fill    int
		wantErr error
	}{
		{name: "fills checksum", msg: []byte{0x50, 0x03, 0xC8, 0x01, 0x00}},
		{name: "empty", msg: []byte{}, wantErr: proto.ErrEmptyPacket},
		{name: "oversize", msg: make([]byte, proto.MaxPacketSize+1), wantErr: proto.ErrPacketTooLarge},
		{name: "maximum size", msg: make([]byte, proto.MaxPacketSize)},
		{name: "full queue", msg: pktA, opts: []Option{WithCapacity(2)}, fill: 2, wantErr: ErrQueueFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.opts...)
			for i := 0; i < tt.fill; i++ {
				if err := q.Enqueue(pktB, false, 0, false); err != nil {
					t.Fatalf("filling queue: %v", err)
				}
			}

			err := q.Enqueue(tt.msg, false, 0, false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enqueue() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if q.Len() != tt.fill {
					t.Errorf("Len() = %d after rejected enqueue, want %d", q.Len(), tt.fill)
				}
				return
			}

			got := q.Packets()[q.Len()-1]
			if !bytes.Equal(got, framed(t, tt.msg)) {
				t.Errorf("queued = % X, want % X", []byte(got), framed(t, tt.msg))
			}
		})
	}
}

func TestQueueEnqueueCopiesInput(t *testing.T) {
	q := NewQueue()
	msg := []byte{0x50, 0x03, 0xC8, 0x01, 0x00}
	if err := q.Enqueue(msg, false, 0, false); err != nil {
		t.Fatal(err)
	}
	msg[3] = 0xFF

	if got := q.Packets()[0]; got[3] != 0x01 {
		t.Errorf("queued packet changed with caller's buffer: % X", []byte(got))
	}
	if msg[4] != 0x00 {
		t.Errorf("caller's buffer was written to")
	}
}

func TestQueuePrepend(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(pktA, false, 0, false)
	_ = q.Enqueue(pktB, false, 0, true)

	pkts := q.Packets()
	if !bytes.Equal(pkts[0], framed(t, pktB)) || !bytes.Equal(pkts[1], framed(t, pktA)) {
		t.Errorf("Packets() = % X, want B before A", pkts)
	}
}

func TestQueueServiceFirstTick(t *testing.T) {
	obs := &recordingObserver{}
	q := NewQueue(WithObserver(obs))
	link := &fakeLink{}
	_ = q.Enqueue(pktA, false, 0, false)
	_ = q.Enqueue(pktC, false, 0, false)

	busy, giveUp := q.Service(true, link)
	if busy || giveUp {
		t.Fatalf("Service() = (%v, %v), want (false, false)", busy, giveUp)
	}
	if len(link.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(link.writes))
	}
	if link.flushes != 1 {
		t.Errorf("flushes = %d, want 1", link.flushes)
	}
	if len(obs.tx) != 2 {
		t.Errorf("observer saw %d packets, want 2", len(obs.tx))
	}

	// nothing is due again until the resend window passes
	link.writes = nil
	for i := 0; i < proto.DefaultResendTicks-1; i++ {
		q.Service(true, link)
	}
	if len(link.writes) != 0 {
		t.Fatalf("resent early: % X", link.writes)
	}
	if link.flushes != 1 {
		t.Errorf("flushes = %d on idle ticks, want 1", link.flushes)
	}
	q.Service(true, link)
	if len(link.writes) != 2 {
		t.Errorf("writes after resend window = %d, want 2", len(link.writes))
	}
}

func TestQueueServiceArbitration(t *testing.T) {
	tests := []struct {
		name string
		link fakeLink
	}{
		{name: "cts held", link: fakeLink{holdCTS: true}},
		{name: "line busy", link: fakeLink{busyLine: true}},
		{name: "rx not empty", link: fakeLink{rxBytes: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := tt.link
			q := NewQueue()

			// an empty queue never reports busy
			if busy, _ := q.Service(true, &link); busy {
				t.Errorf("Service() on empty queue reported busy")
			}

			_ = q.Enqueue(pktA, false, 0, false)
			for i := 0; i < 3; i++ {
				busy, giveUp := q.Service(true, &link)
				if !busy || giveUp {
					t.Fatalf("Service() = (%v, %v), want (true, false)", busy, giveUp)
				}
			}
			if len(link.writes) != 0 || link.flushes != 0 {
				t.Fatalf("wrote %d packets while arbitration failed", len(link.writes))
			}

			// countdowns kept running, so the packet goes on the first clear tick
			link = fakeLink{}
			q.Service(true, &link)
			if len(link.writes) != 1 {
				t.Errorf("writes after clearance = %d, want 1", len(link.writes))
			}
		})
	}
}

func TestQueueServiceCannotTransmit(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{busyLine: true}
	_ = q.Enqueue(pktA, false, 0, false)

	busy, giveUp := q.Service(false, link)
	if busy || giveUp {
		t.Errorf("Service(false) = (%v, %v), want (false, false)", busy, giveUp)
	}
	if len(link.writes) != 0 {
		t.Errorf("wrote while transport unavailable")
	}
}

func TestQueueSyncOrdering(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{}
	_ = q.Enqueue(pktA, false, 0, false)
	_ = q.Enqueue(pktB, true, 0, false)
	_ = q.Enqueue(pktC, false, 0, false)

	q.Service(true, link)
	if len(link.writes) != 1 || !bytes.Equal(link.writes[0], framed(t, pktA)) {
		t.Fatalf("first tick wrote % X, want only A", link.writes)
	}

	// B stays behind A until A is echoed
	link.writes = nil
	for i := 0; i < 3*proto.DefaultResendTicks; i++ {
		q.Service(true, link)
	}
	for _, w := range link.writes {
		if !bytes.Equal(w, framed(t, pktA)) {
			t.Fatalf("wrote % X before A was echoed", w)
		}
	}

	if !q.RemoveMatching(framed(t, pktA)) {
		t.Fatalf("echo of A not matched")
	}
	link.writes = nil
	q.Service(true, link)
	if len(link.writes) != 1 || !bytes.Equal(link.writes[0], framed(t, pktB)) {
		t.Fatalf("tick after A echoed wrote % X, want only B", link.writes)
	}

	// C waits for B's echo
	link.writes = nil
	for i := 0; i < 3*proto.DefaultResendTicks; i++ {
		q.Service(true, link)
	}
	for _, w := range link.writes {
		if bytes.Equal(w, framed(t, pktC)) {
			t.Fatalf("C written before B was echoed")
		}
	}

	q.RemoveMatching(framed(t, pktB))
	link.writes = nil
	q.Service(true, link)
	if len(link.writes) != 1 || !bytes.Equal(link.writes[0], framed(t, pktC)) {
		t.Errorf("tick after B echoed wrote % X, want C", link.writes)
	}
}

func TestQueueGiveUp(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{}
	_ = q.Enqueue(pktA, false, 0, false)

	ticks := 0
	for ; ticks < 1000; ticks++ {
		if _, giveUp := q.Service(true, link); giveUp {
			break
		}
	}

	if len(link.writes) != proto.DefaultRetryLimit+1 {
		t.Errorf("attempts before give up = %d, want %d", len(link.writes), proto.DefaultRetryLimit+1)
	}
	if want := 1 + proto.DefaultRetryLimit*proto.DefaultResendTicks; ticks+1 != want {
		t.Errorf("gave up on tick %d, want %d", ticks+1, want)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d after give up, want 1", q.Len())
	}

	// the counter restarts, so the next give up takes three more attempts
	link.writes = nil
	for i := 0; i < 1000; i++ {
		if _, giveUp := q.Service(true, link); giveUp {
			break
		}
	}
	if len(link.writes) != proto.DefaultRetryLimit {
		t.Errorf("attempts before second give up = %d, want %d", len(link.writes), proto.DefaultRetryLimit)
	}
}

func TestQueueNoGiveUpOnProvenLink(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{}

	_ = q.Enqueue(pktC, false, 0, false)
	q.Service(true, link)
	q.RemoveMatching(framed(t, pktC))
	if !q.LinkGood() {
		t.Fatalf("LinkGood() = false after an echo")
	}

	_ = q.Enqueue(pktA, false, 0, false)
	link.writes = nil
	for i := 0; i < 50*proto.DefaultResendTicks; i++ {
		if _, giveUp := q.Service(true, link); giveUp {
			t.Fatalf("gave up on tick %d of a proven link", i+1)
		}
	}
	if len(link.writes) != 50 {
		t.Errorf("attempts = %d, want 50", len(link.writes))
	}
}

func TestQueueRemoveMatching(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(pktA, false, 1, false)
	_ = q.Enqueue(pktA, false, 2, false)

	if q.RemoveMatching(framed(t, pktB)) {
		t.Errorf("RemoveMatching() removed a packet that is not queued")
	}
	if q.LinkGood() {
		t.Errorf("LinkGood() = true without a matching echo")
	}
	if q.RemoveMatching(pktA) {
		t.Errorf("RemoveMatching() matched without the filled checksum")
	}

	if !q.RemoveMatching(framed(t, pktA)) {
		t.Fatalf("RemoveMatching() = false, want true")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1; only the first copy is removed", q.Len())
	}
	if n := q.RemoveByTag(2); n != 1 {
		t.Errorf("remaining copy has tag %d removed = %d, want the later entry", 2, n)
	}
}

func TestQueueRemoveByTagAndDiscard(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(pktA, false, 7, false)
	_ = q.Enqueue(pktB, false, 3, false)
	_ = q.Enqueue(pktC, false, 7, false)

	if n := q.RemoveByTag(7); n != 2 {
		t.Errorf("RemoveByTag(7) = %d, want 2", n)
	}
	pkts := q.Packets()
	if len(pkts) != 1 || !bytes.Equal(pkts[0], framed(t, pktB)) {
		t.Errorf("Packets() = % X, want only B", pkts)
	}
	if n := q.RemoveByTag(7); n != 0 {
		t.Errorf("RemoveByTag(7) again = %d, want 0", n)
	}

	_ = q.Enqueue(pktA, false, 0, false)
	if n := q.DiscardAll(); n != 2 {
		t.Errorf("DiscardAll() = %d, want 2", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after DiscardAll, want 0", q.Len())
	}
}

func TestQueueWriteErrorCountsAsAttempt(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{writeErr: errors.New("i/o error")}
	_ = q.Enqueue(pktA, false, 0, false)

	gaveUp := false
	for i := 0; i < 100 && !gaveUp; i++ {
		_, gaveUp = q.Service(true, link)
	}
	if !gaveUp {
		t.Errorf("failing writes never led to give up")
	}
}

func TestQueueEchoOfLongPacket(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{}
	rx := NewReceiver(q)

	msg, err := proto.TextCommand("HELLO FROM THE GATEWAY!!!", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) <= proto.RxBufferSize {
		t.Fatalf("text packet is %d bytes, want more than %d", len(msg), proto.RxBufferSize)
	}
	if err := q.Enqueue(msg, false, 0, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	q.Service(true, link)
	if len(link.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(link.writes))
	}

	rx.Feed(link.writes[0])

	if q.Len() != 0 {
		t.Errorf("Len() = %d after echo, want 0", q.Len())
	}
	if !q.LinkGood() {
		t.Errorf("LinkGood() = false after echo")
	}
	if st := rx.Stats(); st.Completed != 1 || st.Overflowed != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestQueueGiveUpReportsFailedEntry(t *testing.T) {
	q := NewQueue()
	link := &fakeLink{}

	_ = q.Enqueue(pktA, false, 0, false)
	q.Service(true, link)
	// C goes ahead of A but starts its attempts one tick later
	_ = q.Enqueue(pktC, false, 0, true)

	if q.Failed() != nil {
		t.Fatalf("Failed() = %v before any give up", q.Failed())
	}
	for i := 0; i < 1000; i++ {
		if _, giveUp := q.Service(true, link); giveUp {
			break
		}
	}

	if head := q.Packets()[0]; !head.Equal(framed(t, pktC)) {
		t.Fatalf("head = %v, want C", head)
	}
	if got := q.Failed(); !got.Equal(framed(t, pktA)) {
		t.Errorf("Failed() = %v, want A", got)
	}
}
