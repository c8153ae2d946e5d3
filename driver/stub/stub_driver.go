//go:build !tinygo

package stub

import (
	"errors"
	"sync"
	"time"

	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/transport"
)

var ErrClosed = errors.New("stub driver closed")

// Driver implements an in-memory bus port for host-side testing. With echo
// enabled every write is read back, as on a healthy single-wire bus.
type Driver struct {
	mu    sync.Mutex
	rxBuf ringBuffer
	txBuf ringBuffer

	echo        bool
	busyLine    bool
	holdCTS     bool
	rxNotEmpty  bool
	closed      bool
	resets      int
	flushes     int
	resetErr    error
	readTimeout time.Duration
}

var (
	_ transport.BusDriver = (*Driver)(nil)
	_ controller.Bus      = (*Driver)(nil)
)

// New returns a driver that does not echo writes.
func New() *Driver { return &Driver{readTimeout: 10 * time.Millisecond} }

// NewLoopback returns a driver that echoes every write back to the reader.
func NewLoopback() *Driver {
	d := New()
	d.echo = true
	return d
}

func (d *Driver) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	d.txBuf.push(frame)
	if d.echo {
		d.rxBuf.push(frame)
	}
	return len(p), nil
}

// Read returns the next injected or echoed chunk, or 0, nil after the read
// timeout.
func (d *Driver) Read(p []byte) (int, error) {
	deadline := time.Now().Add(d.readTimeout)
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return 0, ErrClosed
		}
		frame, ok := d.rxBuf.pop()
		if ok {
			n := copy(p, frame)
			if n < len(frame) {
				d.rxBuf.pushFront(frame[n:])
			}
			d.mu.Unlock()
			return n, nil
		}
		d.mu.Unlock()

		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(1 * time.Millisecond)
	}
}

func (d *Driver) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	return nil
}

func (d *Driver) ClearToSend() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.holdCTS
}

func (d *Driver) LineIdle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.busyLine
}

// Idle lets the driver serve as a controller's bus.
func (d *Driver) Idle() bool { return d.LineIdle() }

func (d *Driver) RxEmpty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.rxNotEmpty
}

func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	if d.resetErr != nil {
		return d.resetErr
	}
	d.closed = false
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// SetEcho turns write echo on or off.
func (d *Driver) SetEcho(on bool) {
	d.mu.Lock()
	d.echo = on
	d.mu.Unlock()
}

// SetLineBusy makes LineIdle report a busy line.
func (d *Driver) SetLineBusy(busy bool) {
	d.mu.Lock()
	d.busyLine = busy
	d.mu.Unlock()
}

// SetCTS sets the flow-control line; false holds transmission.
func (d *Driver) SetCTS(ready bool) {
	d.mu.Lock()
	d.holdCTS = !ready
	d.mu.Unlock()
}

// SetRxPending makes RxEmpty report unread bytes.
func (d *Driver) SetRxPending(pending bool) {
	d.mu.Lock()
	d.rxNotEmpty = pending
	d.mu.Unlock()
}

// SetResetError makes Reset fail with err until cleared with nil.
func (d *Driver) SetResetError(err error) {
	d.mu.Lock()
	d.resetErr = err
	d.mu.Unlock()
}

func (d *Driver) InjectRx(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	d.rxBuf.push(frame)
}

func (d *Driver) GetTxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txBuf.snapshot()
}

func (d *Driver) ClearTxLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txBuf = ringBuffer{}
}

func (d *Driver) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

func (d *Driver) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

const ringCapacity = 64

type ringBuffer struct {
	data       [ringCapacity][]byte
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(frame []byte) {
	if rb.count == ringCapacity {
		// Overwrite the oldest when buffer is full to keep memory bounded
		rb.data[rb.tail] = nil
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = frame
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

// pushFront returns a partially read chunk to the head of the buffer.
func (rb *ringBuffer) pushFront(frame []byte) {
	if rb.count == ringCapacity {
		return
	}
	rb.head = (rb.head - 1 + ringCapacity) % ringCapacity
	rb.data[rb.head] = frame
	rb.count++
}

func (rb *ringBuffer) pop() ([]byte, bool) {
	if rb.count == 0 {
		return nil, false
	}
	frame := rb.data[rb.head]
	rb.data[rb.head] = nil
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return frame, true
}

func (rb *ringBuffer) snapshot() [][]byte {
	out := make([][]byte, rb.count)
	i := rb.head
	for c := 0; c < rb.count; c++ {
		p := rb.data[i]
		cp := make([]byte, len(p))
		copy(cp, p)
		out[c] = cp
		i = (i + 1) % ringCapacity
	}
	return out
}
