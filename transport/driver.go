package transport

// Link is the part of a bus driver the transmit queue needs: arbitration
// probes plus the write path.
type Link interface {
	Write(p []byte) (int, error)
	// Flush blocks until written bytes have left the transmitter.
	Flush() error
	// ClearToSend reports the hardware flow-control line. Drivers without
	// flow control always report true.
	ClearToSend() bool
	// LineIdle reports whether the shared bus line is at rest.
	LineIdle() bool
	// RxEmpty reports whether the receive buffer holds no unread bytes.
	RxEmpty() bool
}

// BusDriver is the interface that wraps the basic bus port operations.
type BusDriver interface {
	Link
	// Read blocks until bytes arrive or the driver's read timeout expires, in
	// which case it returns 0, nil.
	Read(p []byte) (int, error)
	// Reset closes and reopens the port after the link has been given up on.
	Reset() error
	Close() error
}
