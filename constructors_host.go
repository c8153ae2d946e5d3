//go:build !tinygo

// This file is built only for host targets (gateway daemon and simulation).
package ibusgw

import (
	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/driver/stub"
	"github.com/ystepanoff/ibusgw/transport"
)

type (
	Transmitter = transport.Transmitter
	Receiver    = transport.Receiver
	Queue       = transport.Queue
)

var (
	ErrQueueFull      = transport.ErrQueueFull
	ErrStopped        = transport.ErrStopped
	ErrAlreadyRunning = transport.ErrAlreadyRunning
)

// NewTransmitter returns a transmitter on an in-memory loopback bus, which
// echoes every write as a healthy bus does.
func NewTransmitter(opts ...transport.Option) (*transport.Transmitter, *stub.Driver) {
	d := stub.NewLoopback()
	return transport.NewTransmitterWithDriver(d, opts...), d
}

// NewSimulatedNode returns a controller node whose outputs are recorded and
// whose bus writes land in an in-memory driver.
func NewSimulatedNode(opts ...controller.Option) (*controller.Node, *stub.Outputs, *stub.Driver) {
	out := &stub.Outputs{}
	bus := stub.New()
	return controller.NewNode(out, bus, opts), out, bus
}
