//go:build tinygo && rp2040

// Package board drives the controller's hardware: six output lines, a
// monitor input on the bus RX line and the bus UART at 9600 baud with even
// parity.
package board

import (
	"machine"

	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/protocol"
)

// Pins maps controller functions onto GPIOs.
type Pins struct {
	Relay1    machine.Pin
	Relay2    machine.Pin
	AuxRelay  machine.Pin
	Trigger   machine.Pin
	Heartbeat machine.Pin
	Power     machine.Pin

	// BusMonitor is wired to the bus RX line alongside the UART input
	BusMonitor machine.Pin

	TX machine.Pin
	RX machine.Pin
}

// DefaultPins is the wiring of the reference board.
var DefaultPins = Pins{
	Relay1:     machine.GPIO2,
	Relay2:     machine.GPIO3,
	AuxRelay:   machine.GPIO4,
	Trigger:    machine.GPIO5,
	Heartbeat:  machine.LED,
	Power:      machine.GPIO6,
	BusMonitor: machine.GPIO7,
	TX:         machine.GPIO0,
	RX:         machine.GPIO1,
}

// Board implements controller.Outputs and controller.Bus.
type Board struct {
	pins Pins
	uart *machine.UART
}

var (
	_ controller.Outputs = (*Board)(nil)
	_ controller.Bus     = (*Board)(nil)
)

// New configures the pins and the UART.
func New(pins Pins) (*Board, error) {
	for _, p := range []machine.Pin{pins.Relay1, pins.Relay2, pins.AuxRelay, pins.Trigger, pins.Heartbeat, pins.Power} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	pins.BusMonitor.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	uart := machine.UART0
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: protocol.BaudRate,
		TX:       pins.TX,
		RX:       pins.RX,
	}); err != nil {
		return nil, err
	}
	if err := uart.SetFormat(8, 1, machine.ParityEven); err != nil {
		return nil, err
	}
	return &Board{pins: pins, uart: uart}, nil
}

func (b *Board) SetVideo(l controller.Lines) {
	b.pins.Relay1.Set(l.Relay1)
	b.pins.Relay2.Set(l.Relay2)
	b.pins.Trigger.Set(l.Trigger)
}

func (b *Board) SetHeartbeat(on bool) { b.pins.Heartbeat.Set(on) }

func (b *Board) SetPower(high bool) { b.pins.Power.Set(high) }

func (b *Board) SetAuxRelay(on bool) { b.pins.AuxRelay.Set(on) }

// Write sends p on the bus, blocking until the UART has taken every byte.
func (b *Board) Write(p []byte) (int, error) {
	return b.uart.Write(p)
}

// Idle reports whether the bus RX line is at rest (high).
func (b *Board) Idle() bool { return b.pins.BusMonitor.Get() }

// ReadByte returns the next received byte, if any.
func (b *Board) ReadByte() (byte, bool) {
	if b.uart.Buffered() == 0 {
		return 0, false
	}
	c, err := b.uart.ReadByte()
	if err != nil {
		return 0, false
	}
	return c, true
}
