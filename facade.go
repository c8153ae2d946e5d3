// Package ibusgw provides a façade over the bus gateway: the packet codec,
// the device controller and, on hosts, the transmit queue.
package ibusgw

import (
	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/protocol"
)

// The constructors are split into build-tag specific files:
// - constructors_board.go - for the controller board (//go:build tinygo && rp2040)
// - constructors_host.go - for the host gateway and simulation (//go:build !tinygo)

type (
	Packet      = protocol.Packet
	Address     = protocol.Address
	Controller  = controller.Controller
	Node        = controller.Node
	VideoSource = controller.VideoSource
)

// Error constants exposed in the public API
var (
	ErrEmptyPacket    = protocol.ErrEmptyPacket
	ErrPacketTooShort = protocol.ErrPacketTooShort
	ErrPacketTooLarge = protocol.ErrPacketTooLarge
	ErrLengthMismatch = protocol.ErrLengthMismatch
)

// Constants exposed in the public API
const (
	MinPacketSize = protocol.MinPacketSize
	MaxPacketSize = protocol.MaxPacketSize
	BaudRate      = protocol.BaudRate

	SourceBus       = controller.SourceBus
	SourceCompanion = controller.SourceCompanion
	SourceCamera    = controller.SourceCamera
)

// Build assembles a packet with its length field and checksum.
func Build(src, dst Address, payload ...byte) (Packet, error) {
	return protocol.Build(src, dst, payload...)
}
