package controller

import "github.com/ystepanoff/ibusgw/protocol"

// Node ties a receive classifier to a Controller. It is driven by two event
// sources: OnByte for every received byte and OnTick for every timer period.
// The caller guarantees the two never run at the same time.
type Node struct {
	rx   *protocol.Receiver
	ctrl *Controller
}

// NewNode creates a node around a fresh Controller. Receiver options apply to
// the node's classifier.
func NewNode(out Outputs, bus Bus, opts []Option, rxOpts ...protocol.ReceiverOption) *Node {
	n := &Node{ctrl: New(out, bus, opts...)}
	n.rx = protocol.NewReceiver(n.dispatch, rxOpts...)
	return n
}

func (n *Node) dispatch(p protocol.Packet) { n.ctrl.Dispatch(p) }

// OnByte feeds one received byte; fault marks parity, framing or overrun errors.
func (n *Node) OnByte(b byte, fault bool) { n.rx.Feed(b, fault) }

// OnTick runs the controller timers and then expires any partial packet.
func (n *Node) OnTick() {
	n.ctrl.Tick(n.rx.Pending())
	n.rx.Tick()
}

func (n *Node) Controller() *Controller { return n.ctrl }

func (n *Node) Receiver() *protocol.Receiver { return n.rx }
