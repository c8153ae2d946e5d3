//go:build tinygo && rp2040

// Command firmware runs the device controller on the board. A single loop
// feeds received bytes to the node and fires the controller tick; the tick
// deadline restarts whenever a byte arrives.
package main

import (
	"time"

	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/driver/board"
	"github.com/ystepanoff/ibusgw/protocol"
)

const (
	tick = protocol.ControllerTickMicros * time.Microsecond
	poll = 100 * time.Microsecond
)

func main() {
	hw, err := board.New(board.DefaultPins)
	if err != nil {
		println("board init failed:", err.Error())
		for {
			time.Sleep(time.Second)
		}
	}

	node := controller.NewNode(hw, hw, []controller.Option{
		controller.WithMatchHook(func(rule string, p protocol.Packet) {
			println("match", rule, p.String())
		}),
	})

	deadline := time.Now().Add(tick)
	for {
		if b, ok := hw.ReadByte(); ok {
			node.OnByte(b, false)
			deadline = time.Now().Add(tick)
			continue
		}
		if now := time.Now(); !now.Before(deadline) {
			node.OnTick()
			deadline = now.Add(tick)
			continue
		}
		time.Sleep(poll)
	}
}
