//go:build tinygo && rp2040

// This file is built only for the controller board.
package ibusgw

import (
	"github.com/ystepanoff/ibusgw/controller"
	"github.com/ystepanoff/ibusgw/driver/board"
)

// NewNode configures the board with its default wiring and returns a node
// driving it.
func NewNode(opts ...controller.Option) (*controller.Node, *board.Board, error) {
	hw, err := board.New(board.DefaultPins)
	if err != nil {
		return nil, nil, err
	}
	return controller.NewNode(hw, hw, opts), hw, nil
}
