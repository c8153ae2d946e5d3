//go:build !tinygo

package stub

import (
	"sync"

	"github.com/ystepanoff/ibusgw/controller"
)

// Outputs records the controller's output lines.
type Outputs struct {
	mu        sync.Mutex
	video     controller.Lines
	heartbeat bool
	power     bool
	aux       bool
	pulses    int
}

var _ controller.Outputs = (*Outputs)(nil)

func (o *Outputs) SetVideo(l controller.Lines) {
	o.mu.Lock()
	o.video = l
	o.mu.Unlock()
}

func (o *Outputs) SetHeartbeat(on bool) {
	o.mu.Lock()
	o.heartbeat = on
	o.mu.Unlock()
}

func (o *Outputs) SetPower(high bool) {
	o.mu.Lock()
	o.power = high
	o.mu.Unlock()
}

// SetAuxRelay counts every off-to-on transition as a pulse.
func (o *Outputs) SetAuxRelay(on bool) {
	o.mu.Lock()
	if on && !o.aux {
		o.pulses++
	}
	o.aux = on
	o.mu.Unlock()
}

// Snapshot is the state of every line.
type Snapshot struct {
	Video     controller.Lines
	Heartbeat bool
	Power     bool
	AuxRelay  bool
	Pulses    int
}

func (o *Outputs) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Video:     o.video,
		Heartbeat: o.heartbeat,
		Power:     o.power,
		AuxRelay:  o.aux,
		Pulses:    o.pulses,
	}
}
