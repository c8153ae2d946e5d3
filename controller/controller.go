// Package controller implements the in-car device controller: it reacts to
// recognised bus packets by switching video, queueing LED messages and pulsing
// a relay, and keeps the tick driven timers that gate the companion computer's
// power supply.
//
// The package has no dependencies beyond protocol and builds with TinyGo.
package controller

import "github.com/ystepanoff/ibusgw/protocol"

// Outputs drives the controller's digital output lines.
type Outputs interface {
	SetVideo(l Lines)
	SetHeartbeat(on bool)
	// SetPower drives the power line. The companion supply enable is active
	// low, so a high line cuts its power.
	SetPower(high bool)
	SetAuxRelay(on bool)
}

// Bus is the controller's view of the vehicle bus for outgoing messages.
type Bus interface {
	Write(p []byte) (int, error)
	// Idle reports whether the receive line is currently at rest.
	Idle() bool
}

// Timer durations in controller ticks (150 per second).
const (
	heartbeatOnTicks    = 2
	heartbeatPeriod     = protocol.ControllerTicksPerSecond     // 1 s
	heartbeatIdlePeriod = 5 * protocol.ControllerTicksPerSecond // 5 s once powered down

	IdleLimitSeconds = 360

	sourceLEDTicks  = 75  // 0.5 s
	bootLEDTicks    = 450 // 3 s
	releaseLEDTicks = 750 // 5 s
	relayPulseTicks = 45  // 300 ms
	longPressTicks  = 1350
	longPressArmed  = 900 // countdown below this means held for more than 3 s
)

// State is a snapshot of the controller's observable state.
type State struct {
	Source     VideoSource
	Idle       uint16 // seconds without a packet, capped at IdleLimitSeconds
	Power      bool   // power line high
	LEDRequest byte   // pattern waiting for a quiet bus
	LEDOnTicks uint16
	RelayTicks uint8
	BootTicks  uint16
	Heartbeat  bool
}

// Controller holds the device state. Dispatch and Tick must never run
// concurrently.
type Controller struct {
	out   Outputs
	bus   Bus
	rules []Rule

	source VideoSource

	ledRequest      byte
	ledRequestTicks uint16
	ledOn           countdown[uint16]

	relay countdown[uint8]
	boot  countdown[uint16]

	beat      uint16
	heartbeat bool
	idle      uint16
	power     bool

	onMatch func(rule string, p protocol.Packet)
}

type Option func(*Controller)

// WithRules replaces the reaction table.
func WithRules(rules []Rule) Option {
	return func(c *Controller) { c.rules = rules }
}

// WithMatchHook registers fn to be called with the name of every rule that
// fires, before its reaction runs.
func WithMatchHook(fn func(rule string, p protocol.Packet)) Option {
	return func(c *Controller) { c.onMatch = fn }
}

// New creates a controller showing the bus video source.
func New(out Outputs, bus Bus, opts ...Option) *Controller {
	c := &Controller{
		out:   out,
		bus:   bus,
		rules: DefaultRules(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.out.SetVideo(VideoLines(c.source))
	c.out.SetPower(false)
	return c
}

// Dispatch runs the first rule matching p and returns its name, or "" when no
// rule matched. Any complete packet proves the bus is awake.
func (c *Controller) Dispatch(p protocol.Packet) string {
	c.idle = 0

	for i := range c.rules {
		r := &c.rules[i]
		if !r.Match(p) {
			continue
		}
		if c.onMatch != nil {
			c.onMatch(r.Name, p)
		}
		if r.React != nil {
			r.React(c, p)
		}
		return r.Name
	}
	return ""
}

// Tick advances every timer by one period. rxPending reports whether a packet
// is partially received; LED messages are only sent when it is false and the
// bus line is idle.
func (c *Controller) Tick(rxPending bool) {
	c.beat++
	c.setHeartbeat(c.beat < heartbeatOnTicks)

	if c.idle >= IdleLimitSeconds {
		c.idle = IdleLimitSeconds
		if c.beat >= heartbeatIdlePeriod {
			c.beat = 0
		}
		c.setPower(true)
	} else {
		if c.beat >= heartbeatPeriod {
			c.beat = 0
			c.idle++
		}
		c.setPower(false)
	}

	if c.relay.step() {
		c.out.SetAuxRelay(false)
	}

	quiet := !rxPending && c.bus.Idle()

	if c.ledOn.value() == 1 && quiet {
		c.sendLEDs(0, protocol.LEDOff)
	} else if c.ledOn.value() > 1 {
		c.ledOn.step()
	}

	if c.ledRequest != 0 && quiet {
		c.sendLEDs(c.ledRequestTicks, c.ledRequest)
		c.ledRequest = 0
	}

	c.boot.step()
}

// State returns a snapshot of the controller's state.
func (c *Controller) State() State {
	return State{
		Source:     c.source,
		Idle:       c.idle,
		Power:      c.power,
		LEDRequest: c.ledRequest,
		LEDOnTicks: c.ledOn.value(),
		RelayTicks: c.relay.value(),
		BootTicks:  c.boot.value(),
		Heartbeat:  c.heartbeat,
	}
}

func (c *Controller) Source() VideoSource { return c.source }

func (c *Controller) selectSource(s VideoSource) {
	c.source = s
	c.applyVideo(s)
}

func (c *Controller) applyVideo(s VideoSource) {
	if s == SourceCompanion {
		c.setPower(false)
	}
	c.out.SetVideo(VideoLines(s))
}

func (c *Controller) queueLEDs(pattern byte, ticks uint16) {
	c.ledRequest = pattern
	c.ledRequestTicks = ticks
}

func (c *Controller) sendLEDs(ticks uint16, pattern byte) {
	c.ledOn.set(ticks)
	// lost LED frames are not retried
	_, _ = c.bus.Write(protocol.LEDCommand(pattern))
}

func (c *Controller) pulseRelay(ticks uint8) {
	c.relay.set(ticks)
	c.out.SetAuxRelay(true)
}

func (c *Controller) setHeartbeat(on bool) {
	if on == c.heartbeat {
		return
	}
	c.heartbeat = on
	c.out.SetHeartbeat(on)
}

func (c *Controller) setPower(high bool) {
	c.power = high
	c.out.SetPower(high)
}

func (c *Controller) cyclePhone(protocol.Packet) {
	c.source = c.source.Next()
	c.queueLEDs(indicator(c.source), sourceLEDTicks)
	c.applyVideo(c.source)
}

func (c *Controller) fobStatus(p protocol.Packet) {
	if p[1]^p[2]^p[3]^p[4] != p[5] {
		return
	}
	if p[4]&0x40 != 0 {
		c.queueLEDs(protocol.LEDOrange, bootLEDTicks)
		c.boot.set(longPressTicks)
		return
	}
	if c.boot.active() && c.boot.value() < longPressArmed {
		c.pulseRelay(relayPulseTicks)
		c.queueLEDs(protocol.LEDAllBlink, releaseLEDTicks)
	}
}

func (c *Controller) gearSensor(p protocol.Packet) {
	if p[5]>>4 == 1 {
		c.applyVideo(SourceCamera)
		return
	}
	c.applyVideo(c.source)
}
