package controller

import "github.com/ystepanoff/ibusgw/protocol"

// VideoSource selects what the head unit screen shows.
type VideoSource uint8

const (
	SourceBus       VideoSource = iota // the car's own navigation picture
	SourceCompanion                    // the companion computer
	SourceCamera                       // reversing camera

	sourceCount
)

func (s VideoSource) String() string {
	switch s {
	case SourceBus:
		return "bus"
	case SourceCompanion:
		return "companion"
	case SourceCamera:
		return "camera"
	}
	return "unknown"
}

// Next returns the source the phone button cycles to.
func (s VideoSource) Next() VideoSource {
	return (s + 1) % sourceCount
}

// Lines is the state of the three video switching outputs.
type Lines struct {
	Relay1  bool
	Relay2  bool
	Trigger bool
}

// VideoLines maps a source onto the switching outputs:
//
//	bus:       relays off, trigger off
//	companion: relays off, trigger on
//	camera:    relays on,  trigger on
func VideoLines(s VideoSource) Lines {
	switch s {
	case SourceCompanion:
		return Lines{Trigger: true}
	case SourceCamera:
		return Lines{Relay1: true, Relay2: true, Trigger: true}
	}
	return Lines{}
}

// indicator is the LED pattern announcing a newly selected source.
func indicator(s VideoSource) byte {
	switch s {
	case SourceCompanion:
		return protocol.LEDGreen
	case SourceCamera:
		return protocol.LEDOrange
	}
	return protocol.LEDRed
}
