package controller

import "github.com/ystepanoff/ibusgw/protocol"

// Field matches one byte of a packet. A zero Mask compares the whole byte.
type Field struct {
	Index int
	Value byte
	Mask  byte
}

func (f Field) match(p protocol.Packet) bool {
	if f.Index < 0 || f.Index >= len(p) {
		return false
	}
	mask := f.Mask
	if mask == 0 {
		mask = 0xFF
	}
	return p[f.Index]&mask == f.Value&mask
}

// Reaction runs when its rule matches. It may be nil for packets that are
// recognised but need no action.
type Reaction func(c *Controller, p protocol.Packet)

// Rule recognises one packet shape by total size and a set of fixed bytes.
type Rule struct {
	Name   string
	Size   int
	Fields []Field
	React  Reaction
}

// Match reports whether p has the rule's size and every field matches.
func (r Rule) Match(p protocol.Packet) bool {
	if len(p) != r.Size {
		return false
	}
	for _, f := range r.Fields {
		if !f.match(p) {
			return false
		}
	}
	return true
}

func at(index int, value byte) Field { return Field{Index: index, Value: value} }

// DefaultRules returns the reaction table of the gateway, in evaluation order.
// The first matching rule wins; the length byte is never compared.
func DefaultRules() []Rule {
	rules := []Rule{
		{
			// 50 03 C8 01 9A
			Name:   "wheel-rt",
			Size:   5,
			Fields: []Field{at(0, 0x50), at(2, 0xC8), at(3, protocol.CmdWheelRT), at(4, 0x9A)},
		},
		{
			// 50 04 C8 3B 80 27
			Name:   "wheel-speak",
			Size:   6,
			Fields: []Field{at(0, 0x50), at(2, 0xC8), at(3, protocol.CmdWheelSpeak), at(4, 0x80), at(5, 0x27)},
		},
		{
			// F0 04 FF 48 08 4B
			Name:   "phone-button",
			Size:   6,
			Fields: []Field{at(0, 0xF0), at(2, 0xFF), at(3, protocol.CmdButton), at(4, protocol.ButtonPhone), at(5, 0x4B)},
			React:  (*Controller).cyclePhone,
		},
		{
			// 00 04 BF 72 st cs
			Name:   "fob-status",
			Size:   6,
			Fields: []Field{at(0, 0x00), at(2, 0xBF), at(3, protocol.CmdFobStatus)},
			React:  (*Controller).fobStatus,
		},
		{
			// 80 0A BF 13 xx xx xx xx xx xx xx cs
			Name:   "gear-sensor",
			Size:   12,
			Fields: []Field{at(0, 0x80), at(2, 0xBF), at(3, protocol.CmdIKESensor)},
			React:  (*Controller).gearSensor,
		},
		{
			Name: "cdc-enter",
			Size: len(protocol.CDCEnterTemplate),
			Fields: []Field{
				at(0, protocol.CDCEnterTemplate[0]),
				at(6, protocol.CDCEnterTemplate[6]),
				at(13, protocol.CDCEnterTemplate[13]),
				at(19, protocol.CDCEnterTemplate[19]),
			},
			React: func(c *Controller, _ protocol.Packet) { c.selectSource(SourceCompanion) },
		},
	}

	exit := func(c *Controller, _ protocol.Packet) { c.selectSource(SourceBus) }
	buttons := []struct {
		name string
		code byte
	}{
		{"am", protocol.ButtonAM},
		{"mode", protocol.ButtonMode},
		{"fm", protocol.ButtonFM},
		{"menu", protocol.ButtonMenu},
	}
	for _, b := range buttons {
		rules = append(rules, Rule{
			Name:   "cdc-exit-" + b.name,
			Size:   6,
			Fields: []Field{at(0, 0xF0), at(3, protocol.CmdButton), at(4, b.code)},
			React:  exit,
		})
	}

	// 68 04 3B 46 02 13: screen back to main menu
	return append(rules, Rule{
		Name:   "cdc-exit-main-menu",
		Size:   6,
		Fields: []Field{at(0, 0x68), at(2, 0x3B), at(3, protocol.CmdMenuSelect), at(4, 0x02), at(5, 0x13)},
		React:  exit,
	})
}
