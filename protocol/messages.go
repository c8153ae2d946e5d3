package protocol

// Fixed bus messages used by the gateway.

// CDCEnterTemplate is the radio-to-navigation screen update announcing CD
// changer mode. Only bytes 0, 6, 13 and 19 are significant when matching.
var CDCEnterTemplate = Packet{
	0x68, 0x12, 0x3B, 0x23, 0x62, 0x10, 0x43, 0x44, 0x43, 0x20,
	0x31, 0x2D, 0x30, 0x34, 0x20, 0x20, 0x20, 0x20, 0x20, 0x4C,
}

// LEDCommand builds the telephone-to-cluster LED message for pattern.
// Layout: C8 04 E7 2B pattern checksum. The first four bytes XOR to zero, so
// the checksum always equals the pattern byte.
func LEDCommand(pattern byte) Packet {
	p, _ := Build(AddrTEL, AddrANZV, CmdLED, pattern)
	return p
}

// maxText is the longest text that fits in one packet.
const maxText = MaxPacketSize - 8

// TextCommand builds a radio-to-screen text message placing text at field pos.
// Layout: 68 len 3B 21 60 00 40+pos text... checksum
func TextCommand(text string, pos byte) (Packet, error) {
	if len(text) > maxText {
		return nil, ErrTextTooLong
	}
	payload := make([]byte, 0, 4+len(text))
	payload = append(payload, CmdText, 0x60, 0x00, 0x40+pos)
	payload = append(payload, text...)
	return Build(AddrRAD, AddrGT, payload...)
}
