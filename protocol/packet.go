package protocol

// Packet is a raw bus packet exactly as it appears on the wire, checksum included.
// Layout: Source(1) | Length(1) | Destination(1) | Payload | Checksum(1)
// Accessors tolerate short packets and return zero values instead of panicking.
type Packet []byte

// Build assembles a packet from its addresses and payload and fills in the
// length and checksum bytes.
func Build(src, dst Address, payload ...byte) (Packet, error) {
	total := PacketHeaderSize + len(payload) + ChecksumFieldSize
	if total > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	p := make(Packet, total)
	p[0] = byte(src)
	p[1] = byte(total - 2)
	p[2] = byte(dst)
	copy(p[PacketHeaderSize:], payload)
	if err := Frame(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p Packet) Source() Address {
	if len(p) < 1 {
		return 0
	}
	return Address(p[0])
}

func (p Packet) Length() byte {
	if len(p) < 2 {
		return 0
	}
	return p[1]
}

func (p Packet) Dest() Address {
	if len(p) < 3 {
		return 0
	}
	return Address(p[2])
}

// Payload returns the bytes between the destination and the checksum.
func (p Packet) Payload() []byte {
	if len(p) < PacketHeaderSize+ChecksumFieldSize {
		return nil
	}
	return p[PacketHeaderSize : len(p)-1]
}

// Command returns the first payload byte, or 0 when there is none.
func (p Packet) Command() byte {
	pl := p.Payload()
	if len(pl) == 0 {
		return 0
	}
	return pl[0]
}

func (p Packet) Sum() byte {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Complete reports whether the length field agrees with the packet size.
func (p Packet) Complete() bool {
	return len(p) >= MinPacketSize && ExpectedSize(p.Length()) == len(p)
}

// Valid reports whether p is complete and its checksum matches.
func (p Packet) Valid() bool { return Verify(p) == nil }

func (p Packet) Clone() Packet {
	if p == nil {
		return nil
	}
	out := make(Packet, len(p))
	copy(out, p)
	return out
}

// Equal reports whether two packets carry identical bytes.
func (p Packet) Equal(o []byte) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

const hexDigits = "0123456789ABCDEF"

// String renders the packet as space separated hex, e.g. "50 03 C8 01 9A".
func (p Packet) String() string {
	if len(p) == 0 {
		return ""
	}
	out := make([]byte, 0, len(p)*3-1)
	for i, c := range p {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0F])
	}
	return string(out)
}
