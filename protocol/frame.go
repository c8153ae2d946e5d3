package protocol

// Framing on the wire:
//   Source(1) | Length(1) | Destination(1) | Payload(n) | Checksum(1)
// Length counts everything AFTER the length byte, so total = Length + 2.
// Checksum is the XOR of every other byte of the packet.

// Checksum returns the XOR of all bytes in b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}

// ExpectedSize returns the total packet size announced by a length byte.
func ExpectedSize(length byte) int {
	return int(length) + 2
}

// Frame writes the checksum of b[:len(b)-1] into the last byte of b. The
// length field is left as the caller wrote it.
func Frame(b []byte) error {
	if len(b) == 0 {
		return ErrEmptyPacket
	}
	if len(b) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	last := len(b) - 1
	b[last] = Checksum(b[:last])
	return nil
}

// Verify checks that b is a complete packet: the length field agrees with its
// size and the trailing checksum matches.
func Verify(b []byte) error {
	if len(b) < MinPacketSize {
		return ErrPacketTooShort
	}
	if len(b) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	if ExpectedSize(b[lengthIndex]) != len(b) {
		return ErrLengthMismatch
	}
	last := len(b) - 1
	if want := Checksum(b[:last]); want != b[last] {
		return &ChecksumError{Want: want, Got: b[last]}
	}
	return nil
}
