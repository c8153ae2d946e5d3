package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPacket    = errors.New("empty packet")
	ErrPacketTooShort = errors.New("packet shorter than minimum size")
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
	ErrLengthMismatch = errors.New("length field does not match packet size")
	ErrTextTooLong    = errors.New("text does not fit in a single packet")
)

// ChecksumError reports a packet whose trailing byte does not match the XOR of
// the preceding bytes.
type ChecksumError struct {
	Want byte
	Got  byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: want 0x%02X, got 0x%02X", e.Want, e.Got)
}
