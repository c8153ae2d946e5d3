package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ystepanoff/ibusgw/protocol"
)

type Direction string

const (
	DirectionTx Direction = "tx"
	DirectionRx Direction = "rx"
)

// Event is one packet seen on the bus, as published to the broker.
type Event struct {
	ID        string    `msgpack:"id"`
	Instance  string    `msgpack:"instance"`
	Direction Direction `msgpack:"dir"`
	Source    uint8     `msgpack:"src"`
	Dest      uint8     `msgpack:"dst"`
	Data      []byte    `msgpack:"data"`
	Time      time.Time `msgpack:"time"`
}

func newEvent(instance string, dir Direction, p protocol.Packet, now time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Instance:  instance,
		Direction: dir,
		Source:    uint8(p.Source()),
		Dest:      uint8(p.Dest()),
		Data:      p.Clone(),
		Time:      now,
	}
}

func (e Event) Marshal() ([]byte, error) {
	return msgpack.Marshal(&e)
}

func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

// SendRequest asks the gateway to queue a packet, or with Cancel set, to
// withdraw every queued packet carrying Tag. The checksum byte of Data is
// recomputed before sending.
type SendRequest struct {
	Data    []byte `msgpack:"data"`
	Sync    bool   `msgpack:"sync"`
	Prepend bool   `msgpack:"prepend"`
	Tag     int    `msgpack:"tag"`
	Cancel  bool   `msgpack:"cancel"`
}

func (r SendRequest) Marshal() ([]byte, error) {
	return msgpack.Marshal(&r)
}

// DecodeSendRequest decodes and validates a request received from the broker.
// The length field of Data must agree with its size.
func DecodeSendRequest(b []byte) (SendRequest, error) {
	var r SendRequest
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return SendRequest{}, fmt.Errorf("failed to decode send request: %w", err)
	}
	if r.Cancel {
		return r, nil
	}
	switch {
	case len(r.Data) == 0:
		return r, protocol.ErrEmptyPacket
	case len(r.Data) < protocol.MinPacketSize:
		return r, protocol.ErrPacketTooShort
	case len(r.Data) > protocol.MaxPacketSize:
		return r, protocol.ErrPacketTooLarge
	case protocol.ExpectedSize(r.Data[1]) != len(r.Data):
		return r, protocol.ErrLengthMismatch
	}
	return r, nil
}
