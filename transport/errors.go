package transport

import "errors"

var (
	ErrQueueFull      = errors.New("transmit queue full")
	ErrStopped        = errors.New("transmitter stopped")
	ErrAlreadyRunning = errors.New("transmitter already running")
)
