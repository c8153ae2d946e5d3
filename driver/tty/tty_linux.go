//go:build linux && !tinygo

// Package tty drives the bus through a Linux serial port: 9600 baud, 8 data
// bits, even parity, one stop bit. Transmit arbitration uses the CTS modem
// line, a GPIO wired to the bus RX line and the kernel's receive queue depth.
package tty

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"golang.org/x/sys/unix"

	"github.com/ystepanoff/ibusgw/protocol"
	"github.com/ystepanoff/ibusgw/transport"
)

var ErrClosed = errors.New("tty closed")

// Config describes the port and its arbitration inputs.
type Config struct {
	Device string

	// FlowControl gates transmission on the CTS line
	FlowControl bool

	// ReadTimeout bounds a single Read so the reader can notice shutdown
	ReadTimeout time.Duration

	// LineIdleGPIO is the sysfs GPIO number wired to the bus RX line; a
	// negative value disables the check
	LineIdleGPIO int
	SysfsRoot    string
}

// Driver implements transport.BusDriver on a serial port.
type Driver struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	port  serial.Port
	probe *os.File // second descriptor for queue depth ioctls
	line  *gpioLine

	warnedGPIO bool
}

var _ transport.BusDriver = (*Driver)(nil)

// Open opens the port and the line-idle GPIO.
func Open(cfg Config, log zerolog.Logger) (*Driver, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = DefaultSysfsRoot
	}

	d := &Driver{cfg: cfg, log: log.With().Str("device", cfg.Device).Logger()}
	if cfg.LineIdleGPIO >= 0 {
		line, err := openGPIO(cfg.SysfsRoot, cfg.LineIdleGPIO)
		if err != nil {
			return nil, err
		}
		d.line = line
	}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) open() error {
	mode := &serial.Mode{
		BaudRate: protocol.BaudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.cfg.Device, err)
	}
	if err := port.SetReadTimeout(d.cfg.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	probe, err := os.OpenFile(d.cfg.Device, os.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		port.Close()
		return fmt.Errorf("failed to open %s for queue probing: %w", d.cfg.Device, err)
	}

	d.mu.Lock()
	d.port = port
	d.probe = probe
	d.mu.Unlock()

	d.log.Info().Int("baud", protocol.BaudRate).Bool("cts", d.cfg.FlowControl).Msg("port opened")
	return nil
}

func (d *Driver) current() (serial.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil, ErrClosed
	}
	return d.port, nil
}

func (d *Driver) Read(p []byte) (int, error) {
	port, err := d.current()
	if err != nil {
		return 0, err
	}
	return port.Read(p)
}

func (d *Driver) Write(p []byte) (int, error) {
	port, err := d.current()
	if err != nil {
		return 0, err
	}
	return port.Write(p)
}

// Flush waits until the kernel has sent every written byte.
func (d *Driver) Flush() error {
	port, err := d.current()
	if err != nil {
		return err
	}
	return port.Drain()
}

func (d *Driver) ClearToSend() bool {
	if !d.cfg.FlowControl {
		return true
	}
	port, err := d.current()
	if err != nil {
		return false
	}
	bits, err := port.GetModemStatusBits()
	if err != nil {
		d.log.Debug().Err(err).Msg("modem status")
		return false
	}
	return bits.CTS
}

// LineIdle reads the GPIO wired to the bus; the line idles high.
func (d *Driver) LineIdle() bool {
	if d.line == nil {
		return true
	}
	high, err := d.line.high()
	if err != nil {
		if !d.warnedGPIO {
			d.log.Warn().Err(err).Msg("line idle gpio unreadable, assuming idle")
			d.warnedGPIO = true
		}
		return true
	}
	return high
}

// RxEmpty reports whether the kernel receive queue is empty.
func (d *Driver) RxEmpty() bool {
	d.mu.Lock()
	probe := d.probe
	d.mu.Unlock()
	if probe == nil {
		return true
	}
	n, err := unix.IoctlGetInt(int(probe.Fd()), unix.TIOCINQ)
	if err != nil {
		d.log.Debug().Err(err).Msg("TIOCINQ")
		return true
	}
	return n == 0
}

// Reset closes and reopens the port.
func (d *Driver) Reset() error {
	if err := d.Close(); err != nil {
		d.log.Debug().Err(err).Msg("close before reset")
	}
	return d.open()
}

func (d *Driver) Close() error {
	d.mu.Lock()
	port, probe := d.port, d.probe
	d.port, d.probe = nil, nil
	d.mu.Unlock()

	var errs []error
	if port != nil {
		errs = append(errs, port.Close())
	}
	if probe != nil {
		errs = append(errs, probe.Close())
	}
	return errors.Join(errs...)
}
