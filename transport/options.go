package transport

import (
	"time"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/ibusgw/protocol"
)

// Observer is told about every packet written to and read from the bus.
// Calls happen on the transmitter's goroutine and must not block.
type Observer interface {
	ObserveTx(p proto.Packet)
	ObserveRx(p proto.Packet)
}

// GiveUpFunc is called when the queue gives up on an unproven link, before
// the driver is reset. p is the packet whose attempts ran out.
type GiveUpFunc func(p proto.Packet)

// Config holds the queue and transmitter configuration.
type Config struct {
	// TickInterval is the queue service period
	TickInterval time.Duration

	// ResendTicks is how many ticks an unacknowledged packet waits before
	// it is written again
	ResendTicks int

	// RetryLimit is the number of attempts allowed before giving up while the
	// link has never echoed a packet back
	RetryLimit int

	// Capacity bounds the number of queued packets; zero means unbounded
	Capacity int

	// StrictChecksum drops received packets with a bad checksum
	StrictChecksum bool

	// Logger receives queue and transmitter events
	Logger zerolog.Logger

	// Observer sees every packet written and received (optional)
	Observer Observer

	// OnGiveUp is called when retries on an unproven link are exhausted (optional)
	OnGiveUp GiveUpFunc
}

func defaultConfig() Config {
	return Config{
		TickInterval: proto.HostTickMillis * time.Millisecond,
		ResendTicks:  proto.DefaultResendTicks,
		RetryLimit:   proto.DefaultRetryLimit,
		Logger:       zerolog.Nop(),
	}
}

// Option is a functional option for configuring a Queue or Transmitter.
type Option func(*Config)

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ResendTicks < 1 {
		cfg.ResendTicks = 1
	}
	if cfg.RetryLimit < 1 {
		cfg.RetryLimit = 1
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = proto.HostTickMillis * time.Millisecond
	}
	return cfg
}

// WithTickInterval sets the queue service period.
//
// Example:
//
//	tx := transport.NewTransmitterWithDriver(d, transport.WithTickInterval(25*time.Millisecond))
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) { c.TickInterval = d }
}

// WithResendTicks sets how many ticks to wait for an echo before writing a
// packet again.
func WithResendTicks(n int) Option {
	return func(c *Config) { c.ResendTicks = n }
}

// WithRetryLimit sets how many attempts an unproven link gets before the
// queue gives up.
func WithRetryLimit(n int) Option {
	return func(c *Config) { c.RetryLimit = n }
}

// WithCapacity bounds the queue length. Enqueue on a full queue fails with
// ErrQueueFull.
func WithCapacity(n int) Option {
	return func(c *Config) { c.Capacity = n }
}

// WithStrictChecksum drops received packets whose checksum does not match.
func WithStrictChecksum() Option {
	return func(c *Config) { c.StrictChecksum = true }
}

// WithLogger sets a zerolog logger.
//
// Example:
//
//	tx := transport.NewTransmitterWithDriver(d,
//	    transport.WithLogger(log.With().Str("component", "ibus").Logger()),
//	)
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithObserver registers a traffic observer.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.Observer = o }
}

// WithGiveUp registers a callback for give-up events.
func WithGiveUp(fn GiveUpFunc) Option {
	return func(c *Config) { c.OnGiveUp = fn }
}
