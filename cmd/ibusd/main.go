//go:build linux && !tinygo

// Command ibusd is the host side of the gateway: it owns the bus interface
// port, retransmits queued packets until they are echoed and mirrors the
// traffic to an MQTT broker.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ystepanoff/ibusgw/config"
	"github.com/ystepanoff/ibusgw/driver/tty"
	"github.com/ystepanoff/ibusgw/protocol"
	"github.com/ystepanoff/ibusgw/telemetry"
	"github.com/ystepanoff/ibusgw/transport"
)

const defaultConfigPath = "/etc/ibusd.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file (empty for defaults)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}

	log := newLogger(cfg, *debug)
	log.Info().
		Str("config", *configPath).
		Str("instance", cfg.InstanceID).
		Str("device", cfg.Serial.Device).
		Msg("starting ibusd")

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("ibusd stopped")
		os.Exit(1)
	}
	log.Info().Msg("ibusd stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config, debug bool) zerolog.Logger {
	level, _ := cfg.LogLevel()
	if debug {
		level = zerolog.DebugLevel
	}
	var log zerolog.Logger
	if cfg.Log.Format == "json" {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})
	}
	return log.Level(level).With().Timestamp().Str("instance", cfg.InstanceID).Logger()
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	driver, err := tty.Open(tty.Config{
		Device:       cfg.Serial.Device,
		FlowControl:  cfg.Serial.FlowControl,
		ReadTimeout:  cfg.Serial.ReadTimeout,
		LineIdleGPIO: cfg.GPIO.LineIdlePin,
		SysfsRoot:    cfg.GPIO.SysfsRoot,
	}, log.With().Str("component", "tty").Logger())
	if err != nil {
		return err
	}
	defer driver.Close()

	opts := []transport.Option{
		transport.WithTickInterval(cfg.Queue.Tick),
		transport.WithResendTicks(cfg.Queue.ResendTicks),
		transport.WithRetryLimit(cfg.Queue.RetryLimit),
		transport.WithCapacity(cfg.Queue.Capacity),
		transport.WithLogger(log.With().Str("component", "ibus").Logger()),
		transport.WithGiveUp(func(p protocol.Packet) {
			log.Warn().Str("packet", p.String()).Msg("no echo from the bus, check the interface wiring")
		}),
	}
	if cfg.Receiver.StrictChecksum {
		opts = append(opts, transport.WithStrictChecksum())
	}

	var pub *telemetry.Publisher
	if cfg.MQTT.Enabled {
		pub = telemetry.NewPublisher(telemetry.Config{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Instance:  cfg.InstanceID,
			TxTopic:   cfg.MQTT.Topics.Tx,
			RxTopic:   cfg.MQTT.Topics.Rx,
			SendTopic: cfg.MQTT.Topics.Send,
			QoS:       cfg.MQTT.QoS,
		}, log)
		opts = append(opts, transport.WithObserver(pub))
	}

	tx := transport.NewTransmitterWithDriver(driver, opts...)
	tx.Receiver().RegisterDefault(func(p protocol.Packet) {
		log.Debug().
			Stringer("src", p.Source()).
			Stringer("dst", p.Dest()).
			Hex("data", p).
			Msg("bus packet")
	})

	if pub != nil {
		if err := pub.Connect(ctx); err != nil {
			return err
		}
		defer pub.Disconnect()
		if err := pub.Subscribe(tx); err != nil {
			return err
		}
		go func() {
			if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("telemetry stopped")
			}
		}()
	}

	return tx.Run(ctx)
}
