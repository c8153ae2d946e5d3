// Package config loads the gateway daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ystepanoff/ibusgw/protocol"
)

// Config represents the complete daemon configuration
type Config struct {
	InstanceID string         `yaml:"instance_id"` // generated when empty
	Serial     SerialConfig   `yaml:"serial"`
	GPIO       GPIOConfig     `yaml:"gpio"`
	Queue      QueueConfig    `yaml:"queue"`
	Receiver   ReceiverConfig `yaml:"receiver"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
	Log        LogConfig      `yaml:"log"`
}

// SerialConfig describes the bus interface port
type SerialConfig struct {
	Device      string        `yaml:"device"`
	FlowControl bool          `yaml:"flow_control"` // gate transmission on CTS
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// GPIOConfig describes the line-idle input
type GPIOConfig struct {
	LineIdlePin int    `yaml:"line_idle_pin"` // -1 disables the check
	SysfsRoot   string `yaml:"sysfs_root"`
}

// QueueConfig contains transmit queue settings
type QueueConfig struct {
	Tick        time.Duration `yaml:"tick"`
	ResendTicks int           `yaml:"resend_ticks"`
	RetryLimit  int           `yaml:"retry_limit"`
	Capacity    int           `yaml:"capacity"` // 0 is unbounded
}

// ReceiverConfig contains receive path settings
type ReceiverConfig struct {
	StrictChecksum bool `yaml:"strict_checksum"`
}

// MQTTConfig contains telemetry broker settings
type MQTTConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Broker   string     `yaml:"broker"`
	ClientID string     `yaml:"client_id"`
	Topics   MQTTTopics `yaml:"topics"`
	QoS      byte       `yaml:"qos"`
}

// MQTTTopics contains the topic names
type MQTTTopics struct {
	Tx   string `yaml:"tx"`
	Rx   string `yaml:"rx"`
	Send string `yaml:"send"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // console or json
}

// Default returns the configuration used for fields a file leaves out.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyAMA0",
			FlowControl: true,
			ReadTimeout: 100 * time.Millisecond,
		},
		GPIO: GPIOConfig{
			LineIdlePin: 15,
			SysfsRoot:   "/sys/class/gpio",
		},
		Queue: QueueConfig{
			Tick:        protocol.HostTickMillis * time.Millisecond,
			ResendTicks: protocol.DefaultResendTicks,
			RetryLimit:  protocol.DefaultRetryLimit,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			QoS:    0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// TopicPrefix is the root under which default topics are derived.
const TopicPrefix = "ibus"

// Validate checks the configuration and fills derived defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.New().String()
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if cfg.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be > 0")
	}

	if cfg.Queue.Tick <= 0 {
		return fmt.Errorf("queue.tick must be > 0")
	}
	if cfg.Queue.ResendTicks < 1 {
		return fmt.Errorf("queue.resend_ticks must be >= 1")
	}
	if cfg.Queue.RetryLimit < 1 {
		return fmt.Errorf("queue.retry_limit must be >= 1")
	}
	if cfg.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must be >= 0")
	}

	if err := validateMQTT(cfg); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if _, err := cfg.LogLevel(); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}
	return nil
}
