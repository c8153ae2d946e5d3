package config

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

func validateMQTT(cfg *Config) error {
	m := &cfg.MQTT
	if !m.Enabled {
		return nil
	}
	if m.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.ClientID == "" {
		m.ClientID = fmt.Sprintf("ibusd-%s", cfg.InstanceID)
	}

	// Set default topics if not provided
	if m.Topics.Tx == "" {
		m.Topics.Tx = fmt.Sprintf("%s/%s/tx", TopicPrefix, cfg.InstanceID)
	}
	if m.Topics.Rx == "" {
		m.Topics.Rx = fmt.Sprintf("%s/%s/rx", TopicPrefix, cfg.InstanceID)
	}
	if m.Topics.Send == "" {
		m.Topics.Send = fmt.Sprintf("%s/%s/send", TopicPrefix, cfg.InstanceID)
	}
	return nil
}

// LogLevel returns the configured zerolog level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
