package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("instance_id: car-1\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyAMA0" || !cfg.Serial.FlowControl {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.GPIO.LineIdlePin != 15 {
		t.Errorf("gpio.line_idle_pin = %d, want 15", cfg.GPIO.LineIdlePin)
	}
	if cfg.Queue.Tick != 50*time.Millisecond || cfg.Queue.ResendTicks != 10 || cfg.Queue.RetryLimit != 3 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.MQTT.Enabled {
		t.Errorf("mqtt enabled by default")
	}
}

func TestParseOverrides(t *testing.T) {
	data := `
instance_id: car-1
serial:
  device: /dev/ttyUSB0
  flow_control: false
  read_timeout: 250ms
gpio:
  line_idle_pin: -1
queue:
  tick: 20ms
  capacity: 64
receiver:
  strict_checksum: true
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 1
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" || cfg.Serial.FlowControl || cfg.Serial.ReadTimeout != 250*time.Millisecond {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.GPIO.LineIdlePin != -1 {
		t.Errorf("gpio.line_idle_pin = %d, want -1", cfg.GPIO.LineIdlePin)
	}
	if cfg.Queue.Tick != 20*time.Millisecond || cfg.Queue.Capacity != 64 || cfg.Queue.ResendTicks != 10 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if !cfg.Receiver.StrictChecksum {
		t.Errorf("receiver.strict_checksum not set")
	}
	if cfg.MQTT.Topics.Send != "ibus/car-1/send" || cfg.MQTT.Topics.Tx != "ibus/car-1/tx" {
		t.Errorf("derived topics = %+v", cfg.MQTT.Topics)
	}
	if cfg.MQTT.ClientID != "ibusd-car-1" {
		t.Errorf("client_id = %q", cfg.MQTT.ClientID)
	}
	lvl, err := cfg.LogLevel()
	if err != nil || lvl != zerolog.DebugLevel {
		t.Errorf("LogLevel() = %v, %v", lvl, err)
	}
}

func TestGeneratedInstanceID(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) || len(cfg.InstanceID) != 36 {
		t.Errorf("instance_id = %q, want a uuid", cfg.InstanceID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad instance id", "instance_id: Car_1", "instance_id"},
		{"no device", "serial:\n  device: \"\"", "serial.device"},
		{"zero tick", "queue:\n  tick: 0s", "queue.tick"},
		{"zero resend", "queue:\n  resend_ticks: 0", "queue.resend_ticks"},
		{"negative capacity", "queue:\n  capacity: -1", "queue.capacity"},
		{"bad qos", "mqtt:\n  enabled: true\n  qos: 3", "qos"},
		{"no broker", "mqtt:\n  enabled: true\n  broker: \"\"", "broker"},
		{"bad level", "log:\n  level: loud", "log.level"},
		{"bad format", "log:\n  format: xml", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ibusd.yaml")
	if err := os.WriteFile(path, []byte("instance_id: car-2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InstanceID != "car-2" {
		t.Errorf("instance_id = %q", cfg.InstanceID)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load(missing) error = nil")
	}
}
