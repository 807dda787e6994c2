package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete controller configuration
type Config struct {
	InstanceID       string        `yaml:"instance_id"`
	Mood             string        `yaml:"mood"`               // good, sad, sleep
	Rate             int           `yaml:"rate"`               // control loop ticks per second (default: 200)
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Transport        string        `yaml:"transport"`          // mqtt, nats
	Codec            string        `yaml:"codec"`              // json, msgpack
	HealthPort       string        `yaml:"health_port"`
	Sensors          SensorsConfig `yaml:"sensors"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
	NATS             NATSConfig    `yaml:"nats"`
}

// SensorsConfig selects where touch readings come from
type SensorsConfig struct {
	Source string         `yaml:"source"` // bus, gpio, mock, none
	GPIO   GPIOConfig     `yaml:"gpio"`
	Mock   MockSensorConf `yaml:"mock"`
}

// GPIOConfig maps touch zones to GPIO pins (BCM numbering)
type GPIOConfig struct {
	HeadPins []int `yaml:"head_pins"`
	BodyPins []int `yaml:"body_pins"`
	PollHz   int   `yaml:"poll_hz"` // default: 50
}

// MockSensorConf drives the scripted demo source
type MockSensorConf struct {
	IntervalMS int `yaml:"interval_ms"` // time between scripted touches (default: 1000)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics Topics          `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// NATSConfig contains NATS server settings
type NATSConfig struct {
	URL      string `yaml:"url"`
	Subjects Topics `yaml:"subjects"`
}

// Topics contains topic (or subject) names. Command may contain the
// {mood} placeholder.
type Topics struct {
	Sensors string `yaml:"sensors"`
	Command string `yaml:"command"`
	Control string `yaml:"control"`
	Health  string `yaml:"health"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
