package config

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

const (
	DefaultRate       = 200
	MaxRate           = 1_000_000_000 // one tick per nanosecond
	DefaultHealthPort = "8080"

	TransportMQTT   = "mqtt"
	TransportNATS   = "nats"
	TransportMemory = "memory"

	DefaultShutdownTimeoutS = 5

	CodecJSON    = "json"
	CodecMsgpack = "msgpack"

	SourceBus  = "bus"
	SourceGPIO = "gpio"
	SourceMock = "mock"
	SourceNone = "none"

	// MoodPlaceholder is replaced by the active mood in command topics
	MoodPlaceholder = "{mood}"
)

var knownMoods = map[string]bool{"good": true, "sad": true, "sleep": true}

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Validate mood
	if cfg.Mood == "" {
		return fmt.Errorf("mood is required (good, sad or sleep)")
	}
	if !knownMoods[cfg.Mood] {
		return fmt.Errorf("unknown mood %q (must be good, sad or sleep)", cfg.Mood)
	}

	// Validate rate
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Rate < 0 {
		return fmt.Errorf("rate must be > 0")
	}
	if cfg.Rate > MaxRate {
		return fmt.Errorf("rate must be <= %d, got %d", MaxRate, cfg.Rate)
	}

	if cfg.HealthPort == "" {
		cfg.HealthPort = DefaultHealthPort
	}

	if cfg.ShutdownTimeoutS == 0 {
		cfg.ShutdownTimeoutS = DefaultShutdownTimeoutS
	}
	if cfg.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s must be > 0")
	}

	switch cfg.Codec {
	case "":
		cfg.Codec = CodecJSON
	case CodecJSON, CodecMsgpack:
	default:
		return fmt.Errorf("unknown codec %q (must be json or msgpack)", cfg.Codec)
	}

	switch cfg.Transport {
	case "", TransportMQTT:
		cfg.Transport = TransportMQTT
		if err := validateMQTT(cfg); err != nil {
			return err
		}
	case TransportNATS:
		if err := validateNATS(cfg); err != nil {
			return err
		}
	case TransportMemory:
		// In-process bus, topics follow the MQTT layout
		defaultMQTTTopics(cfg)
	default:
		return fmt.Errorf("unknown transport %q (must be mqtt, nats or memory)", cfg.Transport)
	}

	if err := validateSensors(&cfg.Sensors); err != nil {
		return fmt.Errorf("sensors: %w", err)
	}

	return nil
}

func validateMQTT(cfg *Config) error {
	// Validate MQTT broker
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	defaultMQTTTopics(cfg)

	for name, qos := range cfg.MQTT.QoS {
		if qos > 2 {
			return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2, got %d", name, qos)
		}
	}
	return nil
}

func defaultMQTTTopics(cfg *Config) {
	// Set default topics if not provided. Command topics follow the
	// /miro_<mood> convention of the platform bridge.
	t := &cfg.MQTT.Topics
	if t.Sensors == "" {
		t.Sensors = fmt.Sprintf("/miro/%s/platform/sensors", cfg.InstanceID)
	}
	if t.Command == "" {
		t.Command = "/miro_" + MoodPlaceholder
	}
	if t.Control == "" {
		t.Control = fmt.Sprintf("miro/control/%s", cfg.InstanceID)
	}
	if t.Health == "" {
		t.Health = fmt.Sprintf("miro/health/%s", cfg.InstanceID)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"command": 0,
			"sensors": 0,
			"control": 1,
			"health":  0,
		}
	}
}

func validateNATS(cfg *Config) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}

	s := &cfg.NATS.Subjects
	if s.Sensors == "" {
		s.Sensors = fmt.Sprintf("miro.%s.sensors", cfg.InstanceID)
	}
	if s.Command == "" {
		s.Command = fmt.Sprintf("miro.%s.%s", cfg.InstanceID, MoodPlaceholder)
	}
	if s.Control == "" {
		s.Control = fmt.Sprintf("miro.%s.control", cfg.InstanceID)
	}
	if s.Health == "" {
		s.Health = fmt.Sprintf("miro.%s.health", cfg.InstanceID)
	}
	for _, subj := range []string{s.Sensors, s.Control, s.Health} {
		if strings.ContainsAny(subj, " \t") {
			return fmt.Errorf("nats subject %q must not contain whitespace", subj)
		}
	}
	return nil
}

func validateSensors(s *SensorsConfig) error {
	switch s.Source {
	case "":
		s.Source = SourceBus
	case SourceBus, SourceMock, SourceNone:
	case SourceGPIO:
		if len(s.GPIO.HeadPins) != 4 || len(s.GPIO.BodyPins) != 4 {
			return fmt.Errorf("gpio needs exactly 4 head_pins and 4 body_pins, got %d and %d",
				len(s.GPIO.HeadPins), len(s.GPIO.BodyPins))
		}
		seen := make(map[int]bool)
		for _, pin := range append(append([]int{}, s.GPIO.HeadPins...), s.GPIO.BodyPins...) {
			if seen[pin] {
				return fmt.Errorf("gpio pin %d used twice", pin)
			}
			seen[pin] = true
		}
	default:
		return fmt.Errorf("unknown source %q (must be bus, gpio, mock or none)", s.Source)
	}

	if s.GPIO.PollHz <= 0 {
		s.GPIO.PollHz = 50
	}
	if s.Mock.IntervalMS <= 0 {
		s.Mock.IntervalMS = 1000
	}
	return nil
}

// ActiveTopics returns the topic set of the selected transport
func (c *Config) ActiveTopics() Topics {
	if c.Transport == TransportNATS {
		return c.NATS.Subjects
	}
	return c.MQTT.Topics
}

// QoSFor returns the QoS for a topic role (command, sensors, control,
// health). NATS ignores it.
func (c *Config) QoSFor(role string) byte {
	return c.MQTT.QoS[role]
}

// CommandTopic resolves the command topic template for mood
func CommandTopic(template, mood string) string {
	return strings.ReplaceAll(template, MoodPlaceholder, mood)
}
