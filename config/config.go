// Package config defines the close-call reporter configuration, its defaults and how it is read
// from a file and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Defaults reproduce the wiring of the Grove close-call kit: distance interrupter on Arduino
// header pin D2, u-blox GPS on the first UART at 9600 baud, polled every five seconds.
const (
	DefaultDetectorModel = "periph"
	DefaultDetectorPin   = "D2"
	DefaultGPIOChip      = "/dev/gpiochip0"
	DefaultGPSPath       = "/dev/ttyMFD1" // mraa UART 0 on the Edison breakout
	DefaultGPSBaudRate   = 9600
	DefaultPollInterval  = 5 * time.Second
	DefaultMessage       = "object-detected"
	DefaultPayloadFormat = "json"
	DefaultMQTTTopic     = "close-call-reporter"
	DefaultMQTTQoS       = 1
)

// Config describes the whole process.
type Config struct {
	Detector  DetectorConfig  `json:"detector"`
	GPS       GPSConfig       `json:"gps"`
	Reporter  ReporterConfig  `json:"reporter"`
	MQTT      MQTTConfig      `json:"mqtt"`
	Datastore DatastoreConfig `json:"datastore"`
	Platform  PlatformConfig  `json:"platform"`
	Log       LogConfig       `json:"log"`

	// ConfigFilePath is the file this config was read from, empty when built from defaults.
	ConfigFilePath string `json:"-"`
}

// DetectorConfig selects and wires the object detector.
type DetectorConfig struct {
	Model string `json:"model"`
	// Pin is an Arduino header name ("D2", "IO2"), resolved per board at startup, or a pin name
	// or Linux GPIO number passed to the driver as is. The "gpiochip" model takes a line offset.
	Pin string `json:"pin"`
	// Chip is the GPIO character device used by the "gpiochip" model.
	Chip      string `json:"chip"`
	ActiveLow bool   `json:"active_low"`
	// Sequence scripts the "fake" model.
	Sequence []bool `json:"sequence,omitempty"`
}

// GPSConfig describes the NMEA serial link.
type GPSConfig struct {
	Path     string `json:"path"`
	BaudRate uint   `json:"baud_rate"`
	Disabled bool   `json:"disabled"`
}

// ReporterConfig tunes the detection loop.
type ReporterConfig struct {
	PollInterval  time.Duration `json:"poll_interval"`
	Message       string        `json:"message"`
	PayloadFormat string        `json:"payload_format"`
}

// MQTTConfig configures the message bus sink. An empty Server disables it.
type MQTTConfig struct {
	Server   string `json:"server"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
	Username string `json:"username"`
	Password string `json:"password"`
	CA       string `json:"ca"`
	Cert     string `json:"cert"`
	Key      string `json:"key"`
	QoS      byte   `json:"qos"`
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Server != ""
}

// DatastoreConfig configures the REST sink. An empty Server disables it.
type DatastoreConfig struct {
	Server    string        `json:"server"`
	AuthToken string        `json:"auth_token"`
	Timeout   time.Duration `json:"timeout"`
}

// Enabled reports whether a datastore endpoint is configured.
func (c DatastoreConfig) Enabled() bool {
	return c.Server != ""
}

// PlatformConfig controls the supported-board check run before any hardware is touched.
type PlatformConfig struct {
	SkipCheck bool     `json:"skip_check"`
	Supported []string `json:"supported,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Model:     DefaultDetectorModel,
			Pin:       DefaultDetectorPin,
			Chip:      DefaultGPIOChip,
			ActiveLow: true,
		},
		GPS: GPSConfig{
			Path:     DefaultGPSPath,
			BaudRate: DefaultGPSBaudRate,
		},
		Reporter: ReporterConfig{
			PollInterval:  DefaultPollInterval,
			Message:       DefaultMessage,
			PayloadFormat: DefaultPayloadFormat,
		},
		MQTT: MQTTConfig{
			Topic: DefaultMQTTTopic,
			QoS:   DefaultMQTTQoS,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate ensures all parts of the config are valid. `path` prefixes field names in errors.
func (c *Config) Validate(path string) error {
	if c.Detector.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "detector.model")
	}
	if c.Detector.Model != "fake" && c.Detector.Pin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "detector.pin")
	}
	if !c.GPS.Disabled {
		if c.GPS.Path == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "gps.path")
		}
		if c.GPS.BaudRate == 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "gps.baud_rate")
		}
	}
	if c.Reporter.Message == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "reporter.message")
	}
	if c.Reporter.PollInterval <= 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("reporter.poll_interval must be positive, got %s", c.Reporter.PollInterval))
	}
	switch c.Reporter.PayloadFormat {
	case "json", "legacy":
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("reporter.payload_format must be \"json\" or \"legacy\", got %q", c.Reporter.PayloadFormat))
	}
	if c.MQTT.Enabled() {
		if c.MQTT.Topic == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "mqtt.topic")
		}
		if c.MQTT.QoS > 2 {
			return utils.NewConfigValidationError(path, errors.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
		if (c.MQTT.Cert == "") != (c.MQTT.Key == "") {
			return utils.NewConfigValidationError(path, errors.New("mqtt.cert and mqtt.key must be set together"))
		}
	}
	if c.Datastore.Timeout < 0 {
		return utils.NewConfigValidationError(path, errors.New("datastore.timeout cannot be negative"))
	}
	return nil
}

// defaultClientID derives a broker client id from the hostname.
func defaultClientID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		// Broker client ids must be unique per connection.
		hostname = uuid.NewString()[:8]
	}
	return fmt.Sprintf("closecall-%s", hostname)
}
