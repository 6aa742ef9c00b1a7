// Package config loads archerd settings from a JSON file, environment
// variables and defaults, in increasing order of precedence: defaults,
// file, environment. Flags in main override all three.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bunchim/archer/internal/device"
	"github.com/bunchim/archer/internal/observability"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/model"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration read from JSON as a string such as "5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DeviceConfig selects the optional armband bridge. An empty Transport
// disables it.
type DeviceConfig struct {
	Transport   string   `json:"transport"`
	Address     string   `json:"address"`
	BaudRate    int      `json:"baud_rate"`
	DialTimeout Duration `json:"dial_timeout"`
}

// Enabled reports whether a bridge is configured.
func (d DeviceConfig) Enabled() bool { return strings.TrimSpace(d.Transport) != "" }

// Device converts to the device package's Config.
func (d DeviceConfig) Device() device.Config {
	return device.Config{
		Transport:   d.Transport,
		Address:     d.Address,
		BaudRate:    d.BaudRate,
		DialTimeout: time.Duration(d.DialTimeout),
	}
}

// Config is the full archerd configuration.
type Config struct {
	ListenAddress  string `json:"listen_address"`
	MetricsAddress string `json:"metrics_address"`
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`

	// StatePath is where saved session fields are written on shutdown.
	// Empty disables persistence.
	StatePath string `json:"state_path"`

	Device DeviceConfig   `json:"device"`
	Launch session.Launch `json:"launch"`
	Target *model.LatLng  `json:"target,omitempty"`

	AllowReversed bool `json:"allow_reversed"`
	AutoResume    bool `json:"auto_resume"`
	MaxSamples    int  `json:"max_samples"`
	ShotLogLimit  int  `json:"shot_log_limit"`

	Tracing observability.TracingConfig `json:"tracing"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddress:  ":50051",
		MetricsAddress: ":9090",
		LogLevel:       "info",
		LogFormat:      "text",
		Device: DeviceConfig{
			BaudRate:    device.DefaultBaudRate,
			DialTimeout: Duration(device.DefaultDialTimeout),
		},
		Launch:        session.DefaultLaunch(),
		AllowReversed: true,
		AutoResume:    true,
		MaxSamples:    4096,
		ShotLogLimit:  1000,
		Tracing:       observability.DefaultTracingConfig(),
	}
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays ARCHER_* variables (and LOG_LEVEL / LOG_FORMAT) onto cfg.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("ARCHER_LISTEN_ADDRESS", &c.ListenAddress)
	setString("ARCHER_METRICS_ADDRESS", &c.MetricsAddress)
	setString("ARCHER_STATE_PATH", &c.StatePath)
	setString("ARCHER_DEVICE_TRANSPORT", &c.Device.Transport)
	setString("ARCHER_DEVICE_ADDRESS", &c.Device.Address)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)

	if v := os.Getenv("ARCHER_DEVICE_BAUD"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: ARCHER_DEVICE_BAUD: %v", ErrInvalidConfig, err)
		}
		c.Device.BaudRate = baud
	}
	if v := os.Getenv("ARCHER_LAUNCH_SOURCE"); v != "" {
		src, err := session.ParseLaunchSource(v)
		if err != nil {
			return fmt.Errorf("%w: ARCHER_LAUNCH_SOURCE: %v", ErrInvalidConfig, err)
		}
		c.Launch.Source = src
	}
	for key, dst := range map[string]*bool{
		"ARCHER_AUTO_RESUME":    &c.AutoResume,
		"ARCHER_ALLOW_REVERSED": &c.AllowReversed,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
			}
			*dst = b
		}
	}
	c.Tracing = observability.ApplyTracingEnv(c.Tracing)
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return invalid("listen_address must be set")
	}
	if _, err := session.ParseLaunchSource(string(c.Launch.Source)); err != nil {
		return invalid("%v", err)
	}
	if !(c.Launch.Mass > 0) || math.IsInf(c.Launch.Mass, 0) {
		return invalid("launch.mass must be positive, got %v", c.Launch.Mass)
	}
	if math.IsNaN(c.Launch.Force) || math.IsInf(c.Launch.Force, 0) || c.Launch.Force < 0 {
		return invalid("launch.force must be finite and non-negative, got %v", c.Launch.Force)
	}
	if c.Target != nil {
		if err := c.Target.Validate(); err != nil {
			return invalid("target: %v", err)
		}
	}
	if c.MaxSamples < 0 {
		return invalid("max_samples must not be negative")
	}
	if c.ShotLogLimit < 0 {
		return invalid("shot_log_limit must not be negative")
	}
	if c.Device.Enabled() {
		switch strings.ToLower(c.Device.Transport) {
		case device.TransportSerial, device.TransportTCP:
		default:
			return invalid("device.transport %q must be serial or tcp", c.Device.Transport)
		}
		if strings.TrimSpace(c.Device.Address) == "" {
			return invalid("device.address must be set when device.transport is %q", c.Device.Transport)
		}
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		return invalid("tracing.exporter %q must be stdout or otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return invalid("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}
