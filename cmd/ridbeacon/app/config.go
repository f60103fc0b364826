package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
	"github.com/onlyTheOnionNews/drone-phone/internal/radio/ble"
	"github.com/onlyTheOnionNews/drone-phone/internal/remoteid"
)

const (
	RadioBLE  RadioDriver = "ble"
	RadioStub RadioDriver = "stub"

	TelemetryStatic    TelemetrySource = "static"
	TelemetrySqlite    TelemetrySource = "sqlite"
	TelemetryWebsocket TelemetrySource = "websocket"

	OperatorTakeoff OperatorLocation = "takeoff"
	OperatorLive    OperatorLocation = "live"
	OperatorFixed   OperatorLocation = "fixed"

	ReplayLatest ReplayMode = "latest"
	ReplayPaced  ReplayMode = "replay"
)

const (
	defaultRefreshInterval = time.Second
	defaultStatus          = 1 // airborne
	defaultAreaCount       = 1
	defaultAreaRadius      = 500
	defaultAreaCeiling     = 1000
)

type RadioDriver string

type TelemetrySource string

type OperatorLocation string

type ReplayMode string

// Code returns the operator location type carried in the System message.
func (l OperatorLocation) Code() uint8 {
	switch l {
	case OperatorLive:
		return 1
	case OperatorFixed:
		return 2
	default:
		return 0
	}
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Radio     RadioConfig     `yaml:"radio"`
	Identity  IdentityConfig  `yaml:"identity"`
	Operator  OperatorConfig  `yaml:"operator"`
	Area      remoteid.Area   `yaml:"area"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses LogLevel. An empty or unknown level is INFO.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RadioConfig selects the advertiser
type RadioConfig struct {
	Driver              RadioDriver   `yaml:"driver"`
	Adapter             string        `yaml:"adapter"`             // BlueZ adapter name, hci0 by default
	Interval            time.Duration `yaml:"interval"`            // Time between two frames
	AdvertisingInterval time.Duration `yaml:"advertisingInterval"` // BLE advertising interval
}

// IdentityConfig holds the fields the operator types into the app
type IdentityConfig struct {
	UASID       string `yaml:"uasId"`
	Description string `yaml:"description"`
	OperatorID  string `yaml:"operatorId"`
	Status      *uint8 `yaml:"status"`
}

// OperatorConfig describes where the operator position comes from
type OperatorConfig struct {
	Location  OperatorLocation `yaml:"location"`
	Latitude  float64          `yaml:"latitude"`
	Longitude float64          `yaml:"longitude"`
}

// AuthConfig represents the signing key settings
type AuthConfig struct {
	PrivateKeyFile string `yaml:"privateKeyFile"`
}

// TelemetryConfig represents telemetry settings
type TelemetryConfig struct {
	Source          TelemetrySource `yaml:"source"`
	RefreshInterval time.Duration   `yaml:"refreshInterval"`
	Static          StaticConfig    `yaml:"static"`
	Sqlite          SqliteConfig    `yaml:"sqlite"`
	Websocket       WebsocketConfig `yaml:"websocket"`
	Record          RecordConfig    `yaml:"record"`
}

// StaticConfig is a fixed position, for ground tests
type StaticConfig struct {
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	Altitude      float64 `yaml:"altitude"`
	Height        float64 `yaml:"height"`
	GroundSpeed   float64 `yaml:"groundSpeed"`
	VerticalSpeed float64 `yaml:"verticalSpeed"`
	GroundCourse  float64 `yaml:"groundCourse"`
}

// SqliteConfig reads a recorded flight
type SqliteConfig struct {
	Path      string     `yaml:"path"`
	SessionID int64      `yaml:"sessionId"`
	Mode      ReplayMode `yaml:"mode"`
}

// WebsocketConfig subscribes to a live telemetry feed
type WebsocketConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnectDelay"`
}

// RecordConfig stores every received measurement in a flight log
type RecordConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig represents the metrics endpoint settings
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	Field string
	msg   string
}

func NewConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, msg: msg}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.msg)
}

// LoadConfig reads, defaults and validates the YAML configuration at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes, defaults and validates a YAML configuration
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshaling yaml: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Radio.Driver == "" {
		c.Radio.Driver = RadioBLE
	}
	if c.Radio.Interval == 0 {
		c.Radio.Interval = broadcast.DefaultInterval
	}
	if c.Radio.AdvertisingInterval == 0 {
		c.Radio.AdvertisingInterval = ble.DefaultInterval
	}

	if c.Identity.Status == nil {
		status := uint8(defaultStatus)
		c.Identity.Status = &status
	}

	if c.Operator.Location == "" {
		c.Operator.Location = OperatorTakeoff
	}

	if c.Area == (remoteid.Area{}) {
		c.Area = remoteid.Area{
			Count:   defaultAreaCount,
			Radius:  defaultAreaRadius,
			Ceiling: defaultAreaCeiling,
		}
	}

	if c.Telemetry.Source == "" {
		c.Telemetry.Source = TelemetryStatic
	}
	if c.Telemetry.RefreshInterval == 0 {
		c.Telemetry.RefreshInterval = defaultRefreshInterval
	}
	if c.Telemetry.Sqlite.Mode == "" {
		c.Telemetry.Sqlite.Mode = ReplayPaced
	}
}

// Validate returns every configuration problem found, joined
func (c *Config) Validate() error {
	var errs []error

	if c.Settings.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
			errs = append(errs, NewConfigError("settings.logLevel", fmt.Sprintf("unknown level '%s'", c.Settings.LogLevel)))
		}
	}

	switch c.Radio.Driver {
	case RadioBLE, RadioStub:
	default:
		errs = append(errs, NewConfigError("radio.driver", fmt.Sprintf("unknown driver '%s'", c.Radio.Driver)))
	}
	if c.Radio.Interval < 0 {
		errs = append(errs, NewConfigError("radio.interval", "must be positive"))
	}

	// required before anything is transmitted, longer values are truncated
	if c.Identity.UASID == "" {
		errs = append(errs, NewConfigError("identity.uasId", "required"))
	}
	if c.Identity.Description == "" {
		errs = append(errs, NewConfigError("identity.description", "required"))
	}
	if c.Identity.OperatorID == "" {
		errs = append(errs, NewConfigError("identity.operatorId", "required"))
	}

	switch c.Operator.Location {
	case OperatorTakeoff, OperatorLive:
	case OperatorFixed:
		if err := validatePosition("operator", c.Operator.Latitude, c.Operator.Longitude); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, NewConfigError("operator.location", fmt.Sprintf("unknown location '%s'", c.Operator.Location)))
	}

	if c.Area.Count < 0 || c.Area.Radius < 0 {
		errs = append(errs, NewConfigError("area", "count and radius must not be negative"))
	}
	if c.Area.Floor > c.Area.Ceiling {
		errs = append(errs, NewConfigError("area", "floor is above ceiling"))
	}

	switch c.Telemetry.Source {
	case TelemetryStatic:
		if err := validatePosition("telemetry.static", c.Telemetry.Static.Latitude, c.Telemetry.Static.Longitude); err != nil {
			errs = append(errs, err)
		}
	case TelemetrySqlite:
		if c.Telemetry.Sqlite.Path == "" {
			errs = append(errs, NewConfigError("telemetry.sqlite.path", "required"))
		}
		if c.Telemetry.Sqlite.SessionID <= 0 {
			errs = append(errs, NewConfigError("telemetry.sqlite.sessionId", "required"))
		}
		switch c.Telemetry.Sqlite.Mode {
		case ReplayLatest, ReplayPaced:
		default:
			errs = append(errs, NewConfigError("telemetry.sqlite.mode", fmt.Sprintf("unknown mode '%s'", c.Telemetry.Sqlite.Mode)))
		}
		if c.Telemetry.Record.Path != "" && c.Telemetry.Record.Path == c.Telemetry.Sqlite.Path {
			errs = append(errs, NewConfigError("telemetry.record.path", "must differ from the replayed database"))
		}
	case TelemetryWebsocket:
		if !strings.HasPrefix(c.Telemetry.Websocket.URL, "ws://") && !strings.HasPrefix(c.Telemetry.Websocket.URL, "wss://") {
			errs = append(errs, NewConfigError("telemetry.websocket.url", "must be a ws:// or wss:// URL"))
		}
	default:
		errs = append(errs, NewConfigError("telemetry.source", fmt.Sprintf("unknown source '%s'", c.Telemetry.Source)))
	}
	if c.Telemetry.RefreshInterval < 0 {
		errs = append(errs, NewConfigError("telemetry.refreshInterval", "must be positive"))
	}

	return errors.Join(errs...)
}

func validatePosition(field string, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return NewConfigError(field, fmt.Sprintf("invalid position %f, %f", lat, lon))
	}
	return nil
}
