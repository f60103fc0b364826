package app

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/onlyTheOnionNews/drone-phone/internal/remoteid"
)

const minimalConfig = `
identity:
  uasId: DRONE1
  description: Survey flight
  operatorId: FIN87astrdge12k8
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
settings:
  logLevel: debug
radio:
  driver: stub
  adapter: hci1
  interval: 500ms
  advertisingInterval: 200ms
identity:
  uasId: DRONE1
  description: Survey flight
  operatorId: FIN87astrdge12k8
  status: 2
operator:
  location: fixed
  latitude: 60.1699
  longitude: 24.9384
area:
  count: 2
  radius: 250
  ceiling: 120
  floor: 10
auth:
  privateKeyFile: /etc/ridbeacon/key.pem
telemetry:
  source: websocket
  refreshInterval: 250ms
  websocket:
    url: ws://localhost:8080/telemetry
    reconnectDelay: 5s
  record:
    path: flight.db
metrics:
  listen: 127.0.0.1:9100
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	status := uint8(2)
	want := &Config{
		Settings: Settings{LogLevel: "debug"},
		Radio: RadioConfig{
			Driver:              RadioStub,
			Adapter:             "hci1",
			Interval:            500 * time.Millisecond,
			AdvertisingInterval: 200 * time.Millisecond,
		},
		Identity: IdentityConfig{
			UASID:       "DRONE1",
			Description: "Survey flight",
			OperatorID:  "FIN87astrdge12k8",
			Status:      &status,
		},
		Operator: OperatorConfig{Location: OperatorFixed, Latitude: 60.1699, Longitude: 24.9384},
		Area:     remoteid.Area{Count: 2, Radius: 250, Ceiling: 120, Floor: 10},
		Auth:     AuthConfig{PrivateKeyFile: "/etc/ridbeacon/key.pem"},
		Telemetry: TelemetryConfig{
			Source:          TelemetryWebsocket,
			RefreshInterval: 250 * time.Millisecond,
			Sqlite:          SqliteConfig{Mode: ReplayPaced},
			Websocket:       WebsocketConfig{URL: "ws://localhost:8080/telemetry", ReconnectDelay: 5 * time.Second},
			Record:          RecordConfig{Path: "flight.db"},
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9100"},
	}

	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("LoadConfig mismatch (-want +got):\n%s", diff)
	}
	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %s", config.Settings.Level())
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if config.Radio.Driver != RadioBLE {
		t.Errorf("Expected ble driver, got %s", config.Radio.Driver)
	}
	if config.Radio.Interval != time.Second {
		t.Errorf("Expected 1s interval, got %s", config.Radio.Interval)
	}
	if config.Identity.Status == nil || *config.Identity.Status != 1 {
		t.Errorf("Expected status 1, got %v", config.Identity.Status)
	}
	if config.Operator.Location != OperatorTakeoff {
		t.Errorf("Expected takeoff operator location, got %s", config.Operator.Location)
	}
	if diff := cmp.Diff(remoteid.Area{Count: 1, Radius: 500, Ceiling: 1000}, config.Area); diff != "" {
		t.Errorf("Area mismatch (-want +got):\n%s", diff)
	}
	if config.Telemetry.Source != TelemetryStatic {
		t.Errorf("Expected static telemetry, got %s", config.Telemetry.Source)
	}
	if config.Telemetry.RefreshInterval != time.Second {
		t.Errorf("Expected 1s refresh interval, got %s", config.Telemetry.RefreshInterval)
	}
	if config.Settings.Level() != slog.LevelInfo {
		t.Errorf("Expected info level, got %s", config.Settings.Level())
	}
}

func TestParseConfig_ZeroStatusKept(t *testing.T) {
	config, err := ParseConfig([]byte(minimalConfig + "  status: 0\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if *config.Identity.Status != 0 {
		t.Errorf("Expected status 0, got %d", *config.Identity.Status)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		field string
	}{
		{"unknown log level", "settings:\n  logLevel: loud\n", "settings.logLevel"},
		{"unknown driver", "radio:\n  driver: wifi\n", "radio.driver"},
		{"unknown operator location", "operator:\n  location: moon\n", "operator.location"},
		{"fixed operator out of range", "operator:\n  location: fixed\n  latitude: 91\n", "operator"},
		{"floor above ceiling", "area:\n  ceiling: 10\n  floor: 20\n", "area"},
		{"static position out of range", "telemetry:\n  static:\n    longitude: 181\n", "telemetry.static"},
		{"unknown source", "telemetry:\n  source: carrier-pigeon\n", "telemetry.source"},
		{"sqlite without path", "telemetry:\n  source: sqlite\n  sqlite:\n    sessionId: 1\n", "telemetry.sqlite.path"},
		{"sqlite without session", "telemetry:\n  source: sqlite\n  sqlite:\n    path: flight.db\n", "telemetry.sqlite.sessionId"},
		{"sqlite unknown mode", "telemetry:\n  source: sqlite\n  sqlite:\n    path: flight.db\n    sessionId: 1\n    mode: rewind\n", "telemetry.sqlite.mode"},
		{"record over replay", "telemetry:\n  source: sqlite\n  sqlite:\n    path: flight.db\n    sessionId: 1\n  record:\n    path: flight.db\n", "telemetry.record.path"},
		{"websocket http url", "telemetry:\n  source: websocket\n  websocket:\n    url: http://localhost\n", "telemetry.websocket.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(minimalConfig + tt.extra))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestParseConfig_Identity(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		fields []string
	}{
		{
			name:   "missing both",
			data:   "identity:\n  description: no ids\n",
			fields: []string{"identity.uasId", "identity.operatorId"},
		},
		{
			name:   "missing description",
			data:   "identity:\n  uasId: DRONE1\n  operatorId: OP\n",
			fields: []string{"identity.description"},
		},
		{
			name:   "empty document",
			data:   "",
			fields: []string{"identity.uasId", "identity.description", "identity.operatorId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			for _, field := range tt.fields {
				if !strings.Contains(err.Error(), field+":") {
					t.Errorf("Expected error on %s, got %v", field, err)
				}
			}
		})
	}
}

func TestParseConfig_LongIdentity(t *testing.T) {
	data := "identity:\n" +
		"  uasId: 1689Z9876543210ABCDEF\n" +
		"  operatorId: FIN87astrdge12k8xyz-001\n" +
		"  description: " + strings.Repeat("d", 30) + "\n"

	config, err := ParseConfig([]byte(data))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if config.Identity.UASID != "1689Z9876543210ABCDEF" {
		t.Errorf("Expected the identity kept as configured, got %s", config.Identity.UASID)
	}

	var buf bytes.Buffer
	warnTruncated(&config.Identity, slog.New(slog.NewTextHandler(&buf, nil)))

	out := buf.String()
	for _, want := range []string{
		"field=identity.uasId",
		"broadcast=1689Z9876543210ABCDE\n",
		"field=identity.operatorId",
		"field=identity.description",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output:\n%s", want, out)
		}
	}
}

func TestWarnTruncated_ShortValues(t *testing.T) {
	var buf bytes.Buffer
	identity := IdentityConfig{UASID: "DRONE1", Description: "Survey flight", OperatorID: "FIN87astrdge12k8"}
	warnTruncated(&identity, slog.New(slog.NewTextHandler(&buf, nil)))

	if buf.Len() != 0 {
		t.Errorf("Expected no warning, got:\n%s", buf.String())
	}
}

func TestParseConfig_UnknownField(t *testing.T) {
	if _, err := ParseConfig([]byte(minimalConfig + "radios:\n  driver: ble\n")); err == nil {
		t.Error("Expected error for an unknown field")
	}
}

func TestOperatorLocation_Code(t *testing.T) {
	tests := []struct {
		location OperatorLocation
		want     uint8
	}{
		{OperatorTakeoff, 0},
		{OperatorLive, 1},
		{OperatorFixed, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.location), func(t *testing.T) {
			if got := tt.location.Code(); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
