package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onlyTheOnionNews/drone-phone/internal/storage"
	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

func ptr(f float64) *float64 { return &f }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []*telemetry.Telemetry{
		{Timestamp: base, Latitude: ptr(60), Longitude: ptr(24), Height: ptr(0)},
		{Timestamp: base.Add(10 * time.Second), Height: ptr(50), GroundSpeed: ptr(3)}, // no fix
		{Timestamp: base.Add(20 * time.Second), Latitude: ptr(60.01), Longitude: ptr(24), Height: ptr(40), GroundSpeed: ptr(7.5)},
	}

	s := Summarize(records)

	if s.Records != 3 {
		t.Errorf("Expected 3 records, got %d", s.Records)
	}
	if s.Duration() != 20*time.Second {
		t.Errorf("Expected 20s, got %s", s.Duration())
	}
	if s.MaxHeight != 50 {
		t.Errorf("Expected max height 50, got %v", s.MaxHeight)
	}
	if s.MaxSpeed != 7.5 {
		t.Errorf("Expected max speed 7.5, got %v", s.MaxSpeed)
	}
	// 0.01 degree of latitude is about 1112 m
	if math.Abs(s.Distance-1112) > 2 {
		t.Errorf("Expected distance near 1112 m, got %v", s.Distance)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Records != 0 || s.Distance != 0 || s.Duration() != 0 {
		t.Errorf("Expected empty summary, got %+v", s)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"same point", 60, 24, 60, 24, 0},
		{"one degree on the equator", 0, 0, 0, 1, 111195},
		{"across the antimeridian", 0, 179.5, 0, -179.5, 111195},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 1 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func newFlightLog(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flight.db")
	store := storage.NewSqliteStore(path)
	defer store.Close()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, uasID := range []string{"DRONE1", "DRONE2"} {
		sessionID, err := store.CreateSession(ctx, uasID, "websocket", nil)
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			tm := &telemetry.Telemetry{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Latitude:  ptr(60 + float64(i)*0.001),
				Longitude: ptr(24),
			}
			if _, err := store.StoreTelemetry(ctx, sessionID, tm); err != nil {
				t.Fatalf("StoreTelemetry failed: %v", err)
			}
		}
	}

	return path
}

func TestRun_Text(t *testing.T) {
	path := newFlightLog(t)

	var out bytes.Buffer
	if err := Run(context.Background(), &Config{DBPath: path, Format: FormatText}, &out, discard); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 sessions, got:\n%s", out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	for i, uasID := range []string{"DRONE1", "DRONE2"} {
		if !strings.Contains(lines[i+1], uasID) {
			t.Errorf("Expected %s in %q", uasID, lines[i+1])
		}
	}
}

func TestRun_JSONSession(t *testing.T) {
	path := newFlightLog(t)

	var out bytes.Buffer
	config := &Config{DBPath: path, SessionID: 2, Format: FormatJSON, Verbose: true}
	if err := Run(context.Background(), config, &out, discard); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var report sessionReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("Unmarshal failed: %v\n%s", err, out.String())
	}
	if report.ID != 2 || report.UASID != "DRONE2" {
		t.Errorf("Unexpected session: %d %s", report.ID, report.UASID)
	}
	if report.Summary.Records != 3 || len(report.Telemetry) != 3 {
		t.Errorf("Expected 3 records, got %d summarized and %d listed", report.Summary.Records, len(report.Telemetry))
	}
	if report.Summary.Duration() != 2*time.Second {
		t.Errorf("Expected 2s, got %s", report.Summary.Duration())
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := &Config{DBPath: filepath.Join(t.TempDir(), "missing.db"), Format: FormatText}
	if err := Run(context.Background(), config, io.Discard, discard); err == nil {
		t.Error("Expected error for a missing database")
	}
}

func TestNewConfigFromCLI(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    *Config
		wantErr bool
	}{
		{"defaults", []string{"-db", "flight.db"}, &Config{DBPath: "flight.db", Format: FormatText}, false},
		{"session json", []string{"-db", "flight.db", "-s", "3", "-f", "JSON", "-verbose"}, &Config{DBPath: "flight.db", SessionID: 3, Format: FormatJSON, Verbose: true}, false},
		{"no db", []string{"-s", "1"}, nil, true},
		{"negative session", []string{"-db", "flight.db", "-s", "-1"}, nil, true},
		{"unknown format", []string{"-db", "flight.db", "-f", "xml"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewConfigFromCLI(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if *got != *tt.want {
				t.Errorf("Expected %+v, got %+v", *tt.want, *got)
			}
		})
	}
}
