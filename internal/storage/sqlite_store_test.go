package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

func ptr(f float64) *float64 { return &f }

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.CreateSession(ctx, "DRONE1", "websocket", map[string]string{"url": "ws://localhost/feed"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	id2, err := s.CreateSession(ctx, "DRONE2", "static", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sess, err := s.Session(ctx, id1)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.UASID != "DRONE1" || sess.Source != "websocket" {
		t.Errorf("Unexpected session: %+v", sess)
	}
	if sess.Config == nil || *sess.Config != `{"url":"ws://localhost/feed"}` {
		t.Errorf("Unexpected config: %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != id1 || sessions[1].ID != id2 {
		t.Fatalf("Unexpected sessions: %+v", sessions)
	}
	if sessions[1].Config != nil {
		t.Errorf("Expected nil config, got %q", *sessions[1].Config)
	}
}

func TestSqliteStore_Telemetry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sessionID, err := s.CreateSession(ctx, "DRONE1", "websocket", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []*telemetry.Telemetry{
		{Timestamp: base, Latitude: ptr(60.1699), Longitude: ptr(24.9384), Altitude: ptr(10)},
		{Timestamp: base.Add(2 * time.Second), Latitude: ptr(60.1701), Longitude: ptr(24.9390), GroundSpeed: ptr(5.5)},
		{Timestamp: base.Add(time.Second), Latitude: ptr(60.1700)},
	}
	for _, r := range records {
		if _, err := s.StoreTelemetry(ctx, sessionID, r); err != nil {
			t.Fatalf("StoreTelemetry failed: %v", err)
		}
	}

	latest, err := s.LatestTelemetry(ctx, sessionID)
	if err != nil {
		t.Fatalf("LatestTelemetry failed: %v", err)
	}
	if !latest.Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("Expected latest at %s, got %s", base.Add(2*time.Second), latest.Timestamp)
	}
	if latest.GroundSpeed == nil || *latest.GroundSpeed != 5.5 {
		t.Errorf("Unexpected ground speed: %v", latest.GroundSpeed)
	}
	if latest.Altitude != nil {
		t.Errorf("Expected nil altitude, got %v", *latest.Altitude)
	}

	all, err := s.Telemetry(ctx, sessionID)
	if err != nil {
		t.Fatalf("Telemetry failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Errorf("Records out of order at %d", i)
		}
	}
}

func TestSqliteStore_LatestTelemetryEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sessionID, err := s.CreateSession(ctx, "DRONE1", "static", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := s.LatestTelemetry(ctx, sessionID); !errors.Is(err, telemetry.ErrNoTelemetry) {
		t.Errorf("Expected ErrNoTelemetry, got %v", err)
	}
}

func TestSqliteStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flight.db")

	w := NewSqliteStore(path)
	sessionID, err := w.CreateSession(ctx, "DRONE1", "static", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := w.StoreTelemetry(ctx, sessionID, &telemetry.Telemetry{Timestamp: time.Now(), Latitude: ptr(1)}); err != nil {
		t.Fatalf("StoreTelemetry failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r := OpenSqliteReader(path)
	defer r.Close()

	if _, err := r.LatestTelemetry(ctx, sessionID); err != nil {
		t.Errorf("LatestTelemetry failed: %v", err)
	}
	if _, err := r.CreateSession(ctx, "DRONE2", "static", nil); err == nil {
		t.Error("Expected write to a read-only store to fail")
	}
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	if _, err := s.CreateSession(context.Background(), "DRONE1", "static", "raw"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
