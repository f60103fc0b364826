package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

// Store records and reads back flight telemetry, grouped in sessions.
type Store interface {
	// CreateSession starts a new flight session and returns its identifier.
	// The config can be a string, []byte or a JSON-serializable object and is
	// stored as is for reference.
	CreateSession(ctx context.Context, uasID, source string, config any) (sessionID int64, err error)

	// Session returns one flight session.
	Session(ctx context.Context, id int64) (session *FlightSession, err error)

	// Sessions returns all flight sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*FlightSession, err error)

	// StoreTelemetry saves one measurement for a session.
	StoreTelemetry(ctx context.Context, sessionID int64, t *telemetry.Telemetry) (telemetryID int64, err error)

	// LatestTelemetry returns the most recent measurement of a session, or
	// telemetry.ErrNoTelemetry when the session has none.
	LatestTelemetry(ctx context.Context, sessionID int64) (*telemetry.Telemetry, error)

	// Telemetry returns every measurement of a session in time order.
	Telemetry(ctx context.Context, sessionID int64) ([]*telemetry.Telemetry, error)

	// Close releases all database connections. It is safe to call Close multiple times.
	Close() error
}
