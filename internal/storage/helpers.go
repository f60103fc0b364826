package storage

import (
	"database/sql"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toTelemetryData(sessionID int64, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID:        sessionID,
		Timestamp:        t.Timestamp.UTC(),
		Latitude:         toSQLNullFloat(t.Latitude),
		Longitude:        toSQLNullFloat(t.Longitude),
		Altitude:         toSQLNullFloat(t.Altitude),
		AltitudeGeodetic: toSQLNullFloat(t.AltitudeGeodetic),
		Height:           toSQLNullFloat(t.Height),
		GroundSpeed:      toSQLNullFloat(t.GroundSpeed),
		VerticalSpeed:    toSQLNullFloat(t.VerticalSpeed),
		GroundCourse:     toSQLNullFloat(t.GroundCourse),
	}
}

func (d *telemetryData) toTelemetry() *telemetry.Telemetry {
	return &telemetry.Telemetry{
		Timestamp:        d.Timestamp,
		Latitude:         fromSQLNullFloat(d.Latitude),
		Longitude:        fromSQLNullFloat(d.Longitude),
		Altitude:         fromSQLNullFloat(d.Altitude),
		AltitudeGeodetic: fromSQLNullFloat(d.AltitudeGeodetic),
		Height:           fromSQLNullFloat(d.Height),
		GroundSpeed:      fromSQLNullFloat(d.GroundSpeed),
		VerticalSpeed:    fromSQLNullFloat(d.VerticalSpeed),
		GroundCourse:     fromSQLNullFloat(d.GroundCourse),
	}
}

// scanFields returns the scan destinations in the column order of selectTelemetryColumns.
func (d *telemetryData) scanFields() []any {
	return []any{
		&d.ID,
		&d.SessionID,
		&d.Timestamp,
		&d.Latitude,
		&d.Longitude,
		&d.Altitude,
		&d.AltitudeGeodetic,
		&d.Height,
		&d.GroundSpeed,
		&d.VerticalSpeed,
		&d.GroundCourse,
	}
}

func toSQLNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromSQLNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
