package storage

import (
	"database/sql"
	"time"
)

// FlightSession is a recorded flight: one UAS, one telemetry source.
type FlightSession struct {
	ID        int64
	StartTime time.Time
	UASID     string
	Source    string
	Config    *string
}

type telemetryData struct {
	ID               int64
	SessionID        int64
	Timestamp        time.Time
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	Altitude         sql.NullFloat64
	AltitudeGeodetic sql.NullFloat64
	Height           sql.NullFloat64
	GroundSpeed      sql.NullFloat64
	VerticalSpeed    sql.NullFloat64
	GroundCourse     sql.NullFloat64
}
