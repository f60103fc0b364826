package telemetry

import (
	"time"
)

// Telemetry is the telemetry data from the drone sensors
type Telemetry struct {
	Timestamp        time.Time `json:"timestamp"`                  // Timestamp of telemetry measurement
	Altitude         *float64  `json:"altitude,omitempty"`         // Barometric altitude in meters
	AltitudeGeodetic *float64  `json:"altitudeGeodetic,omitempty"` // WGS-84 altitude in meters
	Height           *float64  `json:"height,omitempty"`           // Height above take-off in meters
	Latitude         *float64  `json:"latitude,omitempty"`         // GPS latitude in degrees
	Longitude        *float64  `json:"longitude,omitempty"`        // GPS longitude in degrees
	GroundSpeed      *float64  `json:"groundSpeed,omitempty"`      // Ground speed in m/s
	VerticalSpeed    *float64  `json:"verticalSpeed,omitempty"`    // Vertical speed in m/s, positive up
	GroundCourse     *float64  `json:"groundCourse,omitempty"`     // Ground course (heading) in degrees
}

// HasFix reports whether the telemetry carries a position.
func (t *Telemetry) HasFix() bool {
	return t != nil && t.Latitude != nil && t.Longitude != nil
}

// Value returns *p, or zero when p is nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
