package app

import (
	"math"
	"time"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

const earthRadius = 6371000.0 // meters

// Summary describes a recorded flight.
type Summary struct {
	Records   int       `json:"records"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Distance  float64   `json:"distance"`  // Track length in meters
	MaxHeight float64   `json:"maxHeight"` // Meters above take-off
	MaxSpeed  float64   `json:"maxSpeed"`  // Ground speed in m/s
}

func (s Summary) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Summarize folds the measurements of a session, in time order.
func Summarize(records []*telemetry.Telemetry) Summary {
	var s Summary
	var last *telemetry.Telemetry

	for _, r := range records {
		if s.Records == 0 || r.Timestamp.Before(s.Start) {
			s.Start = r.Timestamp
		}
		if r.Timestamp.After(s.End) {
			s.End = r.Timestamp
		}
		s.Records++

		if r.Height != nil && *r.Height > s.MaxHeight {
			s.MaxHeight = *r.Height
		}
		if r.GroundSpeed != nil && *r.GroundSpeed > s.MaxSpeed {
			s.MaxSpeed = *r.GroundSpeed
		}

		if !r.HasFix() {
			continue
		}
		if last != nil {
			s.Distance += distance(*last.Latitude, *last.Longitude, *r.Latitude, *r.Longitude)
		}
		last = r
	}

	return s
}

// distance is the haversine great circle distance in meters.
func distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
