package remoteid

// Area describes the operating area announced in the System message.
type Area struct {
	Count   int     `yaml:"count" json:"count"`     // Number of aircraft in the area
	Radius  int     `yaml:"radius" json:"radius"`   // Area radius in meters
	Ceiling float64 `yaml:"ceiling" json:"ceiling"` // Area ceiling in meters
	Floor   float64 `yaml:"floor" json:"floor"`     // Area floor in meters
}

// Snapshot is the drone identity and telemetry data a broadcast session encodes.
// Zero values are valid for every numeric field. Identity, Description and
// OperatorID are required by the messages that carry them.
type Snapshot struct {
	// Basic ID
	Identity string `json:"uasId"` // Serial number or session ID, up to 20 ASCII bytes

	// Location/Vector
	Latitude         float64 `json:"latitude"`         // Degrees
	Longitude        float64 `json:"longitude"`        // Degrees
	AltitudePressure float64 `json:"altitudePressure"` // Barometric altitude in meters
	AltitudeGeodetic float64 `json:"altitudeGeodetic"` // WGS-84 altitude in meters
	Height           float64 `json:"height"`           // Height above ground in meters
	SpeedHorizontal  float64 `json:"speedHorizontal"`  // Ground speed in m/s
	SpeedVertical    float64 `json:"speedVertical"`    // Vertical speed in m/s, positive up
	Direction        float64 `json:"direction"`        // Track over ground in degrees
	Status           uint8   `json:"status"`           // Operational status code

	// Self-ID
	Description string `json:"description"` // Free text, up to 23 ASCII bytes

	// System
	OperatorLocationType uint8   `json:"operatorLocationType"`
	OperatorLatitude     float64 `json:"operatorLatitude"`
	OperatorLongitude    float64 `json:"operatorLongitude"`
	Area                 Area    `json:"area"`

	// Operator ID
	OperatorID string `json:"operatorId"` // Authority issued operator ID, up to 20 ASCII bytes

	// Authentication
	PrivateKey []byte `json:"-"` // Optional ECDSA P-256 signing key (PEM, DER or base64 DER)
}
