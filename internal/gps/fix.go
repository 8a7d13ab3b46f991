package gps

import "time"

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// Speed is converted to m/s by the producer; HAccuracy is an estimate of
// the horizontal position error in meters (0 when the receiver does not
// report one).
type Fix struct {
	Timestamp time.Time `json:"ts"`
	Latitude  float64   `json:"lat"` // decimal degrees
	Longitude float64   `json:"lon"` // decimal degrees
	Altitude  float64   `json:"alt_m"`
	SpeedMS   float64   `json:"speed_ms"`
	HAccuracy float64   `json:"h_acc_m"`
}
