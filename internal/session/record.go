package session

import (
	"time"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/gps"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/turn"
)

// EdgeSample is one entry in the rolling edge-angle history. One side
// may be absent when that sensor produced no reading at this instant.
type EdgeSample struct {
	Timestamp time.Time `json:"ts"`
	Left      *float64  `json:"left,omitempty"`
	Right     *float64  `json:"right,omitempty"`
}

// RawPair is one entry of the optional full-resolution raw log: the
// left and right samples sharing a timestamp. In single-sensor mode
// only the left slot is filled.
type RawPair struct {
	Timestamp time.Time   `json:"ts"`
	Left      *imu.Sample `json:"left,omitempty"`
	Right     *imu.Sample `json:"right,omitempty"`
}

// RunRecord is the complete session output handed to the persistence
// collaborator. All timestamps serialize as RFC 3339 with fractional
// seconds; optional fields are omitted when empty so old readers keep
// working.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	SensorMode string    `json:"sensor_mode"`

	Turns       []turn.Window `json:"turns"`
	Background  []turn.Sample `json:"background_samples"`
	Track       []gps.Fix     `json:"track,omitempty"`
	EdgeHistory []EdgeSample  `json:"edge_history"`
	RawLog      []RawPair     `json:"raw_log,omitempty"`

	Calibration map[string]calib.BootCalibration `json:"calibration,omitempty"`
}
