package imu

import (
	"fmt"
	"math"
	"time"
)

// Side identifies which boot a sensor is mounted on. In single-sensor
// mode the one sensor reports as SideSingle and is stored under the
// left identity.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideSingle Side = "single"
)

// ParseSide converts a wire/config string into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLeft, SideRight, SideSingle:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown sensor side %q", s)
}

// StorageSide maps a side onto the identity used for calibration
// persistence. The single sensor shares the left slot.
func (s Side) StorageSide() Side {
	if s == SideSingle {
		return SideLeft
	}
	return s
}

// Sample is a single accelerometer+gyroscope reading in physical units:
// acceleration in g, angular rate in degrees per second.
type Sample struct {
	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"`
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// AccelMagnitude returns |a| in g.
func (s Sample) AccelMagnitude() float64 {
	return math.Sqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
}

// GyroMagnitude returns |g| in deg/s.
func (s Sample) GyroMagnitude() float64 {
	return math.Sqrt(s.Gx*s.Gx + s.Gy*s.Gy + s.Gz*s.Gz)
}

// TimedSample is the wire form published by the producers: one Sample
// tagged with its side and capture time.
type TimedSample struct {
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"ts"`
	Sample
}
