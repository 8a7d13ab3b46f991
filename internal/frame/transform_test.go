package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/imu"
)

func TestToBootFramePassthrough(t *testing.T) {
	sample := imu.Sample{Ax: 0.1, Ay: -0.2, Az: 0.9, Gx: 1, Gy: 2, Gz: 3}

	tests := []struct {
		name string
		cal  *calib.CalibrationState
	}{
		{name: "nil calibration", cal: nil},
		{name: "default calibration", cal: calib.NewCalibrationState()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accel, gyro := ToBootFrame(sample, tt.cal)
			assert.Equal(t, calib.Vec3{0.1, -0.2, 0.9}, accel)
			assert.Equal(t, calib.Vec3{1, 2, 3}, gyro)
		})
	}
}

func TestToBootFrameApplied(t *testing.T) {
	cal := &calib.CalibrationState{
		RotationMatrix: calib.Mat3{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		GyroBias:       calib.Vec3{0, 0, 0.5},
		AccelScale:     0.5,
		ZAxis:          calib.Vec3{0, 0, -1},
		Calibrated:     true,
	}
	sample := imu.Sample{Az: 2.0, Gz: 1.5}

	accel, gyro := ToBootFrame(sample, cal)
	assert.InDelta(t, -1.0, accel[2], 1e-12)
	assert.InDelta(t, -1.0, gyro[2], 1e-12)
}

func TestEdgeAngles(t *testing.T) {
	s45 := math.Sin(45 * math.Pi / 180)

	tests := []struct {
		name      string
		accel     calib.Vec3
		signed    float64
		magnitude float64
	}{
		{name: "flat", accel: calib.Vec3{0, 0, 1}, signed: 0, magnitude: 0},
		{name: "positive 45", accel: calib.Vec3{0, s45, s45}, signed: 45, magnitude: 45},
		{name: "negative 45", accel: calib.Vec3{0, -s45, s45}, signed: -45, magnitude: 45},
		{name: "past vertical folds back", accel: calib.Vec3{0, s45, -s45}, signed: -45, magnitude: 45},
		{name: "past vertical negative folds back", accel: calib.Vec3{0, -s45, -s45}, signed: 45, magnitude: 45},
		{name: "on edge", accel: calib.Vec3{0, 1, 0}, signed: 90, magnitude: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, magnitude := EdgeAngles(tt.accel)
			assert.InDelta(t, tt.signed, signed, 1e-9)
			assert.InDelta(t, tt.magnitude, magnitude, 1e-9)
			assert.GreaterOrEqual(t, signed, -90.0)
			assert.LessOrEqual(t, signed, 90.0)
			assert.GreaterOrEqual(t, magnitude, 0.0)
			assert.LessOrEqual(t, magnitude, 90.0)
		})
	}
}

func TestPitch(t *testing.T) {
	s30 := math.Sin(30 * math.Pi / 180)
	c30 := math.Cos(30 * math.Pi / 180)

	pitch := Pitch(calib.Vec3{-s30, 0, c30})
	assert.InDelta(t, 30.0, pitch, 1e-9)

	assert.InDelta(t, 0.0, Pitch(calib.Vec3{0, 0, 1}), 1e-9)
}

func TestSmoother(t *testing.T) {
	s := NewSmoother()

	first := s.Update(imu.SideLeft, 40, 40)
	assert.Equal(t, EdgeAngle{Signed: 40, Magnitude: 40}, first)

	second := s.Update(imu.SideLeft, 50, 50)
	assert.InDelta(t, 40+0.18*10, second.Signed, 1e-12)
	assert.InDelta(t, 40+0.18*10, second.Magnitude, 1e-12)

	// Sides smooth independently.
	right := s.Update(imu.SideRight, -10, 10)
	assert.Equal(t, EdgeAngle{Signed: -10, Magnitude: 10}, right)

	s.Reset()
	reset := s.Update(imu.SideLeft, 0, 0)
	assert.Equal(t, EdgeAngle{}, reset)
}
