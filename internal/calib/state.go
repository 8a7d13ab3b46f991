package calib

import "math"

// CalibrationState is the full per-sensor calibration record. A fresh
// state is the identity mapping (no rotation, no bias, unit scale) and
// reports Calibrated=false until a two-phase capture completes.
type CalibrationState struct {
	RotationMatrix Mat3    `json:"rotation_matrix"`
	GyroBias       Vec3    `json:"gyro_bias"`
	AccelScale     float64 `json:"accel_scale"`
	ZAxis          Vec3    `json:"z_axis"`
	Calibrated     bool    `json:"calibrated"`
}

// BootCalibration is the subset of CalibrationState handed to the
// persistence collaborator once a capture has been validated.
type BootCalibration struct {
	RotationMatrix Mat3    `json:"rotation_matrix"`
	GyroBias       Vec3    `json:"gyro_bias"`
	AccelScale     float64 `json:"accel_scale"`
}

// pendingCalibration holds the stationary-phase result until the
// edge-hold phase completes. It never outlives a capture restart.
type pendingCalibration struct {
	zAxis      Vec3
	gyroBias   Vec3
	accelScale float64
	meanAccel  Vec3
	meanGyro   Vec3
}

// NewCalibrationState returns the default (uncalibrated) state.
func NewCalibrationState() *CalibrationState {
	return &CalibrationState{
		RotationMatrix: Identity(),
		AccelScale:     1.0,
	}
}

// Boot exports the persisted subset.
func (c *CalibrationState) Boot() BootCalibration {
	return BootCalibration{
		RotationMatrix: c.RotationMatrix,
		GyroBias:       c.GyroBias,
		AccelScale:     c.AccelScale,
	}
}

// defaultEpsilon bounds the deviation from identity below which a
// calibration is treated as absent.
const defaultEpsilon = 1e-9

// IsDefault reports whether the state still carries the identity
// mapping. Samples pass through untransformed in that case so that no
// artifacts appear before any calibration exists.
func (c *CalibrationState) IsDefault() bool {
	if math.Abs(c.AccelScale-1.0) > defaultEpsilon {
		return false
	}
	if c.GyroBias.Norm() > defaultEpsilon {
		return false
	}
	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(c.RotationMatrix[i][j]-id[i][j]) > defaultEpsilon {
				return false
			}
		}
	}
	return true
}
