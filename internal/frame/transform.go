package frame

import (
	"math"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/imu"
)

// ToBootFrame applies a calibration to a raw sample and returns the
// boot-frame acceleration (g) and angular rate (deg/s). A default
// (never captured) calibration passes the sample through untouched so
// uncalibrated sensors still produce sensible tilt values.
func ToBootFrame(s imu.Sample, cal *calib.CalibrationState) (accel, gyro calib.Vec3) {
	rawAccel := calib.Vec3{s.Ax, s.Ay, s.Az}
	rawGyro := calib.Vec3{s.Gx, s.Gy, s.Gz}

	if cal == nil || cal.IsDefault() {
		return rawAccel, rawGyro
	}

	accel = cal.RotationMatrix.Apply(rawAccel.Scale(cal.AccelScale))
	gyro = cal.RotationMatrix.Apply(rawGyro.Sub(cal.GyroBias))
	return accel, gyro
}

// EdgeAngles derives the carving edge angle from boot-frame
// acceleration. The boot roll atan2(ay, az) is folded into [-90, 90]
// (a boot past vertical reads as the supplementary angle) and returned
// both signed and as a magnitude in [0, 90].
func EdgeAngles(accel calib.Vec3) (signed, magnitude float64) {
	roll := math.Atan2(accel[1], accel[2]) * 180.0 / math.Pi
	if roll > 90 {
		roll -= 180
	} else if roll < -90 {
		roll += 180
	}

	signed = clamp(roll, -90, 90)
	magnitude = clamp(math.Abs(roll), 0, 90)
	return signed, magnitude
}

// Pitch returns the boot pitch angle in degrees from boot-frame
// acceleration, using the usual tilt formula atan2(-ax, sqrt(ay²+az²)).
func Pitch(accel calib.Vec3) float64 {
	return math.Atan2(-accel[0], math.Sqrt(accel[1]*accel[1]+accel[2]*accel[2])) * 180.0 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
