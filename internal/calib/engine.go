// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"fmt"
	"math"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

// Capture thresholds. All tunables live here so the two phases read as
// plain geometry below.
const (
	maxStationaryAccelStdDev  = 0.05 // g
	maxStationaryGyroStdDev   = 2.0  // deg/s
	minGravityMagnitude       = 1e-6 // g
	minEdgeHoldSamples        = 10
	minEdgeSeparationDeg      = 25.0
	minForwardAxisMagnitude   = 1e-6
	minRollAxisCrossMagnitude = 0.1
	maxStationaryResidual     = 0.25 // per component, g after scaling
	maxRotatedGyroBias        = 3.0  // deg/s
)

// Engine computes per-sensor boot-frame calibrations from captured
// motion batches. The capture sequence per sensor is:
//
//	Uninitialized -> CaptureStationary -> CaptureForwardEdges -> Calibrated
//
// Either capture call may be re-invoked at any time; whatever was in
// flight for that sensor is discarded and the sequence restarts.
type Engine struct {
	store   Store
	states  map[imu.Side]*CalibrationState
	pending map[imu.Side]*pendingCalibration
}

// NewEngine creates an engine backed by the given store. Previously
// persisted calibrations are loaded lazily per side.
func NewEngine(store Store) *Engine {
	return &Engine{
		store:   store,
		states:  make(map[imu.Side]*CalibrationState),
		pending: make(map[imu.Side]*pendingCalibration),
	}
}

// Calibration returns the current state for a side, loading it from the
// store on first access. The single sensor shares the left identity.
func (e *Engine) Calibration(side imu.Side) (*CalibrationState, error) {
	key := side.StorageSide()
	if s, ok := e.states[key]; ok {
		return s, nil
	}

	s, err := e.store.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load calibration for %s: %w", key, err)
	}
	if s == nil {
		s = NewCalibrationState()
	}
	e.states[key] = s
	return s, nil
}

// CaptureStationary runs the first calibration phase: the boot is held
// still and level. The batch establishes gravity direction (zAxis),
// accelerometer scale, and gyro bias, plus a provisional level rotation.
// The result is recorded as pending; Calibrated stays false until the
// edge-hold phase validates.
func (e *Engine) CaptureStationary(side imu.Side, samples []imu.Sample) error {
	key := side.StorageSide()

	// Restart always discards whatever was in flight.
	delete(e.pending, key)

	if len(samples) == 0 {
		return captureErr(ErrInsufficientSamples, 0, 1)
	}

	meanAccel, meanGyro := meanVectors(samples)
	accelStd := magnitudeStdDev(samples, accelMag)
	gyroStd := magnitudeStdDev(samples, gyroMag)

	if accelStd > maxStationaryAccelStdDev {
		return captureErr(ErrExcessiveMovement, accelStd, maxStationaryAccelStdDev)
	}
	if gyroStd > maxStationaryGyroStdDev {
		return captureErr(ErrExcessiveMovement, gyroStd, maxStationaryGyroStdDev)
	}

	gravMag := meanAccel.Norm()
	if gravMag <= minGravityMagnitude {
		return captureErr(ErrWeakGravitySignal, gravMag, minGravityMagnitude)
	}

	accelScale := 1.0 / gravMag
	zAxis := meanAccel.Normalized().Scale(-1)

	// Provisional "level" rotation: pick a world reference axis not
	// parallel to up, project it into the horizontal plane, and
	// complete a right-handed basis.
	ref := Vec3{1, 0, 0}
	if math.Abs(ref.Dot(zAxis)) > 0.9 {
		ref = Vec3{0, 1, 0}
	}
	xAxis := ref.Sub(zAxis.Scale(ref.Dot(zAxis))).Normalized()
	yAxis := zAxis.Cross(xAxis)

	state := &CalibrationState{
		RotationMatrix: rowsFrom(xAxis, yAxis, zAxis),
		GyroBias:       meanGyro,
		AccelScale:     accelScale,
		ZAxis:          zAxis,
		Calibrated:     false,
	}
	if err := e.store.Save(key, state); err != nil {
		return fmt.Errorf("persist stationary calibration for %s: %w", key, err)
	}
	e.states[key] = state

	e.pending[key] = &pendingCalibration{
		zAxis:      zAxis,
		gyroBias:   meanGyro,
		accelScale: accelScale,
		meanAccel:  meanAccel,
		meanGyro:   meanGyro,
	}
	return nil
}

// CaptureForwardEdges runs the second phase: the boot is tipped onto
// each edge in turn and held. The two gravity directions span the
// transverse plane; their cross product, projected level, is the
// forward axis. The assembled rotation is validated against the
// stationary batch before being committed.
func (e *Engine) CaptureForwardEdges(side imu.Side, edgeOne, edgeTwo []imu.Sample) error {
	key := side.StorageSide()

	pend, ok := e.pending[key]
	if !ok {
		return captureErr(ErrNoPendingCalibration, 0, 0)
	}

	if len(edgeOne) < minEdgeHoldSamples {
		return captureErr(ErrInsufficientSamples, float64(len(edgeOne)), minEdgeHoldSamples)
	}
	if len(edgeTwo) < minEdgeHoldSamples {
		return captureErr(ErrInsufficientSamples, float64(len(edgeTwo)), minEdgeHoldSamples)
	}

	gravOne, _ := meanVectors(edgeOne)
	gravTwo, _ := meanVectors(edgeTwo)
	dirOne := gravOne.Normalized()
	dirTwo := gravTwo.Normalized()

	dot := math.Max(-1, math.Min(1, dirOne.Dot(dirTwo)))
	separation := math.Acos(dot) * 180.0 / math.Pi
	if separation < minEdgeSeparationDeg {
		return captureErr(ErrEdgeHoldsTooSimilar, separation, minEdgeSeparationDeg)
	}

	// Forward is perpendicular to both edge gravity directions,
	// flattened into the plane orthogonal to up.
	forward := dirOne.Cross(dirTwo)
	z := pend.zAxis
	level := forward.Sub(z.Scale(forward.Dot(z)))
	if level.Norm() <= minForwardAxisMagnitude {
		return captureErr(ErrAxisNearVertical, level.Norm(), minForwardAxisMagnitude)
	}

	yRaw := z.Cross(level)
	if yRaw.Norm() <= minRollAxisCrossMagnitude {
		return captureErr(ErrRollAxisTooCloseToGravity, yRaw.Norm(), minRollAxisCrossMagnitude)
	}

	xAxis := level.Normalized()
	yAxis := z.Cross(xAxis)
	rotation := rowsFrom(xAxis, yAxis, z)

	// Validation pass: the stationary mean acceleration, scaled and
	// rotated, must land on the boot z axis.
	rotated := rotation.Apply(pend.meanAccel.Scale(pend.accelScale))
	residual := math.Max(math.Abs(rotated[0]),
		math.Max(math.Abs(rotated[1]), math.Abs(math.Abs(rotated[2])-1)))
	if residual > maxStationaryResidual {
		return captureErr(ErrStationaryCheckFailed, residual, maxStationaryResidual)
	}

	rotatedBias := rotation.Apply(pend.gyroBias)
	if rotatedBias.Norm() > maxRotatedGyroBias {
		return captureErr(ErrGyroBiasTooHigh, rotatedBias.Norm(), maxRotatedGyroBias)
	}

	state := &CalibrationState{
		RotationMatrix: rotation,
		GyroBias:       pend.gyroBias,
		AccelScale:     pend.accelScale,
		ZAxis:          z,
		Calibrated:     true,
	}
	if err := e.store.Save(key, state); err != nil {
		return fmt.Errorf("persist calibration for %s: %w", key, err)
	}
	e.states[key] = state
	delete(e.pending, key)
	return nil
}

// HasPending reports whether a stationary capture is awaiting its
// edge-hold phase for the given side.
func (e *Engine) HasPending(side imu.Side) bool {
	_, ok := e.pending[side.StorageSide()]
	return ok
}

func accelMag(s imu.Sample) float64 { return s.AccelMagnitude() }
func gyroMag(s imu.Sample) float64  { return s.GyroMagnitude() }

// meanVectors computes the mean accelerometer and gyro vectors of a batch.
func meanVectors(samples []imu.Sample) (accel, gyro Vec3) {
	for _, s := range samples {
		accel = accel.Add(Vec3{s.Ax, s.Ay, s.Az})
		gyro = gyro.Add(Vec3{s.Gx, s.Gy, s.Gz})
	}
	n := float64(len(samples))
	return accel.Scale(1 / n), gyro.Scale(1 / n)
}

// magnitudeStdDev computes the standard deviation of a per-sample
// scalar magnitude across the batch.
func magnitudeStdDev(samples []imu.Sample, mag func(imu.Sample) float64) float64 {
	n := float64(len(samples))
	sum := 0.0
	for _, s := range samples {
		sum += mag(s)
	}
	mean := sum / n

	variance := 0.0
	for _, s := range samples {
		d := mag(s) - mean
		variance += d * d
	}
	variance /= n
	return math.Sqrt(variance)
}
