// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

// stationaryBatch returns n identical samples with the given gravity
// direction and gyro reading.
func stationaryBatch(n int, ax, ay, az, gx, gy, gz float64) []imu.Sample {
	samples := make([]imu.Sample, n)
	for i := range samples {
		samples[i] = imu.Sample{Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}
	}
	return samples
}

func TestCaptureStationary(t *testing.T) {
	engine := NewEngine(NewMemStore())

	err := engine.CaptureStationary(imu.SideLeft, stationaryBatch(200, 0, 0, 1, 0, 0, 0))
	require.NoError(t, err)

	state, err := engine.Calibration(imu.SideLeft)
	require.NoError(t, err)

	assert.False(t, state.Calibrated)
	assert.InDelta(t, 1.0, state.AccelScale, 1e-9)
	assert.InDelta(t, 0.0, state.ZAxis[0], 1e-9)
	assert.InDelta(t, 0.0, state.ZAxis[1], 1e-9)
	assert.InDelta(t, -1.0, state.ZAxis[2], 1e-9)
	assert.True(t, engine.HasPending(imu.SideLeft))
}

func TestCaptureStationaryScale(t *testing.T) {
	engine := NewEngine(NewMemStore())

	// A miscalibrated accelerometer reading 1.02g at rest.
	err := engine.CaptureStationary(imu.SideLeft, stationaryBatch(200, 0, 0, 1.02, 0, 0, 0))
	require.NoError(t, err)

	state, err := engine.Calibration(imu.SideLeft)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/1.02, state.AccelScale, 1e-9)
}

func TestCaptureStationaryErrors(t *testing.T) {
	jittery := make([]imu.Sample, 100)
	for i := range jittery {
		mag := 1.0
		if i%2 == 0 {
			mag = 1.2
		}
		jittery[i] = imu.Sample{Az: mag}
	}

	spinning := make([]imu.Sample, 100)
	for i := range spinning {
		gz := 0.0
		if i%2 == 0 {
			gz = 10.0
		}
		spinning[i] = imu.Sample{Az: 1.0, Gz: gz}
	}

	tests := []struct {
		name     string
		samples  []imu.Sample
		wantCode CaptureErrorCode
	}{
		{
			name:     "empty batch",
			samples:  nil,
			wantCode: ErrInsufficientSamples,
		},
		{
			name:     "jittery accelerometer",
			samples:  jittery,
			wantCode: ErrExcessiveMovement,
		},
		{
			name:     "spinning gyro",
			samples:  spinning,
			wantCode: ErrExcessiveMovement,
		},
		{
			name:     "no gravity signal",
			samples:  stationaryBatch(100, 0, 0, 0, 0, 0, 0),
			wantCode: ErrWeakGravitySignal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(NewMemStore())
			err := engine.CaptureStationary(imu.SideLeft, tt.samples)
			require.Error(t, err)

			ce, ok := AsCaptureError(err)
			require.True(t, ok, "expected a CaptureError, got %v", err)
			assert.Equal(t, tt.wantCode, ce.Code)
			assert.False(t, engine.HasPending(imu.SideLeft))
		})
	}
}

func TestCaptureForwardEdges(t *testing.T) {
	engine := NewEngine(NewMemStore())

	require.NoError(t, engine.CaptureStationary(imu.SideLeft, stationaryBatch(200, 0, 0, 1, 0, 0, 0)))

	s45 := math.Sin(45 * math.Pi / 180)
	edgeOne := stationaryBatch(100, 0, s45, s45, 0, 0, 0)
	edgeTwo := stationaryBatch(100, 0, -s45, s45, 0, 0, 0)

	require.NoError(t, engine.CaptureForwardEdges(imu.SideLeft, edgeOne, edgeTwo))

	state, err := engine.Calibration(imu.SideLeft)
	require.NoError(t, err)
	assert.True(t, state.Calibrated)
	assert.False(t, engine.HasPending(imu.SideLeft))

	// Rows must form an orthonormal basis.
	for i := 0; i < 3; i++ {
		ri := state.RotationMatrix.Row(i)
		assert.InDelta(t, 1.0, ri.Norm(), 1e-6, "row %d not unit length", i)
		for j := i + 1; j < 3; j++ {
			assert.InDelta(t, 0.0, ri.Dot(state.RotationMatrix.Row(j)), 1e-6,
				"rows %d and %d not orthogonal", i, j)
		}
	}

	// The stationary gravity must map onto the boot z axis.
	rotated := state.RotationMatrix.Apply(Vec3{0, 0, 1}.Scale(state.AccelScale))
	assert.InDelta(t, 0.0, rotated[0], 1e-6)
	assert.InDelta(t, 0.0, rotated[1], 1e-6)
	assert.InDelta(t, 1.0, math.Abs(rotated[2]), 1e-6)
}

func TestCaptureForwardEdgesErrors(t *testing.T) {
	s45 := math.Sin(45 * math.Pi / 180)
	good := stationaryBatch(100, 0, s45, s45, 0, 0, 0)

	tests := []struct {
		name       string
		stationary []imu.Sample
		edgeOne    []imu.Sample
		edgeTwo    []imu.Sample
		wantCode   CaptureErrorCode
	}{
		{
			name:     "no pending calibration",
			edgeOne:  good,
			edgeTwo:  good,
			wantCode: ErrNoPendingCalibration,
		},
		{
			name:       "short edge hold",
			stationary: stationaryBatch(200, 0, 0, 1, 0, 0, 0),
			edgeOne:    stationaryBatch(5, 0, s45, s45, 0, 0, 0),
			edgeTwo:    good,
			wantCode:   ErrInsufficientSamples,
		},
		{
			name:       "edge holds too similar",
			stationary: stationaryBatch(200, 0, 0, 1, 0, 0, 0),
			edgeOne:    good,
			edgeTwo:    stationaryBatch(100, 0, s45+0.01, s45, 0, 0, 0),
			wantCode:   ErrEdgeHoldsTooSimilar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(NewMemStore())
			if tt.stationary != nil {
				require.NoError(t, engine.CaptureStationary(imu.SideLeft, tt.stationary))
			}

			err := engine.CaptureForwardEdges(imu.SideLeft, tt.edgeOne, tt.edgeTwo)
			require.Error(t, err)

			ce, ok := AsCaptureError(err)
			require.True(t, ok, "expected a CaptureError, got %v", err)
			assert.Equal(t, tt.wantCode, ce.Code)

			state, stErr := engine.Calibration(imu.SideLeft)
			require.NoError(t, stErr)
			assert.False(t, state.Calibrated)
		})
	}
}

func TestCaptureRestartDiscardsPending(t *testing.T) {
	engine := NewEngine(NewMemStore())

	require.NoError(t, engine.CaptureStationary(imu.SideLeft, stationaryBatch(200, 0, 0, 1, 0, 0, 0)))
	require.True(t, engine.HasPending(imu.SideLeft))

	// A failed restart must discard the earlier pending state too.
	err := engine.CaptureStationary(imu.SideLeft, nil)
	require.Error(t, err)
	assert.False(t, engine.HasPending(imu.SideLeft))
}

func TestSingleSideSharesLeftIdentity(t *testing.T) {
	engine := NewEngine(NewMemStore())

	require.NoError(t, engine.CaptureStationary(imu.SideSingle, stationaryBatch(200, 0, 0, 1, 0, 0, 0)))
	assert.True(t, engine.HasPending(imu.SideLeft))

	single, err := engine.Calibration(imu.SideSingle)
	require.NoError(t, err)
	left, err := engine.Calibration(imu.SideLeft)
	require.NoError(t, err)
	assert.Same(t, single, left)
}

func TestEnginePersistsAcrossRestart(t *testing.T) {
	store := NewMemStore()
	engine := NewEngine(store)

	s45 := math.Sin(45 * math.Pi / 180)
	require.NoError(t, engine.CaptureStationary(imu.SideLeft, stationaryBatch(200, 0, 0, 1, 0, 0, 0)))
	require.NoError(t, engine.CaptureForwardEdges(imu.SideLeft,
		stationaryBatch(100, 0, s45, s45, 0, 0, 0),
		stationaryBatch(100, 0, -s45, s45, 0, 0, 0)))

	reloaded := NewEngine(store)
	state, err := reloaded.Calibration(imu.SideLeft)
	require.NoError(t, err)
	assert.True(t, state.Calibrated)

	// The pending stationary capture does not survive a restart.
	assert.False(t, reloaded.HasPending(imu.SideLeft))
}
