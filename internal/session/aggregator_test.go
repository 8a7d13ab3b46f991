// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/frame"
	"github.com/relabs-tech/carving_computer/internal/gps"
	"github.com/relabs-tech/carving_computer/internal/imu"
)

const testSampleRateHz = 50.0

func quietSample() imu.Sample {
	return imu.Sample{Az: 1.0, Gz: 1.0}
}

func TestAggregatorCombinedEdgeIsMean(t *testing.T) {
	agg := NewAggregator(ModeDual, imu.SideLeft, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	agg.Ingest(ts, imu.SideLeft, quietSample(), quietSample(),
		frame.EdgeAngle{Signed: 40, Magnitude: 40}, 0, nil)
	agg.Ingest(ts, imu.SideRight, quietSample(), quietSample(),
		frame.EdgeAngle{Signed: 20, Magnitude: 20}, 0, nil)

	tel := agg.Telemetry()
	require.NotNil(t, tel.Left)
	require.NotNil(t, tel.Right)
	assert.InDelta(t, 40.0, tel.Left.Signed, 1e-12)
	assert.InDelta(t, 20.0, tel.Right.Signed, 1e-12)
	assert.InDelta(t, 30.0, tel.Combined.Signed, 1e-12)
	assert.InDelta(t, 30.0, tel.Combined.Magnitude, 1e-12)
}

func TestAggregatorSingleModeDisplaysAsLeft(t *testing.T) {
	agg := NewAggregator(ModeSingle, imu.SideRight, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	agg.Ingest(ts, imu.SideSingle, quietSample(), quietSample(),
		frame.EdgeAngle{Signed: 35, Magnitude: 35}, 0, nil)

	tel := agg.Telemetry()
	require.NotNil(t, tel.Left)
	assert.Nil(t, tel.Right)
	assert.InDelta(t, 35.0, tel.Left.Signed, 1e-12)
	assert.InDelta(t, 35.0, tel.Combined.Signed, 1e-12)
}

func TestAggregatorEdgeHistoryPruned(t *testing.T) {
	agg := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	agg.Ingest(ts, imu.SideSingle, quietSample(), quietSample(),
		frame.EdgeAngle{Signed: 10, Magnitude: 10}, 0, nil)
	agg.Ingest(ts.Add(11*time.Second), imu.SideSingle, quietSample(), quietSample(),
		frame.EdgeAngle{Signed: 12, Magnitude: 12}, 0, nil)

	record := agg.Finish(ts.Add(12*time.Second), nil)
	require.Len(t, record.EdgeHistory, 1)
	assert.Equal(t, ts.Add(11*time.Second), record.EdgeHistory[0].Timestamp)
}

func TestAggregatorRawPairing(t *testing.T) {
	agg := NewAggregator(ModeDual, imu.SideLeft, true, testSampleRateHz)
	ts := time.Unix(2000, 0)

	left := imu.Sample{Az: 1.0, Gz: 2.0}
	right := imu.Sample{Az: 1.0, Gz: 3.0}
	agg.Ingest(ts, imu.SideLeft, left, left, frame.EdgeAngle{}, 0, nil)
	agg.Ingest(ts, imu.SideRight, right, right, frame.EdgeAngle{}, 0, nil)

	record := agg.Finish(ts.Add(time.Second), nil)
	require.Len(t, record.RawLog, 1)
	pair := record.RawLog[0]
	require.NotNil(t, pair.Left)
	require.NotNil(t, pair.Right)
	assert.Equal(t, left, *pair.Left)
	assert.Equal(t, right, *pair.Right)
}

func TestAggregatorRawLogDisabled(t *testing.T) {
	agg := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	agg.Ingest(ts, imu.SideSingle, quietSample(), quietSample(), frame.EdgeAngle{}, 0, nil)

	record := agg.Finish(ts.Add(time.Second), nil)
	assert.Empty(t, record.RawLog)
}

func TestAggregatorBackgroundSamples(t *testing.T) {
	agg := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	// Quiet samples never open a turn, so they land in the background.
	for i := 0; i < 5; i++ {
		agg.Ingest(ts.Add(time.Duration(i)*20*time.Millisecond), imu.SideSingle,
			quietSample(), quietSample(), frame.EdgeAngle{Signed: 3, Magnitude: 3}, 0, nil)
	}

	record := agg.Finish(ts.Add(time.Second), nil)
	assert.Len(t, record.Background, 5)
	assert.Empty(t, record.Turns)
}

func TestAggregatorNonPrimaryDoesNotFeedDetector(t *testing.T) {
	agg := NewAggregator(ModeDual, imu.SideLeft, false, testSampleRateHz)
	ts := time.Unix(2000, 0)

	// Only right-side samples arrive; the detector never sees them.
	for i := 0; i < 5; i++ {
		agg.Ingest(ts.Add(time.Duration(i)*20*time.Millisecond), imu.SideRight,
			quietSample(), quietSample(), frame.EdgeAngle{Signed: 5, Magnitude: 5}, 0, nil)
	}

	record := agg.Finish(ts.Add(time.Second), nil)
	assert.Empty(t, record.Background)
	assert.Empty(t, record.Turns)
}

func TestAggregatorTrackAndFinish(t *testing.T) {
	agg := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	ts := time.Unix(2000, 0)
	fix := &gps.Fix{Timestamp: ts, Latitude: 46.0, Longitude: 8.0, SpeedMS: 14.0}

	agg.Ingest(ts, imu.SideSingle, quietSample(), quietSample(), frame.EdgeAngle{}, 14.0, fix)

	cal := map[string]calib.BootCalibration{
		"left": {RotationMatrix: calib.Identity(), AccelScale: 1.0},
	}
	record := agg.Finish(ts.Add(30*time.Second), cal)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, ts, record.StartedAt)
	assert.Equal(t, ts.Add(30*time.Second), record.EndedAt)
	assert.Equal(t, "single", record.SensorMode)
	require.Len(t, record.Track, 1)
	assert.InDelta(t, 46.0, record.Track[0].Latitude, 1e-12)
	assert.Equal(t, cal, record.Calibration)

	tel := agg.Telemetry()
	assert.InDelta(t, 14.0, tel.SpeedMS, 1e-12)
}

func TestAggregatorUniqueIDs(t *testing.T) {
	a := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	b := NewAggregator(ModeSingle, imu.SideSingle, false, testSampleRateHz)
	assert.NotEqual(t,
		a.Finish(time.Now(), nil).ID,
		b.Finish(time.Now(), nil).ID)
}
