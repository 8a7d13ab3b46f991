// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

func TestProcessorDropsDuplicateTimestamp(t *testing.T) {
	p := NewProcessor(false)
	ts := time.Unix(100, 0)
	sample := imu.Sample{Az: 1.0, Gz: 5.0}

	_, ok := p.Process(sample, imu.SideSingle, ts)
	require.True(t, ok)

	_, ok = p.Process(sample, imu.SideSingle, ts)
	assert.False(t, ok)

	// The same timestamp on the other side is fine.
	_, ok = p.Process(sample, imu.SideLeft, ts)
	assert.True(t, ok)
}

func TestProcessorValidityGates(t *testing.T) {
	tests := []struct {
		name   string
		sample imu.Sample
		valid  bool
	}{
		{name: "nominal carving", sample: imu.Sample{Az: 1.2, Gz: 10.0}, valid: true},
		{name: "impact spike", sample: imu.Sample{Ax: 9.0, Gz: 1.0}, valid: false},
		{name: "gyro saturation", sample: imu.Sample{Az: 1.0, Gz: 40.0}, valid: false},
		{name: "at accel bound", sample: imu.Sample{Ax: 8.0}, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(false)
			res, ok := p.Process(tt.sample, imu.SideSingle, time.Unix(0, 0))
			require.True(t, ok)
			assert.Equal(t, tt.valid, res.Valid)
		})
	}
}

func TestProcessorSignalSign(t *testing.T) {
	p := NewProcessor(false)
	ts := time.Unix(0, 0)

	res, ok := p.Process(imu.Sample{Az: 1.0, Gz: 12.0}, imu.SideSingle, ts)
	require.True(t, ok)
	require.True(t, res.Valid)
	assert.Greater(t, res.Signal, 0.0)

	res, ok = p.Process(imu.Sample{Az: 1.0, Gz: -12.0}, imu.SideSingle, ts.Add(20*time.Millisecond))
	require.True(t, ok)
	require.True(t, res.Valid)
	assert.Less(t, res.Signal, 0.0)
}

func TestProcessorImbalanceDual(t *testing.T) {
	p := NewProcessor(true)
	ts := time.Unix(0, 0)

	// Establish a small valid magnitude on the right side.
	res, ok := p.Process(imu.Sample{Az: 1.0, Gz: 1.0}, imu.SideRight, ts)
	require.True(t, ok)
	require.True(t, res.Valid)

	// The left side reads 20x that. The first two samples pass; the
	// third consecutive one is rejected.
	for i := 1; i <= 3; i++ {
		res, ok = p.Process(imu.Sample{Az: 1.0, Gz: 20.0}, imu.SideLeft,
			ts.Add(time.Duration(i)*20*time.Millisecond))
		require.True(t, ok)
		if i < 3 {
			assert.True(t, res.Valid, "sample %d should still be valid", i)
		} else {
			assert.False(t, res.Valid, "sample %d should be rejected", i)
		}
	}
}

func TestProcessorImbalanceResetsOnBalance(t *testing.T) {
	p := NewProcessor(true)
	ts := time.Unix(0, 0)

	_, ok := p.Process(imu.Sample{Az: 1.0, Gz: 1.0}, imu.SideRight, ts)
	require.True(t, ok)

	// Two imbalanced samples, then a balanced one resets the streak.
	for i := 1; i <= 2; i++ {
		p.Process(imu.Sample{Az: 1.0, Gz: 20.0}, imu.SideLeft,
			ts.Add(time.Duration(i)*20*time.Millisecond))
	}
	res, ok := p.Process(imu.Sample{Az: 1.0, Gz: 2.0}, imu.SideLeft, ts.Add(60*time.Millisecond))
	require.True(t, ok)
	assert.True(t, res.Valid)

	// The streak starts over: the next imbalanced sample is only count 1.
	res, ok = p.Process(imu.Sample{Az: 1.0, Gz: 25.0}, imu.SideLeft, ts.Add(80*time.Millisecond))
	require.True(t, ok)
	assert.True(t, res.Valid)
}

func TestProcessorImbalanceNeverFiresSingle(t *testing.T) {
	p := NewProcessor(false)
	ts := time.Unix(0, 0)

	for i := 0; i < 10; i++ {
		res, ok := p.Process(imu.Sample{Az: 1.0, Gz: 30.0}, imu.SideSingle,
			ts.Add(time.Duration(i)*20*time.Millisecond))
		require.True(t, ok)
		assert.True(t, res.Valid)
	}
}

func TestProcessorReset(t *testing.T) {
	p := NewProcessor(false)
	ts := time.Unix(0, 0)

	_, ok := p.Process(imu.Sample{Az: 1.0, Gz: 5.0}, imu.SideSingle, ts)
	require.True(t, ok)

	p.Reset()

	// The duplicate-timestamp memory is gone after a reset.
	_, ok = p.Process(imu.Sample{Az: 1.0, Gz: 5.0}, imu.SideSingle, ts)
	assert.True(t, ok)
}
