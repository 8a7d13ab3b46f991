// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package signal

import (
	"time"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

// Validity gates on raw samples before they contribute to the turn
// signal. Units match the calibrated pipeline: g for acceleration,
// deg/s-scale for gyro magnitude.
const (
	maxValidAccelMagnitude = 8.0
	maxValidGyroMagnitude  = 35.0

	// Cross-side imbalance: a side reading more than imbalanceRatio
	// times the other side's last valid magnitude for
	// imbalanceTrigger consecutive samples is rejected (dual mode).
	imbalanceRatio   = 10.0
	imbalanceTrigger = 3

	turnSignalCutoffHz = 6.0
)

// Result is the per-sample output of the processor: the filtered,
// signed turn signal and whether the sample passed the validity gates.
// Invalid samples carry no signal but are still reflected in live
// display by the caller.
type Result struct {
	Signal float64
	Valid  bool
}

type sideState struct {
	lastTimestamp    time.Time
	haveTimestamp    bool
	lastValidGyroMag float64
	haveValid        bool
	imbalanceCount   int
	hampel           *Hampel
	lowpass          *LowPass
}

func newSideState() *sideState {
	return &sideState{
		hampel:  NewHampel(),
		lowpass: NewLowPass(turnSignalCutoffHz),
	}
}

// Processor turns boot-frame gyro data into a validated, de-spiked,
// low-pass-filtered scalar turn signal, one independent filter chain
// per side. It is single-owner: the host serializes all Process calls.
type Processor struct {
	dual  bool
	sides map[imu.Side]*sideState
}

// NewProcessor creates a processor. dual enables the cross-side
// imbalance check; in single-sensor mode it never fires.
func NewProcessor(dual bool) *Processor {
	return &Processor{
		dual: dual,
		sides: map[imu.Side]*sideState{
			imu.SideLeft:   newSideState(),
			imu.SideRight:  newSideState(),
			imu.SideSingle: newSideState(),
		},
	}
}

// other returns the opposing side's state in dual mode, nil otherwise.
func (p *Processor) other(side imu.Side) *sideState {
	switch side {
	case imu.SideLeft:
		return p.sides[imu.SideRight]
	case imu.SideRight:
		return p.sides[imu.SideLeft]
	}
	return nil
}

// Process folds one boot-frame sample into the side's filter chain.
// The second return value is false when the sample was dropped outright
// (duplicate timestamp for that side).
func (p *Processor) Process(sample imu.Sample, side imu.Side, ts time.Time) (Result, bool) {
	st := p.sides[side]

	if st.haveTimestamp && ts.Equal(st.lastTimestamp) {
		return Result{}, false
	}
	st.lastTimestamp = ts
	st.haveTimestamp = true

	accelMag := sample.AccelMagnitude()
	gyroMag := sample.GyroMagnitude()

	if accelMag > maxValidAccelMagnitude || gyroMag > maxValidGyroMagnitude {
		st.imbalanceCount = 0
		return Result{Valid: false}, true
	}

	if p.dual {
		other := p.other(side)
		if other != nil && other.haveValid && gyroMag > imbalanceRatio*other.lastValidGyroMag {
			st.imbalanceCount++
			if st.imbalanceCount >= imbalanceTrigger {
				return Result{Valid: false}, true
			}
		} else {
			st.imbalanceCount = 0
		}
	}

	st.lastValidGyroMag = gyroMag
	st.haveValid = true

	despiked := st.hampel.Push(gyroMag)
	filtered := st.lowpass.Update(despiked, ts)

	sign := 0.0
	if sample.Gz > 0 {
		sign = 1.0
	} else if sample.Gz < 0 {
		sign = -1.0
	}

	return Result{Signal: filtered * sign, Valid: true}, true
}

// Reset clears all per-side filter state.
func (p *Processor) Reset() {
	for side := range p.sides {
		p.sides[side] = newSideState()
	}
}
