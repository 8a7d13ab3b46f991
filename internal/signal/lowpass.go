package signal

import (
	"math"
	"time"
)

// minLowPassDT floors the elapsed time between samples so that bursts
// of near-simultaneous notifications stay numerically stable.
const minLowPassDT = 10 * time.Millisecond

// LowPass is a first-order RC low-pass filter driven by the real
// elapsed time between samples: alpha = dt/(RC+dt).
type LowPass struct {
	rc          float64
	value       float64
	lastTime    time.Time
	initialized bool
}

// NewLowPass creates a filter with the given cutoff frequency in Hz.
func NewLowPass(cutoffHz float64) *LowPass {
	return &LowPass{rc: 1.0 / (2.0 * math.Pi * cutoffHz)}
}

// Update folds a sample taken at t into the filter and returns the
// filtered value. The first sample initializes the output directly.
func (l *LowPass) Update(v float64, t time.Time) float64 {
	if !l.initialized {
		l.value = v
		l.lastTime = t
		l.initialized = true
		return v
	}

	dt := t.Sub(l.lastTime)
	if dt < minLowPassDT {
		dt = minLowPassDT
	}
	l.lastTime = t

	dtSec := dt.Seconds()
	alpha := dtSec / (l.rc + dtSec)
	l.value += alpha * (v - l.value)
	return l.value
}

// Reset clears the filter state.
func (l *LowPass) Reset() {
	l.value = 0
	l.initialized = false
	l.lastTime = time.Time{}
}
