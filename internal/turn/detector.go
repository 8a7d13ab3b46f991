// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package turn

import (
	"math"
	"time"

	"github.com/relabs-tech/carving_computer/internal/gps"
)

// Detection thresholds and timings. Time comparisons use sample
// timestamps, never wall clock, so replays are deterministic.
const (
	minOnThreshold    = 25.0
	minOffThreshold   = 15.0
	offPeakFraction   = 0.35
	edgeExitThreshold = 8.0

	adaptiveCapacity   = 200
	adaptiveMinSamples = 30
	adaptiveMADScale   = 2.5

	minOnsetHold       = 150 * time.Millisecond
	minStartSeparation = 300 * time.Millisecond
	minEndHold         = 200 * time.Millisecond
	minTurnDuration    = 400 * time.Millisecond
)

// activeTurn is the InTurn state. Its presence (non-nil on the
// detector) is the state tag: samples exist only while a turn is open.
type activeTurn struct {
	start            time.Time
	peak             float64
	endCandidate     time.Time
	haveEndCandidate bool
	samples          []Sample
}

// Detector is the hysteresis state machine segmenting the turn signal
// into discrete windows. It is single-owner; the host funnels both
// sides' ingestion through one serialized call sequence.
type Detector struct {
	history *signalRing
	windows []Window

	active *activeTurn // nil == Idle

	turnCount int

	startCandidate     time.Time
	haveStartCandidate bool
	lastStart          time.Time
	haveLastStart      bool

	lastFix *gps.Fix
}

func NewDetector() *Detector {
	return &Detector{history: newSignalRing(adaptiveCapacity)}
}

// SetLocation records the most recent location fix; it is attached to
// the next finalized window.
func (d *Detector) SetLocation(fix *gps.Fix) {
	d.lastFix = fix
}

// TurnCount returns the live turn counter. It increments on every
// Idle->InTurn transition, so it can run ahead of len(Windows()) when
// short turns are discarded.
func (d *Detector) TurnCount() int { return d.turnCount }

// Windows returns the finalized turn windows in order.
func (d *Detector) Windows() []Window { return d.windows }

// InTurn reports whether a turn is currently open.
func (d *Detector) InTurn() bool { return d.active != nil }

// onThreshold is the adaptive onset threshold: never below the fixed
// floor, raised by median + 2.5*MAD of the recent sub-threshold
// background once enough history is buffered.
func (d *Detector) onThreshold() float64 {
	if d.history.len() < adaptiveMinSamples {
		return minOnThreshold
	}
	med, mad := d.history.medianMAD()
	return math.Max(minOnThreshold, med+adaptiveMADScale*mad)
}

// Ingest feeds one processed sample into the state machine. It returns
// the finalized window when this sample closed a turn, nil otherwise.
func (d *Detector) Ingest(ts time.Time, signal float64, leftEdge, rightEdge *float64) *Window {
	mag := math.Abs(signal)

	if d.active == nil {
		d.ingestIdle(ts, mag)
		if d.active == nil {
			return nil
		}
		// Fall through so the triggering sample is part of the window.
	}

	return d.ingestInTurn(ts, signal, mag, leftEdge, rightEdge)
}

func (d *Detector) ingestIdle(ts time.Time, mag float64) {
	if mag <= d.onThreshold() {
		// Only sub-threshold background feeds the adaptive ring, so
		// the threshold tracks sensor noise, not the turns themselves.
		// Sustained carving must stay detectable for a whole run.
		d.history.push(mag)
		d.haveStartCandidate = false
		return
	}

	if !d.haveStartCandidate {
		d.startCandidate = ts
		d.haveStartCandidate = true
	}
	if ts.Sub(d.startCandidate) < minOnsetHold {
		return
	}
	if d.haveLastStart && ts.Sub(d.lastStart) < minStartSeparation {
		return
	}

	// Counted immediately: the live display shows the turn as soon as
	// it starts, even if finalize later discards it as too short.
	d.turnCount++
	d.lastStart = ts
	d.haveLastStart = true
	d.haveStartCandidate = false
	d.active = &activeTurn{start: ts, peak: mag}
}

func (d *Detector) ingestInTurn(ts time.Time, signal, mag float64, leftEdge, rightEdge *float64) *Window {
	t := d.active

	sample := Sample{Timestamp: ts, LeftEdge: leftEdge, RightEdge: rightEdge, Signal: signal}
	t.samples = append(t.samples, sample)

	if mag > t.peak {
		t.peak = mag
	}

	offThreshold := math.Max(minOffThreshold, offPeakFraction*t.peak)

	if mag < offThreshold && sample.combinedEdge() <= edgeExitThreshold {
		if !t.haveEndCandidate {
			t.endCandidate = ts
			t.haveEndCandidate = true
		}
		if ts.Sub(t.endCandidate) >= minEndHold {
			return d.finalize(t.endCandidate)
		}
	} else {
		t.haveEndCandidate = false
	}
	return nil
}

// finalize closes the active turn at end. Turns shorter than the
// configured minimum are discarded entirely; the counter stays.
func (d *Detector) finalize(end time.Time) *Window {
	t := d.active
	d.active = nil

	if end.Sub(t.start) < minTurnDuration {
		return nil
	}

	// Samples ingested while waiting out the end hold fall past End;
	// drop them so every sample timestamp stays within the window.
	samples := t.samples
	for len(samples) > 0 && samples[len(samples)-1].Timestamp.After(end) {
		samples = samples[:len(samples)-1]
	}

	var sum, peakEdge float64
	for _, s := range samples {
		sum += s.Signal
		if edge := s.combinedEdge(); edge > peakEdge {
			peakEdge = edge
		}
	}
	mean := sum / float64(len(samples))

	direction := DirectionUnknown
	if mean > 0 {
		direction = DirectionRight
	} else if mean < 0 {
		direction = DirectionLeft
	}

	w := Window{
		Index:         len(d.windows) + 1,
		Start:         t.start,
		End:           end,
		Direction:     direction,
		MeanSignal:    mean,
		PeakEdgeAngle: peakEdge,
		Samples:       t.samples,
		Location:      d.lastFix,
	}
	d.windows = append(d.windows, w)
	return &d.windows[len(d.windows)-1]
}
