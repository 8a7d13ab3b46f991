// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/frame"
	"github.com/relabs-tech/carving_computer/internal/gps"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/signal"
	"github.com/relabs-tech/carving_computer/internal/turn"
)

// edgeHistoryWindow bounds the rolling full-resolution edge history.
const edgeHistoryWindow = 10 * time.Second

// Biquad smoothing for the edge magnitudes the detector's exit test
// consumes. Butterworth Q.
const (
	edgeFilterCutoffHz = 4.0
	edgeFilterQ        = 0.7071
)

// Mode selects how many sensors feed the session.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeDual   Mode = "dual"
)

// Telemetry is the live display state published after each ingested
// sample.
type Telemetry struct {
	Left      *frame.EdgeAngle `json:"left,omitempty"`
	Right     *frame.EdgeAngle `json:"right,omitempty"`
	Combined  frame.EdgeAngle  `json:"combined"`
	TurnCount int              `json:"turn_count"`
	Signal    float64          `json:"signal"`
	SpeedMS   float64          `json:"speed_ms"`
}

// Aggregator orchestrates ingestion across one or two sides: live edge
// state, the signal->detector feed for the primary side, histories, and
// final RunRecord assembly. Single-owner; the host serializes Ingest.
type Aggregator struct {
	mode         Mode
	primary      imu.Side
	rawRecording bool

	processor *signal.Processor
	detector  *turn.Detector

	id        string
	startedAt time.Time
	started   bool

	latestEdge  map[imu.Side]frame.EdgeAngle
	combined    frame.EdgeAngle
	edgeFilters map[imu.Side]*signal.Biquad
	smoothedMag map[imu.Side]float64

	edgeHistory []EdgeSample
	background  []turn.Sample
	track       []gps.Fix

	rawLog   []RawPair
	rawIndex map[int64]int // UnixNano -> rawLog index, for left/right pairing

	lastSignal float64
	lastSpeed  float64
}

// NewAggregator creates a session for the given sensor mode. primary
// names the side whose signal drives turn detection; in single mode it
// is normalized to the single sensor. sampleRateHz is the expected
// per-side sample rate and sizes the edge smoothing filters.
func NewAggregator(mode Mode, primary imu.Side, rawRecording bool, sampleRateHz float64) *Aggregator {
	if mode == ModeSingle {
		primary = imu.SideSingle
	}
	return &Aggregator{
		mode:         mode,
		primary:      primary,
		rawRecording: rawRecording,
		processor:    signal.NewProcessor(mode == ModeDual),
		detector:     turn.NewDetector(),
		id:           uuid.NewString(),
		latestEdge:   make(map[imu.Side]frame.EdgeAngle),
		edgeFilters: map[imu.Side]*signal.Biquad{
			imu.SideLeft:  signal.NewLowPassBiquad(edgeFilterCutoffHz, sampleRateHz, edgeFilterQ),
			imu.SideRight: signal.NewLowPassBiquad(edgeFilterCutoffHz, sampleRateHz, edgeFilterQ),
		},
		smoothedMag: make(map[imu.Side]float64),
		rawIndex:    make(map[int64]int),
	}
}

// Detector exposes the shared turn detector (read-only use by hosts).
func (a *Aggregator) Detector() *turn.Detector { return a.detector }

// Ingest folds one sample into the session. raw is the sensor-frame
// sample (kept only when raw recording is on), boot the boot-frame
// sample feeding the signal chain, edge the smoothed edge angles for
// this side. Returns the finalized turn window when this sample closed
// one, nil otherwise.
func (a *Aggregator) Ingest(ts time.Time, side imu.Side, raw, boot imu.Sample, edge frame.EdgeAngle, speedMS float64, fix *gps.Fix) *turn.Window {
	if !a.started {
		a.startedAt = ts
		a.started = true
	}

	displaySide := side
	if side == imu.SideSingle {
		displaySide = imu.SideLeft
	}
	a.latestEdge[displaySide] = edge
	a.smoothedMag[displaySide] = a.edgeFilters[displaySide].Update(edge.Magnitude)
	a.combined = a.combineEdges()
	a.lastSpeed = speedMS

	a.appendEdgeHistory(ts, displaySide)

	if fix != nil {
		a.track = append(a.track, *fix)
		a.detector.SetLocation(fix)
	}

	if a.rawRecording {
		a.recordRaw(ts, displaySide, raw)
	}

	res, ok := a.processor.Process(boot, side, ts)
	if !ok {
		return nil
	}
	if !res.Valid || side != a.primary {
		return nil
	}
	a.lastSignal = res.Signal

	left, right := a.edgeMagnitudes()
	win := a.detector.Ingest(ts, res.Signal, left, right)

	if !a.detector.InTurn() && win == nil {
		a.background = append(a.background, turn.Sample{
			Timestamp: ts,
			LeftEdge:  left,
			RightEdge: right,
			Signal:    res.Signal,
		})
	}
	return win
}

// Telemetry returns the current live display state.
func (a *Aggregator) Telemetry() Telemetry {
	t := Telemetry{
		Combined:  a.combined,
		TurnCount: a.detector.TurnCount(),
		Signal:    a.lastSignal,
		SpeedMS:   a.lastSpeed,
	}
	if e, ok := a.latestEdge[imu.SideLeft]; ok {
		cp := e
		t.Left = &cp
	}
	if e, ok := a.latestEdge[imu.SideRight]; ok {
		cp := e
		t.Right = &cp
	}
	return t
}

// Finish seals the session and assembles the RunRecord for the
// persistence collaborator. calibration is the per-identity snapshot
// in effect during the run.
func (a *Aggregator) Finish(endedAt time.Time, calibration map[string]calib.BootCalibration) *RunRecord {
	return &RunRecord{
		ID:          a.id,
		StartedAt:   a.startedAt,
		EndedAt:     endedAt,
		SensorMode:  string(a.mode),
		Turns:       a.detector.Windows(),
		Background:  a.background,
		Track:       a.track,
		EdgeHistory: a.edgeHistory,
		RawLog:      a.rawLog,
		Calibration: calibration,
	}
}

func (a *Aggregator) combineEdges() frame.EdgeAngle {
	var sum frame.EdgeAngle
	n := 0.0
	for _, e := range a.latestEdge {
		sum.Signed += e.Signed
		sum.Magnitude += e.Magnitude
		n++
	}
	if n == 0 {
		return frame.EdgeAngle{}
	}
	return frame.EdgeAngle{Signed: sum.Signed / n, Magnitude: sum.Magnitude / n}
}

// edgeMagnitudes returns the filtered per-side edge magnitudes as
// optional values for the detector.
func (a *Aggregator) edgeMagnitudes() (left, right *float64) {
	if v, ok := a.smoothedMag[imu.SideLeft]; ok {
		cp := v
		left = &cp
	}
	if v, ok := a.smoothedMag[imu.SideRight]; ok {
		cp := v
		right = &cp
	}
	return left, right
}

func (a *Aggregator) appendEdgeHistory(ts time.Time, side imu.Side) {
	entry := EdgeSample{Timestamp: ts}
	if e, ok := a.latestEdge[imu.SideLeft]; ok {
		v := e.Signed
		entry.Left = &v
	}
	if e, ok := a.latestEdge[imu.SideRight]; ok {
		v := e.Signed
		entry.Right = &v
	}
	a.edgeHistory = append(a.edgeHistory, entry)

	cutoff := ts.Add(-edgeHistoryWindow)
	trim := 0
	for trim < len(a.edgeHistory) && a.edgeHistory[trim].Timestamp.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		a.edgeHistory = a.edgeHistory[trim:]
	}
}

func (a *Aggregator) recordRaw(ts time.Time, side imu.Side, raw imu.Sample) {
	key := ts.UnixNano()
	idx, ok := a.rawIndex[key]
	if !ok {
		a.rawLog = append(a.rawLog, RawPair{Timestamp: ts})
		idx = len(a.rawLog) - 1
		a.rawIndex[key] = idx
	}

	cp := raw
	if side == imu.SideRight {
		a.rawLog[idx].Right = &cp
	} else {
		a.rawLog[idx].Left = &cp
	}
}
