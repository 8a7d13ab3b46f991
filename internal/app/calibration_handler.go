// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Capture batch sizes for the guided calibration flow.
const (
	stationaryBatchSize = 200
	edgeHoldBatchSize   = 100
)

// CalibrationSession holds the state of one active websocket-guided
// calibration: which sensor, which phase, and the captured edge batch
// awaiting its partner.
type CalibrationSession struct {
	mu sync.Mutex

	side    imu.Side
	engine  *calib.Engine
	reader  sensors.SampleReader
	phase   string // "", "stationary", "edge-one", "edge-two"
	edgeOne []imu.Sample
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // init, next, cancel
	Side   string `json:"side,omitempty"`
}

type WSResponse struct {
	Type      string  `json:"type"` // phase, progress, complete, error
	Phase     string  `json:"phase,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	Message   string  `json:"message,omitempty"`
	Measured  float64 `json:"measured,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// HandleCalibrationWS drives the two-phase boot calibration over a
// WebSocket: the client holds the boot still, then on each forward
// edge, sending "next" when the skier is in position.
func HandleCalibrationWS(engine *calib.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("calibration: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &CalibrationSession{engine: engine}

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("calibration: websocket read error: %v", err)
				return
			}

			switch msg.Action {
			case "init":
				if err := session.initFor(msg.Side); err != nil {
					sendError(conn, err)
					continue
				}
				log.Printf("calibration: initialized for side %s", msg.Side)

			case "next":
				session.mu.Lock()
				err := session.runNextStep(conn)
				session.mu.Unlock()
				if err != nil {
					sendError(conn, err)
				}

			case "cancel":
				log.Printf("calibration: cancelled by user")
				return
			}
		}
	}
}

func (s *CalibrationSession) initFor(side string) error {
	parsed, err := imu.ParseSide(side)
	if err != nil {
		return err
	}

	reader, err := sensors.GetManager().Reader(parsed)
	if err != nil {
		return err
	}

	s.side = parsed
	s.reader = reader
	s.phase = ""
	s.edgeOne = nil
	return nil
}

// runNextStep advances the capture state machine. A capture failure
// keeps the phase so the same step can simply be retried.
func (s *CalibrationSession) runNextStep(conn *websocket.Conn) error {
	if s.reader == nil {
		return fmt.Errorf("calibration not initialized; send init first")
	}

	switch s.phase {
	case "":
		sendPhase(conn, "stationary")
		batch, err := s.collect(conn, stationaryBatchSize)
		if err != nil {
			return err
		}
		if err := s.engine.CaptureStationary(s.side, batch); err != nil {
			return err
		}
		s.phase = "stationary"

	case "stationary":
		sendPhase(conn, "edge-one")
		batch, err := s.collect(conn, edgeHoldBatchSize)
		if err != nil {
			return err
		}
		s.edgeOne = batch
		s.phase = "edge-one"

	case "edge-one":
		sendPhase(conn, "edge-two")
		batch, err := s.collect(conn, edgeHoldBatchSize)
		if err != nil {
			return err
		}
		if err := s.engine.CaptureForwardEdges(s.side, s.edgeOne, batch); err != nil {
			// Edge holds restart together.
			s.phase = "stationary"
			s.edgeOne = nil
			return err
		}
		s.phase = "edge-two"

		conn.WriteJSON(WSResponse{
			Type:    "complete",
			Message: fmt.Sprintf("%s sensor calibrated", s.side),
		})
		log.Printf("calibration: %s sensor calibrated", s.side)
	}

	return nil
}

// collect reads a batch from the sensor, streaming progress updates.
func (s *CalibrationSession) collect(conn *websocket.Conn, count int) ([]imu.Sample, error) {
	cfg := config.Get()
	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond

	batch := make([]imu.Sample, 0, count)
	for i := 0; i < count; i++ {
		sample, err := s.reader.Read()
		if err != nil {
			return nil, err
		}
		batch = append(batch, sample)

		if i%10 == 0 {
			conn.WriteJSON(WSResponse{
				Type:     "progress",
				Progress: float64(i) / float64(count) * 100,
			})
		}
		time.Sleep(interval)
	}
	return batch, nil
}

func sendPhase(conn *websocket.Conn, phase string) {
	conn.WriteJSON(WSResponse{Type: "phase", Phase: phase})
}

func sendError(conn *websocket.Conn, err error) {
	resp := WSResponse{Type: "error", Message: err.Error()}
	if ce, ok := calib.AsCaptureError(err); ok {
		resp.Measured = ce.Measured
		resp.Threshold = ce.Threshold
	}
	conn.WriteJSON(resp)
}

// RunCalibrationServer serves the websocket calibration endpoint.
func RunCalibrationServer() error {
	cfg := config.Get()

	mgr := sensors.GetManager()
	if err := mgr.Init(); err != nil {
		return err
	}

	store, err := calib.NewFileStore(cfg.CalibrationDir)
	if err != nil {
		return err
	}
	engine := calib.NewEngine(store)

	http.HandleFunc("/ws/calibration", HandleCalibrationWS(engine))

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("calibration server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
