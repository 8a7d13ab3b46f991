package calib

import (
	"github.com/relabs-tech/carving_computer/internal/imu"
)

// Store abstracts calibration persistence per sensor identity. The
// engine is handed a Store at construction so the capture algorithms
// stay independent of the storage mechanism.
type Store interface {
	// Load returns the stored state for a side, or nil when none has
	// been persisted yet.
	Load(side imu.Side) (*CalibrationState, error)

	// Save persists the state for a side, replacing any previous one.
	Save(side imu.Side, state *CalibrationState) error
}

// MemStore is an in-memory Store used in tests and bench runs.
type MemStore struct {
	states map[imu.Side]*CalibrationState
}

func NewMemStore() *MemStore {
	return &MemStore{states: make(map[imu.Side]*CalibrationState)}
}

func (m *MemStore) Load(side imu.Side) (*CalibrationState, error) {
	s, ok := m.states[side]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) Save(side imu.Side, state *CalibrationState) error {
	cp := *state
	m.states[side] = &cp
	return nil
}
