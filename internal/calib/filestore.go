package calib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

// FileStore persists one JSON calibration file per sensor identity in
// a directory, e.g. left_boot_calibration.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("calibration store: create dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(side imu.Side) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_boot_calibration.json", side))
}

func (f *FileStore) Load(side imu.Side) (*CalibrationState, error) {
	data, err := os.ReadFile(f.path(side))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("calibration store: read %s: %w", f.path(side), err)
	}

	state := NewCalibrationState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("calibration store: parse %s: %w", f.path(side), err)
	}
	return state, nil
}

func (f *FileStore) Save(side imu.Side, state *CalibrationState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("calibration store: marshal: %w", err)
	}
	if err := os.WriteFile(f.path(side), data, 0644); err != nil {
		return fmt.Errorf("calibration store: write %s: %w", f.path(side), err)
	}
	return nil
}
