package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/carving_computer/internal/imu"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	state := &CalibrationState{
		RotationMatrix: Mat3{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		GyroBias:       Vec3{0.1, -0.2, 0.3},
		AccelScale:     0.98,
		ZAxis:          Vec3{0, 0, -1},
		Calibrated:     true,
	}
	require.NoError(t, store.Save(imu.SideLeft, state))

	loaded, err := store.Load(imu.SideLeft)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state, loaded)
}

func TestFileStoreLoadAbsent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.Load(imu.SideRight)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStoreSidesAreIndependent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	left := NewCalibrationState()
	left.AccelScale = 0.97
	right := NewCalibrationState()
	right.AccelScale = 1.03

	require.NoError(t, store.Save(imu.SideLeft, left))
	require.NoError(t, store.Save(imu.SideRight, right))

	gotLeft, err := store.Load(imu.SideLeft)
	require.NoError(t, err)
	gotRight, err := store.Load(imu.SideRight)
	require.NoError(t, err)

	assert.InDelta(t, 0.97, gotLeft.AccelScale, 1e-12)
	assert.InDelta(t, 1.03, gotRight.AccelScale, 1e-12)
}
