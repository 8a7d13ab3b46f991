package imu

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	for _, valid := range []string{"left", "right", "single"} {
		side, err := ParseSide(valid)
		require.NoError(t, err)
		assert.Equal(t, Side(valid), side)
	}

	_, err := ParseSide("both")
	assert.Error(t, err)
}

func TestStorageSide(t *testing.T) {
	assert.Equal(t, SideLeft, SideSingle.StorageSide())
	assert.Equal(t, SideLeft, SideLeft.StorageSide())
	assert.Equal(t, SideRight, SideRight.StorageSide())
}

func TestMagnitudes(t *testing.T) {
	s := Sample{Ax: 3, Ay: 0, Az: 4, Gx: 0, Gy: 6, Gz: 8}
	assert.InDelta(t, 5.0, s.AccelMagnitude(), 1e-12)
	assert.InDelta(t, 10.0, s.GyroMagnitude(), 1e-12)
}

func TestTimedSampleWireFormat(t *testing.T) {
	data := []byte(`{"side":"left","ts":"2026-02-14T10:30:00Z","ax":0.1,"ay":0,"az":0.98,"gx":1,"gy":2,"gz":-3}`)

	var ts TimedSample
	require.NoError(t, json.Unmarshal(data, &ts))
	assert.Equal(t, SideLeft, ts.Side)
	assert.InDelta(t, 0.98, ts.Az, 1e-12)
	assert.InDelta(t, -3.0, ts.Gz, 1e-12)
}
