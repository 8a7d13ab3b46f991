package frame

import "github.com/relabs-tech/carving_computer/internal/imu"

// edgeSmoothingAlpha is the exponential smoothing coefficient applied
// to the live edge angles: new = prev + alpha*(raw - prev).
const edgeSmoothingAlpha = 0.18

// EdgeAngle is one smoothed edge-angle reading.
type EdgeAngle struct {
	Signed    float64 `json:"signed"`
	Magnitude float64 `json:"magnitude"`
}

type smoothState struct {
	angle       EdgeAngle
	initialized bool
}

// Smoother exponentially smooths signed/magnitude edge angles per
// sensor side. The first sample on a side initializes the smoothed
// value directly.
type Smoother struct {
	alpha float64
	sides map[imu.Side]*smoothState
}

func NewSmoother() *Smoother {
	return &Smoother{
		alpha: edgeSmoothingAlpha,
		sides: make(map[imu.Side]*smoothState),
	}
}

// Update folds a raw signed/magnitude pair into the smoothed state for
// a side and returns the new smoothed angles.
func (s *Smoother) Update(side imu.Side, signed, magnitude float64) EdgeAngle {
	st, ok := s.sides[side]
	if !ok {
		st = &smoothState{}
		s.sides[side] = st
	}

	if !st.initialized {
		st.angle = EdgeAngle{Signed: signed, Magnitude: magnitude}
		st.initialized = true
		return st.angle
	}

	st.angle.Signed += s.alpha * (signed - st.angle.Signed)
	st.angle.Magnitude += s.alpha * (magnitude - st.angle.Magnitude)
	return st.angle
}

// Reset clears all per-side smoothing state.
func (s *Smoother) Reset() {
	s.sides = make(map[imu.Side]*smoothState)
}
