package turn

import (
	"time"

	"github.com/relabs-tech/carving_computer/internal/gps"
)

// Direction classifies a finished turn by the sign of its mean signal.
type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionUnknown Direction = "unknown"
)

// Sample is one observation collected while a turn is in progress.
// Either edge angle may be absent when that side's sensor produced no
// reading at this instant.
type Sample struct {
	Timestamp time.Time `json:"ts"`
	LeftEdge  *float64  `json:"left_edge,omitempty"`
	RightEdge *float64  `json:"right_edge,omitempty"`
	Signal    float64   `json:"signal"`
}

// combinedEdge is the mean of whichever edge angles are present, or 0
// when neither side has a reading.
func (s Sample) combinedEdge() float64 {
	switch {
	case s.LeftEdge != nil && s.RightEdge != nil:
		return (*s.LeftEdge + *s.RightEdge) / 2
	case s.LeftEdge != nil:
		return *s.LeftEdge
	case s.RightEdge != nil:
		return *s.RightEdge
	}
	return 0
}

// Window is one finished carving turn. Windows are created only by a
// successful finalize and are immutable afterwards.
type Window struct {
	Index         int       `json:"index"` // 1-based, sequential
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Direction     Direction `json:"direction"`
	MeanSignal    float64   `json:"mean_signal"`
	PeakEdgeAngle float64   `json:"peak_edge_angle"`
	Samples       []Sample  `json:"samples"`
	Location      *gps.Fix  `json:"location,omitempty"`
}

// Duration is End minus Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
