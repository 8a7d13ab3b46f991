package signal

import "sort"

// Hampel de-spike filter parameters: a rolling window of 31 samples,
// active once 7 are present, replacing values more than 5 scaled MADs
// from the local median.
const (
	hampelWindowSize = 31
	hampelMinSamples = 7
	hampelNSigma     = 5.0
)

// Hampel is a rolling-window outlier rejector. A sample far from the
// local median (in MAD units) is replaced by that median; everything
// else passes through unchanged.
type Hampel struct {
	window []float64
	head   int
}

func NewHampel() *Hampel {
	return &Hampel{window: make([]float64, 0, hampelWindowSize)}
}

// Push adds a value to the window and returns the de-spiked value.
func (h *Hampel) Push(v float64) float64 {
	if len(h.window) < hampelWindowSize {
		h.window = append(h.window, v)
	} else {
		h.window[h.head] = v
		h.head = (h.head + 1) % hampelWindowSize
	}

	if len(h.window) < hampelMinSamples {
		return v
	}

	med := median(h.window)
	deviations := make([]float64, len(h.window))
	for i, w := range h.window {
		deviations[i] = abs(w - med)
	}
	mad := median(deviations)

	if abs(v-med) > hampelNSigma*mad {
		return med
	}
	return v
}

// Reset discards the window.
func (h *Hampel) Reset() {
	h.window = h.window[:0]
	h.head = 0
}

// median returns the middle value of vals (mean of the two middle
// values for even lengths) without mutating the input.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
