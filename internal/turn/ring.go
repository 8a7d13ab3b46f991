package turn

import "sort"

// signalRing is a fixed-capacity ring buffer over recent |signal|
// values, used for the adaptive onset threshold.
type signalRing struct {
	buf   []float64
	head  int
	count int
}

func newSignalRing(capacity int) *signalRing {
	return &signalRing{buf: make([]float64, capacity)}
}

func (r *signalRing) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *signalRing) len() int { return r.count }

// medianMAD returns the median and median absolute deviation of the
// buffered values.
func (r *signalRing) medianMAD() (med, mad float64) {
	vals := make([]float64, r.count)
	if r.count < len(r.buf) {
		copy(vals, r.buf[:r.count])
	} else {
		copy(vals, r.buf)
	}
	med = medianOf(vals)

	for i, v := range vals {
		d := v - med
		if d < 0 {
			d = -d
		}
		vals[i] = d
	}
	mad = medianOf(vals)
	return med, mad
}

// medianOf sorts vals in place and returns the median.
func medianOf(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
