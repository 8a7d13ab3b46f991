package signal

import "math"

// Biquad is a direct-form-II-transposed second-order IIR section.
// Used where a fixed sample rate is known, e.g. smoothing the combined
// edge angle before the detector's exit test.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// NewLowPassBiquad builds an RBJ low-pass section for the given cutoff
// frequency, sample rate, and quality factor (0.707 for Butterworth).
func NewLowPassBiquad(cutoffHz, sampleRateHz, q float64) *Biquad {
	omega := 2.0 * math.Pi * cutoffHz / sampleRateHz
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	a0 := 1.0 + alpha
	return &Biquad{
		b0: (1.0 - cosOmega) * 0.5 / a0,
		b1: (1.0 - cosOmega) / a0,
		b2: (1.0 - cosOmega) * 0.5 / a0,
		a1: -2.0 * cosOmega / a0,
		a2: (1.0 - alpha) / a0,
	}
}

// Update feeds one sample through the section.
func (f *Biquad) Update(sample float64) float64 {
	result := sample*f.b0 + f.z1
	f.z1 = sample*f.b1 + f.z2 - f.a1*result
	f.z2 = sample*f.b2 - f.a2*result
	return result
}

// Reset clears the delay line without touching the coefficients.
func (f *Biquad) Reset() {
	f.z1 = 0
	f.z2 = 0
}
