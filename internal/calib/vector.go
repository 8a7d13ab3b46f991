package calib

import "math"

// Vec3 is a 3-vector in sensor or boot coordinates.
type Vec3 [3]float64

// Mat3 is a 3x3 row-major rotation matrix. Rows are the boot axes
// expressed in sensor coordinates, so Apply maps sensor-frame vectors
// into the boot frame.
type Mat3 [3][3]float64

// Identity returns the identity rotation.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalized returns v/|v|. The zero vector is returned unchanged;
// callers guard against degenerate magnitudes before normalizing.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Apply rotates a sensor-frame vector into the boot frame.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Row returns row i as a vector.
func (m Mat3) Row(i int) Vec3 { return Vec3{m[i][0], m[i][1], m[i][2]} }

// rowsFrom assembles a rotation from three orthonormal boot axes.
func rowsFrom(x, y, z Vec3) Mat3 {
	return Mat3{
		{x[0], x[1], x[2]},
		{y[0], y[1], y[2]},
		{z[0], z[1], z[2]},
	}
}
