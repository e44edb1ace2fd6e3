package types

import "math"

// A 3x3 matrix in row-major order.
type Mat3 [9]float64

// The identity matrix.
func Ident3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Build a matrix from three row vectors.
func Rows(r0, r1, r2 Vec3) Mat3 {
	return Mat3{
		r0[0], r0[1], r0[2],
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
	}
}

// Get a matrix row.
func (m Mat3) Row(i int) Vec3 {
	return Vec3{m[i*3], m[i*3+1], m[i*3+2]}
}

// Multiply matrix with a column vector.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Multiply two matrices.
func (m Mat3) Mul(m2 Mat3) Mat3 {
	var out Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*m2[c] + m[r*3+1]*m2[3+c] + m[r*3+2]*m2[6+c]
		}
	}
	return out
}

// Transpose matrix.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Calculate matrix determinant.
func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Build a rotation matrix for a rotation of angle radians around the given
// axis. The axis is normalized internally; a degenerate axis yields the
// identity rotation.
func RotationAxisAngle(axis Vec3, angle float64) Mat3 {
	u := axis.Normalize()
	if u.Len() < floatCmpEpsilon {
		return Ident3()
	}

	c := math.Cos(angle)
	s := math.Sin(angle)
	t := 1.0 - c

	return Mat3{
		t*u[0]*u[0] + c, t*u[0]*u[1] - s*u[2], t*u[0]*u[2] + s*u[1],
		t*u[0]*u[1] + s*u[2], t*u[1]*u[1] + c, t*u[1]*u[2] - s*u[0],
		t*u[0]*u[2] - s*u[1], t*u[1]*u[2] + s*u[0], t*u[2]*u[2] + c,
	}
}
