package geom

import "github.com/chewxy/math32"

// Mat3 is a 3x3 matrix in row-major order, used as a 2D homogeneous
// transform:
//
//	| m0 m1 m2 |   | x |
//	| m3 m4 m5 | * | y |
//	| m6 m7 m8 |   | 1 |
type Mat3 [9]float32

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Translate3 returns a 2D translation.
func Translate3(x, y float32) Mat3 {
	return Mat3{1, 0, x, 0, 1, y, 0, 0, 1}
}

// Scale3 returns a 2D scale.
func Scale3(x, y float32) Mat3 {
	return Mat3{x, 0, 0, 0, y, 0, 0, 0, 1}
}

// Rotate3 returns a 2D rotation (angle in radians).
func Rotate3(angle float32) Mat3 {
	c, s := math32.Cos(angle), math32.Sin(angle)
	return Mat3{c, -s, 0, s, c, 0, 0, 0, 1}
}

// Mul returns m * n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var r Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r[row*3+col] = m[row*3]*n[col] + m[row*3+1]*n[3+col] + m[row*3+2]*n[6+col]
		}
	}
	return r
}

// MulVec returns m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// TransformPoint applies m to (x, y, 1) and returns the x and y of the
// result. No perspective divide is performed.
func (m Mat3) TransformPoint(x, y float32) Vec2 {
	r := m.MulVec(Vec3{X: x, Y: y, Z: 1})
	return Vec2{X: r.X, Y: r.Y}
}

// Determinant returns the determinant of m.
func (m Mat3) Determinant() float32 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Inverse returns the inverse of m. If m is singular the identity is
// returned with ok == false.
func (m Mat3) Inverse() (inv Mat3, ok bool) {
	det := m.Determinant()
	if math32.Abs(det) < 1e-8 || !IsFinite(det) {
		return Identity3(), false
	}
	d := 1 / det
	return Mat3{
		(m[4]*m[8] - m[5]*m[7]) * d,
		(m[2]*m[7] - m[1]*m[8]) * d,
		(m[1]*m[5] - m[2]*m[4]) * d,
		(m[5]*m[6] - m[3]*m[8]) * d,
		(m[0]*m[8] - m[2]*m[6]) * d,
		(m[2]*m[3] - m[0]*m[5]) * d,
		(m[3]*m[7] - m[4]*m[6]) * d,
		(m[1]*m[6] - m[0]*m[7]) * d,
		(m[0]*m[4] - m[1]*m[3]) * d,
	}, true
}

// Columns returns the three columns padded to vec4 (w = 0), the layout a
// WGSL mat3x3 expects in a uniform buffer.
func (m Mat3) Columns() [3]Vec4 {
	return [3]Vec4{
		{X: m[0], Y: m[3], Z: m[6]},
		{X: m[1], Y: m[4], Z: m[7]},
		{X: m[2], Y: m[5], Z: m[8]},
	}
}

// Mat4 is a 4x4 matrix in row-major order.
type Mat4 [16]float32

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate4 returns a 3D translation.
func Translate4(x, y, z float32) Mat4 {
	m := Identity4()
	m[3], m[7], m[11] = x, y, z
	return m
}

// Scale4 returns a 3D scale.
func Scale4(x, y, z float32) Mat4 {
	m := Identity4()
	m[0], m[5], m[10] = x, y, z
	return m
}

// Mul returns m * n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += m[row*4+k] * n[k*4+col]
			}
			r[row*4+col] = s
		}
	}
	return r
}

// MulVec returns m * v.
func (m Mat4) MulVec(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3]*v.W,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7]*v.W,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11]*v.W,
		W: m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15]*v.W,
	}
}

// TransformPoint applies m to (p, w) and divides by the resulting w.
// A resulting w of exactly zero is treated as 1.
func (m Mat4) TransformPoint(p Vec3, w float32) Vec3 {
	r := m.MulVec(Vec4{X: p.X, Y: p.Y, Z: p.Z, W: w})
	if r.W == 0 {
		return r.XYZ()
	}
	return Vec3{X: r.X / r.W, Y: r.Y / r.W, Z: r.Z / r.W}
}

// TransformDir applies m to the direction d (w = 0).
func (m Mat4) TransformDir(d Vec3) Vec3 {
	return m.MulVec(Vec4{X: d.X, Y: d.Y, Z: d.Z}).XYZ()
}

// Columns returns the four columns of m.
func (m Mat4) Columns() [4]Vec4 {
	var c [4]Vec4
	for i := 0; i < 4; i++ {
		c[i] = Vec4{X: m[i], Y: m[4+i], Z: m[8+i], W: m[12+i]}
	}
	return c
}
