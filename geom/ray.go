package geom

import "github.com/chewxy/math32"

// Intersection tolerances.
const (
	// TriangleDetEpsilon rejects rays nearly parallel to a triangle or
	// triangles with near-zero area.
	TriangleDetEpsilon = 1e-8

	// HitEpsilon is the minimum accepted ray distance for picking.
	HitEpsilon = 1e-5

	// BillboardEdgeSlack widens the accepted [-1, 1] billboard range.
	BillboardEdgeSlack = 1e-4
)

// Ray is a half-line from Origin along Dir.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// IntersectTriangle runs the Möller–Trumbore test against triangle abc.
// It returns the ray distance and barycentric u, v of the hit. Hits
// behind the origin (t <= 0) are rejected.
func (r Ray) IntersectTriangle(a, b, c Vec3) (t, u, v float32, ok bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < TriangleDetEpsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det
	tv := r.Origin.Sub(a)
	u = tv.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := tv.Cross(e1)
	v = r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * inv
	if t <= 0 {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// IntersectQuad intersects the ray with the parallelogram
// center ± axisR ± axisU. The axes carry the half extents and need not
// be orthonormal; the hit's local (u, v) is recovered by solving the
// 2x2 normal equations. Hits are accepted when |u| and |v| are within
// 1 + BillboardEdgeSlack and t lies in (HitEpsilon, maxT).
func (r Ray) IntersectQuad(center, axisR, axisU Vec3, maxT float32) (t, u, v float32, ok bool) {
	n := axisR.Cross(axisU)
	nl := n.Length()
	if nl < 1e-6 || !IsFinite(nl) {
		return 0, 0, 0, false
	}
	denom := n.Dot(r.Dir)
	if math32.Abs(denom) < 1e-6 {
		return 0, 0, 0, false
	}
	t = n.Dot(center.Sub(r.Origin)) / denom
	if t <= HitEpsilon || t >= maxT {
		return 0, 0, 0, false
	}
	rel := r.At(t).Sub(center)

	aa := axisR.Dot(axisR)
	bb := axisU.Dot(axisU)
	ab := axisR.Dot(axisU)
	det := aa*bb - ab*ab
	if math32.Abs(det) < 1e-8 {
		return 0, 0, 0, false
	}
	ar := rel.Dot(axisR)
	au := rel.Dot(axisU)
	u = (ar*bb - au*ab) / det
	v = (au*aa - ar*ab) / det
	if math32.Abs(u) > 1+BillboardEdgeSlack || math32.Abs(v) > 1+BillboardEdgeSlack {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
