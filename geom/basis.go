package geom

// basisEpsilon is the shortest axis length treated as usable.
const basisEpsilon = 1e-5

var (
	unitX = Vec3{X: 1}
	unitY = Vec3{Y: 1}
	unitZ = Vec3{Z: 1}
)

// SanitizeBillboardAxes turns a possibly degenerate right/up pair into
// a finite orthonormal basis. A right axis that is too short or not
// finite becomes +X, an unusable up axis becomes +Y. Up is then made
// orthogonal to right; if nothing is left, +Y (or +Z when right is
// close to Y) is orthogonalized instead, with +Z as the final fallback.
func SanitizeBillboardAxes(right, up Vec3) (Vec3, Vec3) {
	r := unitX
	if l := right.Length(); l >= basisEpsilon && IsFinite(l) {
		r = right.Mul(1 / l)
	}
	u := unitY
	if l := up.Length(); l >= basisEpsilon && IsFinite(l) {
		u = up.Mul(1 / l)
	}

	u = u.Sub(r.Mul(r.Dot(u)))
	if l := u.Length(); l >= basisEpsilon && IsFinite(l) {
		return r, u.Mul(1 / l)
	}

	fallback := unitY
	if r.Y > 0.9 || r.Y < -0.9 {
		fallback = unitZ
	}
	fallback = fallback.Sub(r.Mul(r.Dot(fallback)))
	if l := fallback.Length(); l >= basisEpsilon && IsFinite(l) {
		return r, fallback.Mul(1 / l)
	}
	return r, unitZ
}
