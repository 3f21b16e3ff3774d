package geom

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns an inverted box that any Extend call will replace.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: Vec3{X: inf, Y: inf, Z: inf},
		Max: Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// Extend grows the box to include p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Extent returns Max - Min.
func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// IsEmpty reports whether the box is inverted on any axis.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Contains reports whether o lies inside b, allowing eps slack.
func (b AABB) Contains(o AABB, eps float32) bool {
	return o.Min.X >= b.Min.X-eps && o.Min.Y >= b.Min.Y-eps && o.Min.Z >= b.Min.Z-eps &&
		o.Max.X <= b.Max.X+eps && o.Max.Y <= b.Max.Y+eps && o.Max.Z <= b.Max.Z+eps
}

// SurfaceArea returns the box surface area. Negative extents count as
// zero and the result never drops below 2e-12, so SAH costs stay finite
// for flat or empty boxes.
func (b AABB) SurfaceArea() float32 {
	e := b.Extent()
	ex := math32.Max(e.X, 0)
	ey := math32.Max(e.Y, 0)
	ez := math32.Max(e.Z, 0)
	return 2 * math32.Max(ex*ey+ey*ez+ez*ex, 1e-12)
}

// TriangleBounds returns the box around three points.
func TriangleBounds(a, b, c Vec3) AABB {
	return AABB{Min: a.Min(b).Min(c), Max: a.Max(b).Max(c)}
}
