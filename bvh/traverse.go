package bvh

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/gogpu/scenevm/geom"
)

// Hit is the closest intersection found by Intersect.
type Hit struct {
	Tri  int
	T    float32
	U, V float32
}

// Intersect returns the closest triangle of g hit by r with
// geom.HitEpsilon < t < maxT. accept filters candidate triangles; nil
// accepts all.
func (a *Accel) Intersect(g *Geometry, r geom.Ray, maxT float32, accept func(tri int) bool) (Hit, bool) {
	best := Hit{Tri: -1, T: maxT}
	if a.NodeCount == 0 {
		return best, false
	}
	inv := geom.V3(1/r.Dir.X, 1/r.Dir.Y, 1/r.Dir.Z)

	var stack [64]uint32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		n := a.Nodes[stack[sp]]
		if !slab(n.Bounds, r.Origin, inv, best.T) {
			continue
		}
		if n.IsLeaf() {
			for _, tri := range a.TriIndices[n.LeftFirst : n.LeftFirst+n.Count] {
				if accept != nil && !accept(int(tri)) {
					continue
				}
				p0, p1, p2 := g.Triangle(int(tri))
				t, u, v, ok := r.IntersectTriangle(p0, p1, p2)
				if ok && t > geom.HitEpsilon && t < best.T {
					best = Hit{Tri: int(tri), T: t, U: u, V: v}
				}
			}
			continue
		}
		if sp+2 > len(stack) {
			a.bruteForce(g, r, &best, accept, n)
			continue
		}
		stack[sp] = n.LeftFirst + 1
		stack[sp+1] = n.LeftFirst
		sp += 2
	}
	return best, best.Tri >= 0
}

// bruteForce tests every triangle under n. It only runs when the
// traversal stack overflows on a degenerate tree.
func (a *Accel) bruteForce(g *Geometry, r geom.Ray, best *Hit, accept func(int) bool, n Node) {
	var walk func(n Node)
	walk = func(n Node) {
		if n.IsLeaf() {
			for _, tri := range a.TriIndices[n.LeftFirst : n.LeftFirst+n.Count] {
				if accept != nil && !accept(int(tri)) {
					continue
				}
				p0, p1, p2 := g.Triangle(int(tri))
				if t, u, v, ok := r.IntersectTriangle(p0, p1, p2); ok && t > geom.HitEpsilon && t < best.T {
					*best = Hit{Tri: int(tri), T: t, U: u, V: v}
				}
			}
			return
		}
		walk(a.Nodes[n.LeftFirst])
		walk(a.Nodes[n.LeftFirst+1])
	}
	walk(n)
}

// slab reports whether the ray enters box before maxT.
func slab(b geom.AABB, o, inv geom.Vec3, maxT float32) bool {
	tmin, tmax := float32(0), maxT
	for axis := 0; axis < 3; axis++ {
		t1 := (b.Min.Axis(axis) - o.Axis(axis)) * inv.Axis(axis)
		t2 := (b.Max.Axis(axis) - o.Axis(axis)) * inv.Axis(axis)
		if t1 != t1 || t2 != t2 {
			// 0*Inf: the ray is parallel to this slab and starts on its plane.
			continue
		}
		tmin = math32.Max(tmin, math32.Min(t1, t2))
		tmax = math32.Min(tmax, math32.Max(t1, t2))
	}
	return tmin <= tmax
}

// GridHeaderWords is the size of a packed GridHeader in 32-bit words.
const GridHeaderWords = 20

// GridHeader locates the tree and the visibility mask inside the
// combined grid data buffer.
type GridHeader struct {
	Origin     geom.Vec3
	CellSize   geom.Vec3
	Dims       [3]uint32
	NodesStart uint32
	TrisStart  uint32
	NodeCount  uint32
	TriCount   uint32
	VisStart   uint32
	VisWords   uint32
}

// Words returns the header in its GPU layout.
func (h GridHeader) Words() []uint32 {
	f := math.Float32bits
	return []uint32{
		f(h.Origin.X), f(h.Origin.Y), f(h.Origin.Z), 0,
		f(h.CellSize.X), f(h.CellSize.Y), f(h.CellSize.Z), 0,
		h.Dims[0], h.Dims[1], h.Dims[2], 0,
		h.NodesStart, h.TrisStart, h.NodeCount, h.TriCount,
		h.VisStart, h.VisWords, 0, 0,
	}
}

// Pack concatenates packed nodes, triangle indices and the visibility
// mask into one buffer and returns its header.
func (a *Accel) Pack(visibility []uint32) (GridHeader, []uint32) {
	nodes := a.PackNodes()
	tris := a.PackTris()
	if len(visibility) == 0 {
		visibility = []uint32{0}
	}
	data := make([]uint32, 0, len(nodes)+len(tris)+len(visibility))
	data = append(data, nodes...)
	data = append(data, tris...)
	data = append(data, visibility...)
	h := GridHeader{
		Origin:     a.Origin,
		CellSize:   a.Extent,
		Dims:       [3]uint32{1, 1, 1},
		NodesStart: 0,
		TrisStart:  uint32(len(nodes)),
		NodeCount:  a.NodeCount,
		TriCount:   a.TriCount,
		VisStart:   uint32(len(nodes) + len(tris)),
		VisWords:   uint32(len(visibility)),
	}
	return h, data
}
