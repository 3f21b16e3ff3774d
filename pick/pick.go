// Package pick answers CPU-side ray queries against a layer's 3D
// geometry and billboards: the object under one screen position, and
// every object of a kind under a screen rectangle.
package pick

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/bvh"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/internal/parallel"
	"github.com/gogpu/scenevm/scene"
)

// leafSize is the BVH leaf size used for pick targets.
const leafSize = 4

// Options selects what a pick may hit.
type Options struct {
	// IncludeHidden also tests polygons whose Visible flag is false.
	IncludeHidden bool
	// IncludeBillboards also tests dynamic billboards.
	IncludeBillboards bool
}

// Hit is the closest object found along a pick ray.
type Hit struct {
	ID       scene.GeoID
	Pos      geom.Vec3
	Distance float32
}

// Rect is a screen rectangle in pixels. Corners may be given in any
// order.
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// Target is a read-only snapshot of the pickable geometry of one layer.
// All queries on a Target may run concurrently.
type Target struct {
	geo    bvh.Geometry
	owners []scene.GeoID
	accel  *bvh.Accel

	transform  geom.Mat4
	billboards []scene.DynamicObject
}

// NewTarget snapshots every 3D polygon of store, transformed by m, and
// the given billboards. Unlike rendering, untextured polygons are
// pickable too.
func NewTarget(store *scene.Store, m geom.Mat4, billboards []scene.DynamicObject) *Target {
	t := &Target{transform: m}
	var pos []geom.Vec3

	store.Range(func(_ uuid.UUID, ch *scene.Chunk) bool {
		ch.EachPoly3D(func(p *scene.Poly3D) {
			n := len(p.Vertices)
			if n == 0 || len(p.Indices) == 0 {
				return
			}
			pos = pos[:0]
			for _, v := range p.Vertices {
				pos = append(pos, m.TransformPoint(geom.V3(v[0], v[1], v[2]), v[3]))
			}
			base := uint32(len(t.geo.Vertices))
			for _, q := range pos {
				t.geo.Vertices = append(t.geo.Vertices, bvh.Vertex{Pos: q})
			}
			for _, tri := range p.Indices {
				if tri[0] < 0 || tri[0] >= n || tri[1] < 0 || tri[1] >= n || tri[2] < 0 || tri[2] >= n {
					continue
				}
				t.geo.Indices = append(t.geo.Indices, base+uint32(tri[0]), base+uint32(tri[1]), base+uint32(tri[2]))
				t.geo.Visible = append(t.geo.Visible, p.Visible)
				t.owners = append(t.owners, p.ID)
			}
		})
		return true
	})

	t.accel = bvh.Build(t.geo.Vertices, t.geo.Indices, leafSize)
	t.SetBillboards(billboards)
	return t
}

// SetBillboards replaces the billboard set. Invalid billboards are
// dropped.
func (t *Target) SetBillboards(list []scene.DynamicObject) {
	t.billboards = t.billboards[:0]
	for _, o := range list {
		if o.Kind != scene.BillboardTile && o.Kind != scene.BillboardAvatar {
			continue
		}
		if !o.Valid() {
			continue
		}
		t.billboards = append(t.billboards, o)
	}
}

// TriangleCount returns the number of pickable triangles.
func (t *Target) TriangleCount() int { return len(t.owners) }

// At casts a ray through uv (0..1, origin top-left) from cam and returns
// the closest hit. A zero-size framebuffer never hits.
func (t *Target) At(cam scene.Camera3D, fbW, fbH uint32, uv [2]float32, opts Options) (Hit, bool) {
	if fbW == 0 || fbH == 0 {
		return Hit{}, false
	}
	return t.cast(cam.RayFromUV(fbW, fbH, uv), opts)
}

// Ray returns the closest hit along r.
func (t *Target) Ray(r geom.Ray, opts Options) (Hit, bool) {
	return t.cast(r, opts)
}

func (t *Target) cast(r geom.Ray, opts Options) (Hit, bool) {
	var accept func(int) bool
	if !opts.IncludeHidden {
		accept = func(tri int) bool { return t.geo.Visible[tri] }
	}

	best := Hit{Distance: float32(math.Inf(1))}
	found := false
	if h, ok := t.accel.Intersect(&t.geo, r, best.Distance, accept); ok {
		best = Hit{ID: t.owners[h.Tri], Pos: r.At(h.T), Distance: h.T}
		found = true
	}

	if opts.IncludeBillboards {
		for i := range t.billboards {
			o := &t.billboards[i]
			hw, hh := o.HalfExtents()
			center := t.transform.TransformPoint(o.Center, 1)
			axisR := t.transform.TransformDir(o.ViewRight.Mul(hw))
			axisU := t.transform.TransformDir(o.ViewUp.Mul(hh))
			d, _, _, ok := r.IntersectQuad(center, axisR, axisU, best.Distance)
			if !ok {
				continue
			}
			best = Hit{ID: o.ID, Pos: r.At(d), Distance: d}
			found = true
		}
	}
	return best, found
}

// InRect casts one ray per pixel covered by rect and returns the
// distinct ids whose kind matches kind, sorted. Rows are split across
// pool; a nil pool runs inline. A zero-size framebuffer or a rect with
// no area after clamping yields nil.
func (t *Target) InRect(pool *parallel.WorkerPool, cam scene.Camera3D, fbW, fbH uint32, rect Rect,
	kind scene.GeoKind, opts Options,
) []scene.GeoID {
	x0, y0, x1, y1, ok := clampRect(rect, fbW, fbH)
	if !ok {
		return nil
	}

	parts := 1
	if pool != nil {
		parts = pool.Workers() * 4
	}
	fw, fh := float32(fbW), float32(fbH)
	seen := make(map[scene.GeoID]struct{})

	parallel.Gather(pool, y1-y0, parts,
		func() map[scene.GeoID]struct{} { return make(map[scene.GeoID]struct{}) },
		func(s parallel.Span, local map[scene.GeoID]struct{}) {
			for y := y0 + s.Lo; y < y0+s.Hi; y++ {
				for x := x0; x < x1; x++ {
					uv := [2]float32{float32(x) / fw, float32(y) / fh}
					if h, ok := t.cast(cam.RayFromUV(fbW, fbH, uv), opts); ok && h.ID.Kind == kind {
						local[h.ID] = struct{}{}
					}
				}
			}
		},
		func(local map[scene.GeoID]struct{}) {
			for id := range local {
				seen[id] = struct{}{}
			}
		},
	)

	if len(seen) == 0 {
		return nil
	}
	out := make([]scene.GeoID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b scene.GeoID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// clampRect normalizes rect, clamps it to the framebuffer and returns
// the covered pixel range [x0,x1) x [y0,y1).
func clampRect(r Rect, fbW, fbH uint32) (x0, y0, x1, y1 int, ok bool) {
	if fbW == 0 || fbH == 0 {
		return 0, 0, 0, 0, false
	}
	fw, fh := float32(fbW), float32(fbH)
	minX := geom.Clamp(min(r.X0, r.X1), 0, fw)
	minY := geom.Clamp(min(r.Y0, r.Y1), 0, fh)
	maxX := geom.Clamp(max(r.X0, r.X1), 0, fw)
	maxY := geom.Clamp(max(r.Y0, r.Y1), 0, fh)
	if !(minX < maxX) || !(minY < maxY) {
		return 0, 0, 0, 0, false
	}
	return int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))), true
}
