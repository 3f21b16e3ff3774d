package bvh

import (
	"math"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// TileIndexer resolves tile ids to dense atlas indices.
type TileIndexer interface {
	TileIndex(id uuid.UUID) (uint32, bool)
}

// VertexWords is the size of a packed Vertex in 32-bit words.
const VertexWords = 16

// Vertex is one flattened 3D vertex in world space.
type Vertex struct {
	Pos        geom.Vec3
	UV         [2]float32
	TileIndex  uint32
	TileIndex2 uint32
	// Blend is the weight of TileIndex2, in [0,1].
	Blend  float32
	Normal geom.Vec3
}

// AppendWords appends the 64-byte GPU layout of v to dst:
// pos+pad, uv+pad2, tile, tile2, blend, pad, normal+pad.
func (v *Vertex) AppendWords(dst []uint32) []uint32 {
	f := math.Float32bits
	return append(dst,
		f(v.Pos.X), f(v.Pos.Y), f(v.Pos.Z), 0,
		f(v.UV[0]), f(v.UV[1]), 0, 0,
		v.TileIndex, v.TileIndex2, f(v.Blend), 0,
		f(v.Normal.X), f(v.Normal.Y), f(v.Normal.Z), 0,
	)
}

// Geometry is the flattened 3D scene: vertices, triangle indices and a
// visibility flag per triangle.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
	Visible  []bool
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int { return len(g.Indices) / 3 }

// Triangle returns the corners of triangle t.
func (g *Geometry) Triangle(t int) (a, b, c geom.Vec3) {
	return g.Vertices[g.Indices[3*t]].Pos, g.Vertices[g.Indices[3*t+1]].Pos, g.Vertices[g.Indices[3*t+2]].Pos
}

// VisibilityWords packs Visible into a bitmask.
func (g *Geometry) VisibilityWords() []uint32 {
	return PackVisibility(g.Visible)
}

// VertexWords packs every vertex into its GPU layout.
func (g *Geometry) VertexWords() []uint32 {
	out := make([]uint32, 0, len(g.Vertices)*VertexWords)
	for i := range g.Vertices {
		out = g.Vertices[i].AppendWords(out)
	}
	return out
}

// Flatten collects every 3D polygon of store whose tile is placed,
// hidden ones included, and transforms it by m with a perspective
// divide. Vertex normals are the normalized sum of the unnormalized
// face normals of adjacent triangles. Triangles with out-of-range
// indices are dropped.
func Flatten(store *scene.Store, tiles TileIndexer, m geom.Mat4) *Geometry {
	g := &Geometry{}
	var pos []geom.Vec3
	var nrm []geom.Vec3

	store.Range(func(_ uuid.UUID, ch *scene.Chunk) bool {
		ch.EachPoly3D(func(p *scene.Poly3D) {
			ti, ok := tiles.TileIndex(p.TileID)
			if !ok {
				return
			}
			n := len(p.Vertices)
			pos = pos[:0]
			for _, v := range p.Vertices {
				pos = append(pos, m.TransformPoint(geom.V3(v[0], v[1], v[2]), v[3]))
			}
			nrm = append(nrm[:0], make([]geom.Vec3, n)...)
			for _, t := range p.Indices {
				if !validTri(t, n) {
					continue
				}
				a, b, c := pos[t[0]], pos[t[1]], pos[t[2]]
				fn := b.Sub(a).Cross(c.Sub(a))
				nrm[t[0]] = nrm[t[0]].Add(fn)
				nrm[t[1]] = nrm[t[1]].Add(fn)
				nrm[t[2]] = nrm[t[2]].Add(fn)
			}

			ti2 := ti
			if p.TileID2 != nil {
				if i, ok := tiles.TileIndex(*p.TileID2); ok {
					ti2 = i
				}
			}
			blend := p.HasBlend()

			base := uint32(len(g.Vertices))
			for i := range pos {
				vx := Vertex{Pos: pos[i], TileIndex: ti, TileIndex2: ti2, Normal: nrm[i]}
				if l := nrm[i].Length(); l > 1e-12 {
					vx.Normal = nrm[i].Mul(1 / l)
				}
				if i < len(p.UVs) {
					vx.UV = p.UVs[i]
				}
				if blend {
					vx.Blend = geom.Clamp(p.BlendWeights[i], 0, 1)
				}
				g.Vertices = append(g.Vertices, vx)
			}
			for _, t := range p.Indices {
				if !validTri(t, n) {
					continue
				}
				g.Indices = append(g.Indices, base+uint32(t[0]), base+uint32(t[1]), base+uint32(t[2]))
				g.Visible = append(g.Visible, p.Visible)
			}
		})
		return true
	})
	return g
}

// Visibility recomputes the per-triangle visibility bitmask in the same
// triangle order as Flatten, without touching vertex data.
func Visibility(store *scene.Store, tiles TileIndexer) []uint32 {
	var vis []bool
	store.Range(func(_ uuid.UUID, ch *scene.Chunk) bool {
		ch.EachPoly3D(func(p *scene.Poly3D) {
			if _, ok := tiles.TileIndex(p.TileID); !ok {
				return
			}
			n := len(p.Vertices)
			for _, t := range p.Indices {
				if validTri(t, n) {
					vis = append(vis, p.Visible)
				}
			}
		})
		return true
	})
	return PackVisibility(vis)
}

// PackVisibility packs flags into words, bit i%32 of word i/32. The
// result has at least one word.
func PackVisibility(flags []bool) []uint32 {
	words := make([]uint32, max((len(flags)+31)/32, 1))
	for i, v := range flags {
		if v {
			words[i/32] |= 1 << (i % 32)
		}
	}
	return words
}

// IsVisible reports bit tri of a packed visibility mask.
func IsVisible(words []uint32, tri int) bool {
	w := tri / 32
	if w >= len(words) {
		return false
	}
	return words[w]&(1<<(tri%32)) != 0
}

func validTri(t [3]int, n int) bool {
	return t[0] >= 0 && t[0] < n && t[1] >= 0 && t[1] < n && t[2] >= 0 && t[2] < n
}
