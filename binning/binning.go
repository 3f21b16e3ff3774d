// Package binning flattens 2D chunk geometry into one vertex/index
// buffer pair and bins the resulting triangles into 8×8 pixel screen
// tiles.
//
// Each tile bin lists the triangles whose screen-space bounding box
// overlaps the tile, sorted by layer, then chunk priority, then
// insertion order, all descending. Bins are concatenated into a single
// reference array addressed by (offset, count) records.
package binning

import (
	"cmp"
	"math"
	"slices"

	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// Tile dimensions in pixels.
const (
	TileWidth  = 8
	TileHeight = 8
)

// minWords is the minimum length of every output word buffer. Backends
// reject zero-sized storage buffers.
const minWords = 4

// segmentEpsilon is the shortest screen-space line segment that is
// expanded into a quad.
const segmentEpsilon = 1e-6

// TileIndexer resolves tile ids to dense atlas indices.
type TileIndexer interface {
	TileIndex(id uuid.UUID) (uint32, bool)
}

// Vertex is one batched 2D vertex in screen space.
type Vertex struct {
	Pos       [2]float32
	UV        [2]float32
	TileIndex uint32
}

// Bin is a tile's slice of Batch.TileTris.
type Bin struct {
	Offset uint32
	Count  uint32
}

// Batch is the output of a build. TileTris and Bins are padded to a
// non-zero length even when the scene is empty.
type Batch struct {
	Vertices []Vertex
	Indices  []uint32
	Bins     []Bin
	TileTris []uint32

	TilesX, TilesY uint32
	// Triangles is the number of batched triangles, binned or not.
	Triangles int
}

// TriangleCount returns the number of triangles in Indices.
func (b *Batch) TriangleCount() int { return len(b.Indices) / 3 }

// Bin returns the triangle references of tile (tx, ty).
func (b *Batch) Bin(tx, ty uint32) []uint32 {
	if tx >= b.TilesX || ty >= b.TilesY {
		return nil
	}
	bin := b.Bins[ty*b.TilesX+tx]
	if bin.Count == 0 {
		return nil
	}
	return b.TileTris[bin.Offset : bin.Offset+bin.Count]
}

type triMeta struct {
	layer int32
	prio  int32
	ord   uint32
}

type triRef struct {
	tri uint32
	triMeta
}

// Batcher builds batches and keeps its scratch buffers between builds.
// It is not safe for concurrent use.
type Batcher struct {
	meta []triMeta
	bins [][]triRef
	pts  [][2]float32
}

// New returns an empty Batcher.
func New() *Batcher {
	return &Batcher{}
}

// Build flattens every visible 2D polygon and pixel-width line strip in
// store. Vertices are transformed by transform·poly.Transform; line
// strip points by transform only. Geometry whose tile has no atlas
// index is skipped. fbW and fbH give the framebuffer size in pixels.
func (b *Batcher) Build(store *scene.Store, tiles TileIndexer, transform geom.Mat3, fbW, fbH uint32) *Batch {
	out := &Batch{}
	b.meta = b.meta[:0]
	var ord uint32

	store.Range(func(_ uuid.UUID, ch *scene.Chunk) bool {
		prio := ch.Priority
		ch.EachPoly2D(func(p *scene.Poly2D) {
			if !p.Visible {
				return
			}
			ti, ok := tiles.TileIndex(p.TileID)
			if !ok {
				return
			}
			m := transform.Mul(p.Transform)
			base := uint32(len(out.Vertices))
			for i, v := range p.Vertices {
				var uv [2]float32
				if i < len(p.UVs) {
					uv = p.UVs[i]
				}
				w := m.TransformPoint(v[0], v[1])
				out.Vertices = append(out.Vertices, Vertex{Pos: [2]float32{w.X, w.Y}, UV: uv, TileIndex: ti})
			}
			n := len(p.Vertices)
			for _, t := range p.Indices {
				if !inRange(t, n) {
					continue
				}
				out.Indices = append(out.Indices, base+uint32(t[0]), base+uint32(t[1]), base+uint32(t[2]))
				b.meta = append(b.meta, triMeta{layer: p.Layer, prio: prio, ord: ord})
				ord++
			}
		})
		return true
	})

	store.Range(func(_ uuid.UUID, ch *scene.Chunk) bool {
		ch.EachLineStrip(func(ls *scene.LineStrip2D) {
			if !ls.Visible || len(ls.Points) < 2 {
				return
			}
			ti, ok := tiles.TileIndex(ls.TileID)
			if !ok {
				return
			}
			b.pts = b.pts[:0]
			for _, p := range ls.Points {
				w := transform.TransformPoint(p[0], p[1])
				b.pts = append(b.pts, [2]float32{w.X, w.Y})
			}
			half := 0.5 * max(ls.WidthPx, 0)
			for s := 0; s+1 < len(b.pts); s++ {
				p0, p1 := b.pts[s], b.pts[s+1]
				dx, dy := p1[0]-p0[0], p1[1]-p0[1]
				l := math32.Sqrt(dx*dx + dy*dy)
				if l < segmentEpsilon {
					continue
				}
				ox, oy := -dy/l*half, dx/l*half
				base := uint32(len(out.Vertices))
				out.Vertices = append(out.Vertices,
					Vertex{Pos: [2]float32{p0[0] - ox, p0[1] - oy}, UV: [2]float32{0, 0}, TileIndex: ti},
					Vertex{Pos: [2]float32{p0[0] + ox, p0[1] + oy}, UV: [2]float32{0, 1}, TileIndex: ti},
					Vertex{Pos: [2]float32{p1[0] + ox, p1[1] + oy}, UV: [2]float32{1, 1}, TileIndex: ti},
					Vertex{Pos: [2]float32{p1[0] - ox, p1[1] - oy}, UV: [2]float32{1, 0}, TileIndex: ti},
				)
				out.Indices = append(out.Indices, base, base+1, base+2, base, base+2, base+3)
				b.meta = append(b.meta,
					triMeta{layer: ls.Layer, ord: ord},
					triMeta{layer: ls.Layer, ord: ord + 1},
				)
				ord += 2
			}
		})
		return true
	})

	out.Triangles = len(out.Indices) / 3
	b.bin(out, fbW, fbH)
	return out
}

// bin assigns every triangle of out to the tiles its clamped pixel
// bounding box overlaps.
func (b *Batcher) bin(out *Batch, fbW, fbH uint32) {
	tilesX := max((fbW+TileWidth-1)/TileWidth, 1)
	tilesY := max((fbH+TileHeight-1)/TileHeight, 1)
	out.TilesX, out.TilesY = tilesX, tilesY
	n := int(tilesX * tilesY)

	if cap(b.bins) < n {
		b.bins = make([][]triRef, n)
	}
	b.bins = b.bins[:n]
	for i := range b.bins {
		b.bins[i] = b.bins[i][:0]
	}

	fw, fh := float32(fbW), float32(fbH)
	for t := 0; t < out.Triangles; t++ {
		pa := out.Vertices[out.Indices[3*t]].Pos
		pb := out.Vertices[out.Indices[3*t+1]].Pos
		pc := out.Vertices[out.Indices[3*t+2]].Pos

		minX := toPixel(max(math32.Floor(min(pa[0], pb[0], pc[0])), 0))
		maxX := toPixel(min(math32.Ceil(max(pa[0], pb[0], pc[0])), fw))
		minY := toPixel(max(math32.Floor(min(pa[1], pb[1], pc[1])), 0))
		maxY := toPixel(min(math32.Ceil(max(pa[1], pb[1], pc[1])), fh))
		if minX >= maxX || minY >= maxY {
			continue
		}

		tx0, ty0 := uint32(minX)/TileWidth, uint32(minY)/TileHeight
		tx1, ty1 := uint32(maxX-1)/TileWidth, uint32(maxY-1)/TileHeight
		ref := triRef{tri: uint32(t), triMeta: b.meta[t]}
		for ty := ty0; ty <= ty1; ty++ {
			for tx := tx0; tx <= tx1; tx++ {
				i := ty*tilesX + tx
				b.bins[i] = append(b.bins[i], ref)
			}
		}
	}

	out.Bins = make([]Bin, 0, n)
	var running uint32
	for _, refs := range b.bins {
		slices.SortFunc(refs, compareRefs)
		for _, r := range refs {
			out.TileTris = append(out.TileTris, r.tri)
		}
		out.Bins = append(out.Bins, Bin{Offset: running, Count: uint32(len(refs))})
		running += uint32(len(refs))
	}
	if len(out.TileTris) == 0 {
		out.TileTris = make([]uint32, minWords)
	}
}

// compareRefs orders references by layer, priority and insertion
// order, each descending.
func compareRefs(a, b triRef) int {
	if c := cmp.Compare(b.layer, a.layer); c != 0 {
		return c
	}
	if c := cmp.Compare(b.prio, a.prio); c != 0 {
		return c
	}
	return cmp.Compare(b.ord, a.ord)
}

// toPixel converts a clamped float bound to an integer pixel. NaN maps
// to 0, which makes the box degenerate.
func toPixel(v float32) int64 {
	if v != v {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int64(v)
}

func inRange(t [3]int, n int) bool {
	return t[0] >= 0 && t[0] < n && t[1] >= 0 && t[1] < n && t[2] >= 0 && t[2] < n
}
