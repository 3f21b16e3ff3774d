package scene

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
)

// GridPos is an integer chunk origin on the world grid.
type GridPos struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Rect2D is an axis-aligned 2D box.
type Rect2D struct {
	MinX, MinY, MaxX, MaxY float32
}

// Chunk groups the 2D polygons, 3D polygons and pixel-width line
// strips of one region of the world. Priority breaks compositing ties
// between chunks in the 2D tile bins.
type Chunk struct {
	Origin   GridPos
	Size     int32
	Bounds   Rect2D
	Priority int32

	polys2D ordered[GeoID, *Poly2D]
	polys3D ordered[GeoID, []*Poly3D]
	lines   ordered[GeoID, *LineStrip2D]
}

// NewChunk returns an empty chunk at origin covering size×size cells.
func NewChunk(origin GridPos, size int32) *Chunk {
	c := &Chunk{
		Origin: origin,
		Size:   size,
		Bounds: Rect2D{
			MinX: float32(origin.X),
			MinY: float32(origin.Y),
			MaxX: float32(origin.X) + float32(size),
			MaxY: float32(origin.Y) + float32(size),
		},
	}
	c.init()
	return c
}

func (c *Chunk) init() {
	if c.polys2D.index == nil {
		c.polys2D = newOrdered[GeoID, *Poly2D]()
		c.polys3D = newOrdered[GeoID, []*Poly3D]()
		c.lines = newOrdered[GeoID, *LineStrip2D]()
	}
}

// AddPoly2D inserts or replaces the 2D polygon with p.ID.
func (c *Chunk) AddPoly2D(p *Poly2D) {
	if p == nil {
		return
	}
	c.init()
	c.polys2D.Set(p.ID, p)
}

// AddPoly3D appends p to the list of 3D polygons owned by p.ID.
func (c *Chunk) AddPoly3D(p *Poly3D) {
	if p == nil {
		return
	}
	c.init()
	list, _ := c.polys3D.Get(p.ID)
	c.polys3D.Set(p.ID, append(list, p))
}

// AddPoly3DBlended appends a polygon that blends tile and tile2 using
// per-vertex weights.
func (c *Chunk) AddPoly3DBlended(id GeoID, tile, tile2 uuid.UUID, vertices [][4]float32, uvs [][2]float32,
	weights []float32, indices [][3]int, layer int32, visible bool,
) {
	p := NewPoly3D(id, tile, vertices, uvs, indices)
	p.TileID2 = &tile2
	p.BlendWeights = weights
	p.Layer = layer
	p.Visible = visible
	c.AddPoly3D(p)
}

// AddSquare2D inserts an axis-aligned square. Non-positive sizes are
// ignored.
func (c *Chunk) AddSquare2D(id GeoID, tile uuid.UUID, center [2]float32, size float32, layer int32, visible bool) {
	c.AddPoly2D(SquarePoly2D(id, tile, center, size, layer, visible))
}

// AddLineStrip2D inserts a world-width line strip tessellated into
// quads. Strips with fewer than two points or only zero-length
// segments are ignored.
func (c *Chunk) AddLineStrip2D(id GeoID, tile uuid.UUID, points [][2]float32, width float32, layer int32) {
	c.AddPoly2D(LinePoly2D(id, tile, points, width, layer))
}

// AddLineStrip2DPx inserts a line strip whose width is in screen
// pixels. Strips with fewer than two points are ignored.
func (c *Chunk) AddLineStrip2DPx(id GeoID, tile uuid.UUID, points [][2]float32, widthPx float32, layer int32) {
	if len(points) < 2 {
		return
	}
	c.AddLineStrip(&LineStrip2D{
		ID:      id,
		TileID:  tile,
		Points:  points,
		WidthPx: widthPx,
		Layer:   layer,
		Visible: true,
	})
}

// AddLineStrip inserts or replaces a pixel-width line strip as given.
func (c *Chunk) AddLineStrip(l *LineStrip2D) {
	if l == nil || len(l.Points) < 2 {
		return
	}
	c.init()
	c.lines.Set(l.ID, l)
}

// AddBillboard3D appends a square quad of edge size spanned by the
// sanitized view axes.
func (c *Chunk) AddBillboard3D(id GeoID, tile uuid.UUID, center, viewRight, viewUp geom.Vec3, size float32, visible bool) {
	if !geom.IsFinite(size) || size <= 0 {
		return
	}
	r, u := geom.SanitizeBillboardAxes(viewRight, viewUp)
	h := 0.5 * size
	rh, uh := r.Mul(h), u.Mul(h)
	p0 := center.Sub(rh).Sub(uh)
	p1 := center.Add(rh).Sub(uh)
	p2 := center.Add(rh).Add(uh)
	p3 := center.Sub(rh).Add(uh)
	p := NewPoly3D(id, tile,
		[][4]float32{point4(p0), point4(p1), point4(p2), point4(p3)},
		[][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	)
	p.Visible = visible
	c.AddPoly3D(p)
}

// AddLine3D appends a thin quad from a to b, extended by half the
// thickness at both ends. normal picks the quad's facing; it is
// replaced by the axis least aligned with the segment when it is
// unusable or nearly parallel to it.
func (c *Chunk) AddLine3D(id GeoID, tile uuid.UUID, a, b geom.Vec3, thickness float32, normal geom.Vec3, layer int32) {
	dir := b.Sub(a)
	dl := dir.Length()
	if dl < 1e-6 || !geom.IsFinite(dl) {
		return
	}
	d := dir.Mul(1 / dl)

	n := geom.V3(0, 1, 0)
	if nl := normal.Length(); nl >= 1e-6 && geom.IsFinite(nl) {
		n = normal.Mul(1 / nl)
	}
	if math32.Abs(d.Dot(n)) > 0.999 {
		ax, ay, az := math32.Abs(d.X), math32.Abs(d.Y), math32.Abs(d.Z)
		switch {
		case ax <= ay && ax <= az:
			n = geom.V3(1, 0, 0)
		case ay <= az:
			n = geom.V3(0, 1, 0)
		default:
			n = geom.V3(0, 0, 1)
		}
	}

	side := n.Cross(d)
	if !side.IsFinite() || side.Length() < 1e-6 {
		side = d.Cross(geom.V3(0, 1, 0))
		if side.Length() < 1e-6 {
			side = d.Cross(geom.V3(1, 0, 0))
		}
	}
	half := side.Normalize().Mul(thickness * 0.5)
	capv := d.Mul(thickness * 0.5)
	ae, be := a.Sub(capv), b.Add(capv)

	p := NewPoly3D(id, tile,
		[][4]float32{point4(ae.Sub(half)), point4(ae.Add(half)), point4(be.Add(half)), point4(be.Sub(half))},
		[][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	)
	p.Layer = layer
	c.AddPoly3D(p)
}

func point4(v geom.Vec3) [4]float32 {
	return [4]float32{v.X, v.Y, v.Z, 1}
}

// Poly2D returns the 2D polygon with id.
func (c *Chunk) Poly2D(id GeoID) (*Poly2D, bool) {
	return c.polys2D.Get(id)
}

// Polys3D returns the 3D polygons owned by id.
func (c *Chunk) Polys3D(id GeoID) []*Poly3D {
	l, _ := c.polys3D.Get(id)
	return l
}

// LineStrip returns the pixel-width line strip with id.
func (c *Chunk) LineStrip(id GeoID) (*LineStrip2D, bool) {
	return c.lines.Get(id)
}

// RemoveGeometry deletes every 2D polygon, 3D polygon and line strip
// owned by id. It reports which kinds were removed.
func (c *Chunk) RemoveGeometry(id GeoID) (removed2D, removed3D bool) {
	removed2D = c.polys2D.Delete(id)
	if c.lines.Delete(id) {
		removed2D = true
	}
	removed3D = c.polys3D.Delete(id)
	return removed2D, removed3D
}

// SetVisible updates the visibility of everything owned by id and
// reports which kinds were touched.
func (c *Chunk) SetVisible(id GeoID, visible bool) (touched2D, touched3D bool) {
	if p, ok := c.polys2D.Get(id); ok {
		p.Visible = visible
		touched2D = true
	}
	if l, ok := c.lines.Get(id); ok {
		l.Visible = visible
		touched2D = true
	}
	if list, ok := c.polys3D.Get(id); ok {
		for _, p := range list {
			p.Visible = visible
		}
		touched3D = true
	}
	return touched2D, touched3D
}

// EachPoly2D calls fn for every 2D polygon in insertion order.
func (c *Chunk) EachPoly2D(fn func(*Poly2D)) {
	c.polys2D.All(func(_ GeoID, p *Poly2D) bool {
		fn(p)
		return true
	})
}

// EachPoly3D calls fn for every 3D polygon in insertion order.
func (c *Chunk) EachPoly3D(fn func(*Poly3D)) {
	c.polys3D.All(func(_ GeoID, list []*Poly3D) bool {
		for _, p := range list {
			fn(p)
		}
		return true
	})
}

// EachLineStrip calls fn for every pixel-width line strip in insertion
// order.
func (c *Chunk) EachLineStrip(fn func(*LineStrip2D)) {
	c.lines.All(func(_ GeoID, l *LineStrip2D) bool {
		fn(l)
		return true
	})
}

// Counts returns the number of 2D polygons, 3D polygons and line strips.
func (c *Chunk) Counts() (polys2D, polys3D, lines int) {
	c.polys3D.All(func(_ GeoID, list []*Poly3D) bool {
		polys3D += len(list)
		return true
	})
	return c.polys2D.Len(), polys3D, c.lines.Len()
}

// IsEmpty reports whether the chunk holds no geometry.
func (c *Chunk) IsEmpty() bool {
	return c.polys2D.Len() == 0 && c.polys3D.Len() == 0 && c.lines.Len() == 0
}
