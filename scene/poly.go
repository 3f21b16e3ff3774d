package scene

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
)

// Poly2D is a triangulated 2D polygon owned by a chunk. Indices are
// local to the polygon's vertex list. Transform is applied before the
// layer's global 2D transform when batching.
type Poly2D struct {
	ID        GeoID        `json:"id"`
	TileID    uuid.UUID    `json:"tile_id"`
	Vertices  [][2]float32 `json:"vertices"`
	UVs       [][2]float32 `json:"uvs"`
	Indices   [][3]int     `json:"indices"`
	Transform geom.Mat3    `json:"transform"`
	Layer     int32        `json:"layer"`
	Visible   bool         `json:"visible"`
}

// NewPoly2D returns a visible polygon with an identity transform.
func NewPoly2D(id GeoID, tile uuid.UUID, vertices, uvs [][2]float32, indices [][3]int) *Poly2D {
	return &Poly2D{
		ID:        id,
		TileID:    tile,
		Vertices:  vertices,
		UVs:       uvs,
		Indices:   indices,
		Transform: geom.Identity3(),
		Visible:   true,
	}
}

var quadUVs = [4][2]float32{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

// LinePoly2D tessellates points into one world-width quad per segment
// (no caps or joins). Zero-length segments are skipped. It returns nil
// when no segment survives.
func LinePoly2D(id GeoID, tile uuid.UUID, points [][2]float32, width float32, layer int32) *Poly2D {
	if len(points) < 2 {
		return nil
	}
	half := 0.5 * width
	n := len(points) - 1
	verts := make([][2]float32, 0, n*4)
	uvs := make([][2]float32, 0, n*4)
	idx := make([][3]int, 0, n*2)

	for i := 0; i < n; i++ {
		p0, p1 := points[i], points[i+1]
		dx, dy := p1[0]-p0[0], p1[1]-p0[1]
		l := math32.Sqrt(dx*dx + dy*dy)
		if l == 0 {
			continue
		}
		ox, oy := -dy/l*half, dx/l*half
		base := len(verts)
		verts = append(verts,
			[2]float32{p0[0] - ox, p0[1] - oy},
			[2]float32{p0[0] + ox, p0[1] + oy},
			[2]float32{p1[0] + ox, p1[1] + oy},
			[2]float32{p1[0] - ox, p1[1] - oy},
		)
		uvs = append(uvs, quadUVs[:]...)
		idx = append(idx, [3]int{base, base + 1, base + 2}, [3]int{base, base + 2, base + 3})
	}
	if len(verts) == 0 {
		return nil
	}
	p := NewPoly2D(id, tile, verts, uvs, idx)
	p.Layer = layer
	return p
}

// SquarePoly2D returns an axis-aligned square centered at center with
// the given edge length, or nil if size <= 0.
func SquarePoly2D(id GeoID, tile uuid.UUID, center [2]float32, size float32, layer int32, visible bool) *Poly2D {
	if size <= 0 {
		return nil
	}
	h := 0.5 * size
	x0, x1 := center[0]-h, center[0]+h
	y0, y1 := center[1]-h, center[1]+h
	p := NewPoly2D(id, tile,
		[][2]float32{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}},
		[][2]float32{{0, 0}, {0, 1}, {1, 1}, {1, 0}},
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	)
	p.Layer = layer
	p.Visible = visible
	return p
}

// LineStrip2D is a polyline whose width is given in screen pixels. It
// is expanded into quads after the 2D transform is applied.
type LineStrip2D struct {
	ID      GeoID        `json:"id"`
	TileID  uuid.UUID    `json:"tile_id"`
	Points  [][2]float32 `json:"points"`
	WidthPx float32      `json:"width_px"`
	Layer   int32        `json:"layer"`
	Visible bool         `json:"visible"`
}

// Poly3D is a triangulated 3D polygon. Vertices are homogeneous
// (x, y, z, w). TileID2 and BlendWeights optionally blend a second tile
// per vertex (0 = primary, 1 = secondary).
type Poly3D struct {
	ID           GeoID        `json:"id"`
	TileID       uuid.UUID    `json:"tile_id"`
	Vertices     [][4]float32 `json:"vertices"`
	UVs          [][2]float32 `json:"uvs"`
	Indices      [][3]int     `json:"indices"`
	Layer        int32        `json:"layer"`
	Visible      bool         `json:"visible"`
	TileID2      *uuid.UUID   `json:"tile_id2,omitempty"`
	BlendWeights []float32    `json:"blend_weights,omitempty"`
}

// NewPoly3D returns a visible 3D polygon on layer 0.
func NewPoly3D(id GeoID, tile uuid.UUID, vertices [][4]float32, uvs [][2]float32, indices [][3]int) *Poly3D {
	return &Poly3D{
		ID:       id,
		TileID:   tile,
		Vertices: vertices,
		UVs:      uvs,
		Indices:  indices,
		Visible:  true,
	}
}

// HasBlend reports whether the polygon carries usable blend data.
func (p *Poly3D) HasBlend() bool {
	return p.TileID2 != nil && len(p.BlendWeights) == len(p.Vertices)
}

// Unit cube corners per face, CCW when seen from outside.
var boxFaces = [24][3]float32{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1}, // -Z
	{-1, -1, 1}, {-1, 1, 1}, {1, 1, 1}, {1, -1, 1}, // +Z
	{-1, -1, 1}, {-1, -1, -1}, {-1, 1, -1}, {-1, 1, 1}, // -X
	{1, -1, -1}, {1, -1, 1}, {1, 1, 1}, {1, 1, -1}, // +X
	{-1, 1, -1}, {1, 1, -1}, {1, 1, 1}, {-1, 1, 1}, // +Y
	{-1, -1, 1}, {1, -1, 1}, {1, -1, -1}, {-1, -1, -1}, // -Y
}

// BoxPoly3D returns an axis-aligned box with 24 vertices (4 per face)
// and 12 triangles.
func BoxPoly3D(id GeoID, tile uuid.UUID, center geom.Vec3, sx, sy, sz float32) *Poly3D {
	hx, hy, hz := 0.5*sx, 0.5*sy, 0.5*sz
	verts := make([][4]float32, 0, 24)
	for _, c := range boxFaces {
		verts = append(verts, [4]float32{center.X + c[0]*hx, center.Y + c[1]*hy, center.Z + c[2]*hz, 1})
	}
	uvs := make([][2]float32, 0, 24)
	idx := make([][3]int, 0, 12)
	for f := 0; f < 6; f++ {
		uvs = append(uvs, [2]float32{0, 0}, [2]float32{1, 0}, [2]float32{1, 1}, [2]float32{0, 1})
		b := f * 4
		idx = append(idx, [3]int{b, b + 1, b + 2}, [3]int{b, b + 2, b + 3})
	}
	return NewPoly3D(id, tile, verts, uvs, idx)
}

// CubePoly3D returns a cube with the given edge length.
func CubePoly3D(id GeoID, tile uuid.UUID, center geom.Vec3, size float32) *Poly3D {
	return BoxPoly3D(id, tile, center, size, size, size)
}

// SpherePoly3D returns a UV sphere. stacks and slices are raised to at
// least 2 and 3.
func SpherePoly3D(id GeoID, tile uuid.UUID, center geom.Vec3, radius float32, stacks, slices int) *Poly3D {
	stacks = max(stacks, 2)
	slices = max(slices, 3)
	verts := make([][4]float32, 0, (stacks+1)*(slices+1))
	uvs := make([][2]float32, 0, (stacks+1)*(slices+1))
	for st := 0; st <= stacks; st++ {
		v := float32(st) / float32(stacks)
		phi := v * math32.Pi
		for sl := 0; sl <= slices; sl++ {
			u := float32(sl) / float32(slices)
			theta := u * 2 * math32.Pi
			x := math32.Sin(theta) * math32.Sin(phi)
			y := math32.Cos(phi)
			z := math32.Cos(theta) * math32.Sin(phi)
			verts = append(verts, [4]float32{center.X + x*radius, center.Y + y*radius, center.Z + z*radius, 1})
			uvs = append(uvs, [2]float32{u, v})
		}
	}
	idx := make([][3]int, 0, stacks*slices*2)
	for st := 0; st < stacks; st++ {
		for sl := 0; sl < slices; sl++ {
			first := st*(slices+1) + sl
			second := first + slices + 1
			idx = append(idx, [3]int{first, second + 1, second}, [3]int{first, first + 1, second + 1})
		}
	}
	return NewPoly3D(id, tile, verts, uvs, idx)
}
