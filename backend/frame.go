package backend

import (
	"math"

	"github.com/gogpu/scenevm/atlas"
	"github.com/gogpu/scenevm/binning"
	"github.com/gogpu/scenevm/bvh"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/dynamic"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// Region is a dispatch rectangle in pixels.
type Region struct {
	X, Y, W, H uint32
}

// Empty reports whether r covers no pixels.
func (r Region) Empty() bool { return r.W == 0 || r.H == 0 }

// AtlasUpload carries new atlas pixels. Frames carry one only when the
// atlas layout changed since the previous dispatch.
type AtlasUpload struct {
	Width, Height uint32
	Color         []byte
	Material      []byte
}

// Size returns the number of bytes to upload.
func (u *AtlasUpload) Size() int {
	if u == nil {
		return 0
	}
	return len(u.Color) + len(u.Material)
}

// UniformWords is the size of packed Uniforms in 32-bit words.
const UniformWords = 4 + 4 + 4 + 4*scene.GPSlots + 12 + 12 + 16 + 20 + 4*scene.PaletteSize

// Uniforms is the per-dispatch constant block shared by every mode.
type Uniforms struct {
	Background  geom.Vec4
	FBSize      [2]uint32
	Anim        uint32
	LightsCount uint32
	// Viewport is x, y, width, height of the 2D/SDF dispatch.
	Viewport    [4]float32
	GP          [scene.GPSlots]geom.Vec4
	Transform2D geom.Mat3
	Inverse2D   geom.Mat3
	Transform3D geom.Mat4
	Camera      scene.Camera3D
	AtlasSize   [2]uint32
	Palette     [scene.PaletteSize]geom.Vec4
}

// Words packs u into its std140-style GPU layout. 3×3 matrices are
// stored as three padded columns.
func (u *Uniforms) Words() []uint32 {
	f := math.Float32bits
	w := make([]uint32, 0, UniformWords)
	vec4 := func(v geom.Vec4) {
		w = append(w, f(v.X), f(v.Y), f(v.Z), f(v.W))
	}

	vec4(u.Background)
	w = append(w, u.FBSize[0], u.FBSize[1], u.Anim, u.LightsCount)
	w = append(w, f(u.Viewport[0]), f(u.Viewport[1]), f(u.Viewport[2]), f(u.Viewport[3]))
	for _, v := range u.GP {
		vec4(v)
	}
	for _, c := range u.Transform2D.Columns() {
		vec4(c)
	}
	for _, c := range u.Inverse2D.Columns() {
		vec4(c)
	}
	for _, c := range u.Transform3D.Columns() {
		vec4(c)
	}

	cam := u.Camera
	w = append(w,
		f(cam.Pos.X), f(cam.Pos.Y), f(cam.Pos.Z), uint32(cam.Kind),
		f(cam.Forward.X), f(cam.Forward.Y), f(cam.Forward.Z), f(cam.VFovDeg),
		f(cam.Right.X), f(cam.Right.Y), f(cam.Right.Z), f(cam.OrthoHalfH),
		f(cam.Up.X), f(cam.Up.Y), f(cam.Up.Z), f(cam.Near),
		f(cam.Far), u.AtlasSize[0], u.AtlasSize[1], 0,
	)
	for _, v := range u.Palette {
		vec4(v)
	}
	return w
}

// Frame2D is everything a 2D dispatch reads.
type Frame2D struct {
	Surfaces compositor.Frame
	Region   Region
	Source   string
	Uniforms Uniforms

	Batch *binning.Batch
	Tiles atlas.GPUTables
	Scene *dynamic.Blob
	Atlas *AtlasUpload
}

// Frame3D is everything a 3D dispatch reads. Grid and GridData are the
// packed tree and visibility mask of Accel.
type Frame3D struct {
	Surfaces compositor.Frame
	Source   string
	Uniforms Uniforms

	Geometry *bvh.Geometry
	Accel    *bvh.Accel
	Grid     bvh.GridHeader
	GridData []uint32
	Tiles    atlas.GPUTables
	Scene    *dynamic.Blob
	Atlas    *AtlasUpload
}

// FrameSDF is everything an SDF dispatch reads.
type FrameSDF struct {
	Surfaces compositor.Frame
	Region   Region
	Source   string
	Uniforms Uniforms

	Data  []geom.Vec4
	Tiles atlas.GPUTables
	Scene *dynamic.Blob
	Atlas *AtlasUpload
}

// DataWords packs the SDF data, padded to one vec4.
func (f *FrameSDF) DataWords() []uint32 {
	if len(f.Data) == 0 {
		return make([]uint32, 4)
	}
	out := make([]uint32, 0, 4*len(f.Data))
	for _, v := range f.Data {
		out = append(out, math.Float32bits(v.X), math.Float32bits(v.Y), math.Float32bits(v.Z), math.Float32bits(v.W))
	}
	return out
}

// TileWords packs the atlas tables: per tile first frame and count,
// followed by x, y, w, h per frame. Both halves are padded to one word.
func TileWords(t atlas.GPUTables) (metas, frames []uint32) {
	metas = make([]uint32, 0, max(2*len(t.Metas), 4))
	for _, m := range t.Metas {
		metas = append(metas, m.FirstFrame, m.FrameCount)
	}
	frames = make([]uint32, 0, max(4*len(t.Frames), 4))
	for _, e := range t.Frames {
		frames = append(frames, e.X, e.Y, e.W, e.H)
	}
	if len(metas) == 0 {
		metas = append(metas, 0, 0, 0, 0)
	}
	if len(frames) == 0 {
		frames = append(frames, 0, 0, 0, 0)
	}
	return metas, frames
}

// Vertex2DWords packs 2D vertices as pos, uv, tile index and padding.
func Vertex2DWords(vs []binning.Vertex) []uint32 {
	out := make([]uint32, 0, max(6*len(vs), 4))
	for _, v := range vs {
		out = append(out,
			math.Float32bits(v.Pos[0]), math.Float32bits(v.Pos[1]),
			math.Float32bits(v.UV[0]), math.Float32bits(v.UV[1]),
			v.TileIndex, 0,
		)
	}
	if len(out) == 0 {
		out = append(out, 0, 0, 0, 0)
	}
	return out
}

// BinWords packs tile bins as offset, count pairs.
func BinWords(bins []binning.Bin) []uint32 {
	out := make([]uint32, 0, max(2*len(bins), 4))
	for _, b := range bins {
		out = append(out, b.Offset, b.Count)
	}
	if len(out) == 0 {
		out = append(out, 0, 0, 0, 0)
	}
	return out
}

// PadWords returns w, or four zero words if w is empty.
func PadWords(w []uint32) []uint32 {
	if len(w) == 0 {
		return make([]uint32, 4)
	}
	return w
}
