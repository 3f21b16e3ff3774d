package backend

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"github.com/gogpu/scenevm/atlas"
	"github.com/gogpu/scenevm/binning"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/dynamic"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// Backend name constants.
const (
	// BackendCapture is the name of the CPU reference backend.
	BackendCapture = "capture"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
)

// init registers the capture backend on package import.
func init() {
	Register(BackendCapture, func() ComputeBackend {
		return NewCapture()
	})
}

// Surface is an RGBA surface owned by a Capture backend.
type Surface struct {
	img   *image.RGBA
	owner *Capture
}

// Size returns the surface dimensions.
func (s *Surface) Size() (uint32, uint32) {
	b := s.img.Bounds()
	return uint32(b.Dx()), uint32(b.Dy())
}

// Image returns the backing image.
func (s *Surface) Image() *image.RGBA { return s.img }

// DispatchStats describes the most recent dispatch.
type DispatchStats struct {
	Mode        scene.RenderMode
	Triangles   int
	Pixels      int
	Covered     int
	UploadBytes int
	SceneWords  int
}

// Capture is a CPU backend. It records every payload and shades the
// default programs: the 2D pass writes the first opaque texel found in
// each pixel's tile bin, the 3D pass writes the texel of the closest
// visible triangle. SDF programs are user code and leave the cleared
// surface untouched. Capture is deterministic, which makes it the
// backend of choice for tests and replays.
type Capture struct {
	mu          sync.Mutex
	initialized bool
	log         *slog.Logger

	atlasW, atlasH uint32
	atlasColor     []byte

	live       int
	dispatches int
	last       DispatchStats
}

// NewCapture returns an uninitialized capture backend.
func NewCapture() *Capture {
	return &Capture{log: slog.New(slog.DiscardHandler)}
}

// Name returns the backend identifier.
func (c *Capture) Name() string { return BackendCapture }

// Init initializes the backend.
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = true
	return nil
}

// Close releases all backend resources.
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	c.atlasColor = nil
}

// SetLogger sets the logger for dispatch diagnostics.
func (c *Capture) SetLogger(l *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.log = l
}

// NewSurface allocates a w×h surface.
func (c *Capture) NewSurface(w, h uint32) (compositor.Surface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	c.live++
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, int(max(w, 1)), int(max(h, 1)))), owner: c}, nil
}

// ClearSurface fills s with col.
func (c *Capture) ClearSurface(s compositor.Surface, col geom.Vec4) error {
	cs, err := c.own(s)
	if err != nil {
		return err
	}
	draw.Draw(cs.img, cs.img.Bounds(), image.NewUniform(toRGBA(col)), image.Point{}, draw.Src)
	return nil
}

// ReleaseSurface drops s.
func (c *Capture) ReleaseSurface(s compositor.Surface) {
	if _, err := c.own(s); err != nil {
		return
	}
	c.mu.Lock()
	c.live--
	c.mu.Unlock()
}

// ReadPixels returns a copy of the surface pixels.
func (c *Capture) ReadPixels(s compositor.Surface) ([]byte, error) {
	cs, err := c.own(s)
	if err != nil {
		return nil, err
	}
	return slices.Clone(cs.img.Pix), nil
}

// LiveSurfaces returns the number of allocated, unreleased surfaces.
func (c *Capture) LiveSurfaces() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Dispatches returns the number of successful dispatches.
func (c *Capture) Dispatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatches
}

// Last returns the stats of the most recent dispatch.
func (c *Capture) Last() DispatchStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Dispatch2D shades f.
func (c *Capture) Dispatch2D(f *Frame2D) error {
	dst, err := c.begin(f.Surfaces.Write)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	upload := c.uploadLocked(f.Atlas)

	st := DispatchStats{Mode: scene.Mode2D, UploadBytes: upload, SceneWords: blobWords(f.Scene)}
	region := clampRegion(f.Region, dst)
	st.Pixels = int(region.W * region.H)

	if b := f.Batch; b != nil {
		st.Triangles = b.TriangleCount()
		for py := region.Y; py < region.Y+region.H; py++ {
			for px := region.X; px < region.X+region.W; px++ {
				if c.shade2D(dst, b, f.Tiles, f.Uniforms.Anim, px, py) {
					st.Covered++
				}
			}
		}
	}
	c.finishLocked(st)
	return nil
}

func (c *Capture) shade2D(dst *image.RGBA, b *binning.Batch, tables atlas.GPUTables, anim, px, py uint32) bool {
	p := [2]float32{float32(px) + 0.5, float32(py) + 0.5}
	for _, t := range b.Bin(px/binning.TileWidth, py/binning.TileHeight) {
		va := b.Vertices[b.Indices[3*t]]
		vb := b.Vertices[b.Indices[3*t+1]]
		vc := b.Vertices[b.Indices[3*t+2]]
		l1, l2, l3, ok := barycentric(va.Pos, vb.Pos, vc.Pos, p)
		if !ok {
			continue
		}
		uv := [2]float32{
			l1*va.UV[0] + l2*vb.UV[0] + l3*vc.UV[0],
			l1*va.UV[1] + l2*vb.UV[1] + l3*vc.UV[1],
		}
		col, ok := c.sampleLocked(tables, va.TileIndex, uv, anim)
		if !ok || col.A == 0 {
			continue
		}
		dst.SetRGBA(int(px), int(py), col)
		return true
	}
	return false
}

// Dispatch3D shades f.
func (c *Capture) Dispatch3D(f *Frame3D) error {
	dst, err := c.begin(f.Surfaces.Write)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	upload := c.uploadLocked(f.Atlas)

	w, h := uint32(dst.Bounds().Dx()), uint32(dst.Bounds().Dy())
	st := DispatchStats{Mode: scene.Mode3D, UploadBytes: upload, SceneWords: blobWords(f.Scene), Pixels: int(w * h)}
	g, a := f.Geometry, f.Accel
	if g != nil && a != nil {
		st.Triangles = g.TriangleCount()
		accept := func(t int) bool { return t < len(g.Visible) && g.Visible[t] }
		fbW, fbH := f.Uniforms.FBSize[0], f.Uniforms.FBSize[1]
		if fbW == 0 || fbH == 0 {
			fbW, fbH = w, h
		}
		for py := uint32(0); py < h; py++ {
			for px := uint32(0); px < w; px++ {
				uv := [2]float32{(float32(px) + 0.5) / float32(w), (float32(py) + 0.5) / float32(h)}
				r := f.Uniforms.Camera.RayFromUV(fbW, fbH, uv)
				hit, ok := a.Intersect(g, r, math.MaxFloat32, accept)
				if !ok {
					continue
				}
				v0 := g.Vertices[g.Indices[3*hit.Tri]]
				v1 := g.Vertices[g.Indices[3*hit.Tri+1]]
				v2 := g.Vertices[g.Indices[3*hit.Tri+2]]
				l0 := 1 - hit.U - hit.V
				tuv := [2]float32{
					l0*v0.UV[0] + hit.U*v1.UV[0] + hit.V*v2.UV[0],
					l0*v0.UV[1] + hit.U*v1.UV[1] + hit.V*v2.UV[1],
				}
				col, ok := c.sampleLocked(f.Tiles, v0.TileIndex, tuv, f.Uniforms.Anim)
				if !ok {
					continue
				}
				dst.SetRGBA(int(px), int(py), col)
				st.Covered++
			}
		}
	}
	c.finishLocked(st)
	return nil
}

// DispatchSDF records f.
func (c *Capture) DispatchSDF(f *FrameSDF) error {
	dst, err := c.begin(f.Surfaces.Write)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	upload := c.uploadLocked(f.Atlas)
	region := clampRegion(f.Region, dst)
	c.finishLocked(DispatchStats{
		Mode:        scene.ModeSDF,
		Pixels:      int(region.W * region.H),
		UploadBytes: upload,
		SceneWords:  blobWords(f.Scene) + 4*len(f.Data),
	})
	return nil
}

func (c *Capture) begin(s compositor.Surface) (*image.RGBA, error) {
	c.mu.Lock()
	ok := c.initialized
	c.mu.Unlock()
	if !ok {
		return nil, ErrNotInitialized
	}
	cs, err := c.own(s)
	if err != nil {
		return nil, err
	}
	return cs.img, nil
}

func (c *Capture) own(s compositor.Surface) (*Surface, error) {
	cs, ok := s.(*Surface)
	if !ok || cs == nil || cs.owner != c {
		return nil, fmt.Errorf("%w: %T", ErrForeignSurface, s)
	}
	return cs, nil
}

func (c *Capture) uploadLocked(u *AtlasUpload) int {
	if u == nil {
		return 0
	}
	c.atlasW, c.atlasH = u.Width, u.Height
	c.atlasColor = slices.Clone(u.Color)
	c.log.Debug("capture: atlas upload",
		"size", fmt.Sprintf("%dx%d", u.Width, u.Height),
		"bytes", humanize.IBytes(uint64(u.Size())))
	return u.Size()
}

func (c *Capture) finishLocked(st DispatchStats) {
	c.dispatches++
	c.last = st
	c.log.Debug("capture: dispatch",
		"mode", st.Mode,
		"triangles", st.Triangles,
		"pixels", st.Pixels,
		"covered", st.Covered)
}

// sampleLocked returns the texel of tile at uv for animation frame anim.
func (c *Capture) sampleLocked(t atlas.GPUTables, tile uint32, uv [2]float32, anim uint32) (color.RGBA, bool) {
	if int(tile) >= len(t.Metas) {
		return color.RGBA{}, false
	}
	m := t.Metas[tile]
	if m.FrameCount == 0 {
		return color.RGBA{}, false
	}
	fi := m.FirstFrame + anim%m.FrameCount
	if int(fi) >= len(t.Frames) {
		return color.RGBA{}, false
	}
	e := t.Frames[fi]
	if !e.IsValid() {
		return color.RGBA{}, false
	}
	u := geom.Clamp(uv[0], 0, 1)
	v := geom.Clamp(uv[1], 0, 1)
	x := e.X + min(uint32(u*float32(e.W)), e.W-1)
	y := e.Y + min(uint32(v*float32(e.H)), e.H-1)
	if x >= c.atlasW || y >= c.atlasH {
		return color.RGBA{}, false
	}
	i := (int(y)*int(c.atlasW) + int(x)) * 4
	if i+4 > len(c.atlasColor) {
		return color.RGBA{}, false
	}
	p := c.atlasColor[i : i+4]
	return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}, true
}

// barycentric returns the weights of a, b and c at p, or false if p is
// outside the triangle or the triangle is degenerate.
func barycentric(a, b, c, p [2]float32) (l1, l2, l3 float32, ok bool) {
	det := (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	if det == 0 || !geom.IsFinite(det) {
		return 0, 0, 0, false
	}
	l1 = ((b[1]-c[1])*(p[0]-c[0]) + (c[0]-b[0])*(p[1]-c[1])) / det
	l2 = ((c[1]-a[1])*(p[0]-c[0]) + (a[0]-c[0])*(p[1]-c[1])) / det
	l3 = 1 - l1 - l2
	const eps = -1e-6
	return l1, l2, l3, l1 >= eps && l2 >= eps && l3 >= eps
}

func clampRegion(r Region, img *image.RGBA) Region {
	w, h := uint32(img.Bounds().Dx()), uint32(img.Bounds().Dy())
	if r.Empty() {
		return Region{W: w, H: h}
	}
	x0, y0 := min(r.X, w), min(r.Y, h)
	x1, y1 := min(r.X+r.W, w), min(r.Y+r.H, h)
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func blobWords(b *dynamic.Blob) int {
	if b == nil {
		return 0
	}
	return b.Len() / 4
}

func toRGBA(v geom.Vec4) color.RGBA {
	q := func(x float32) uint8 {
		return uint8(geom.Clamp(x, 0, 1)*255 + 0.5)
	}
	return color.RGBA{R: q(v.X), G: q(v.Y), B: q(v.Z), A: q(v.W)}
}
