package scenevm

import (
	"github.com/gogpu/scenevm/atlas"
	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/binning"
	"github.com/gogpu/scenevm/bvh"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/dynamic"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/pick"
	"github.com/gogpu/scenevm/scene"
)

// sharedAtlas is the atlas shared by every layer of a SceneVM, with the
// layout version last uploaded to the backend.
type sharedAtlas struct {
	*atlas.Atlas
	uploaded uint64
	synced   bool
}

// pending returns the pixels to upload, or nil when the backend already
// holds the current layout.
func (s *sharedAtlas) pending() (*backend.AtlasUpload, uint64) {
	v := s.LayoutVersion()
	if s.synced && v == s.uploaded {
		return nil, v
	}
	w, h := s.Size()
	return &backend.AtlasUpload{Width: w, Height: h, Color: s.Pixels(), Material: s.MaterialPixels()}, v
}

func (s *sharedAtlas) markUploaded(v uint64) {
	s.uploaded, s.synced = v, true
}

// Layer is the per-layer rendering context: its chunks, dynamic
// content, render state and the caches derived from them.
//
// Invalidation rules:
//   - dirty2D: 2D polygons, line strips, the 2D transform or the atlas
//     layout changed; the tile binning is rebuilt on the next 2D draw.
//     A framebuffer size change rebuilds it too.
//   - accelDirty: 3D polygons, the 3D transform, the leaf size or the
//     atlas layout changed; geometry is reflattened and the BVH rebuilt.
//   - visDirty: only visibility flags of 3D polygons changed; the
//     visibility mask is recomputed and the tree is kept.
type Layer struct {
	atlas   *sharedAtlas
	store   *scene.Store
	dyn     *dynamic.Layer
	batcher *binning.Batcher
	comp    *compositor.Compositor
	be      backend.ComputeBackend

	background  geom.Vec4
	gp          [scene.GPSlots]geom.Vec4
	palette     [scene.PaletteSize]geom.Vec4
	anim        uint64
	transform2D geom.Mat3
	transform3D geom.Mat4
	layer       int32
	mode        scene.RenderMode
	viewport    *[4]float32
	sdfData     []geom.Vec4
	source2D    string
	source3D    string
	sourceSDF   string
	camera      scene.Camera3D
	leafSize    int
	pingPong    bool
	enabled     bool

	dirty2D    bool
	accelDirty bool
	visDirty   bool
	pickDirty  bool

	tablesVersion uint64
	tablesValid   bool
	tiles         atlas.GPUTables

	batch          *binning.Batch
	batchW, batchH uint32

	geometry *bvh.Geometry
	accel    *bvh.Accel
	grid     bvh.GridHeader
	gridData []uint32

	pickTarget *pick.Target
}

func newLayer(a *sharedAtlas, be backend.ComputeBackend, leafSize int, pingPong bool, bg geom.Vec4) *Layer {
	l := &Layer{
		atlas:       a,
		store:       scene.NewStore(),
		dyn:         dynamic.New(),
		batcher:     binning.New(),
		comp:        compositor.New(be, pingPong),
		be:          be,
		background:  bg,
		transform2D: geom.Identity3(),
		transform3D: geom.Identity4(),
		camera:      scene.DefaultCamera(),
		leafSize:    max(leafSize, 1),
		pingPong:    pingPong,
		enabled:     true,
	}
	l.markAllDirty()
	return l
}

func (l *Layer) markAllDirty() {
	l.dirty2D = true
	l.accelDirty = true
	l.pickDirty = true
}

func (l *Layer) mark2DDirty() { l.dirty2D = true }

func (l *Layer) mark3DDirty() {
	l.accelDirty = true
	l.pickDirty = true
}

// Enabled reports whether Draw renders the layer.
func (l *Layer) Enabled() bool { return l.enabled }

// Mode returns the layer's render mode.
func (l *Layer) Mode() scene.RenderMode { return l.mode }

// Store returns the layer's chunk store.
func (l *Layer) Store() *scene.Store { return l.store }

// Dynamic returns the layer's lights and billboards.
func (l *Layer) Dynamic() *dynamic.Layer { return l.dyn }

// Camera returns the layer's 3D camera.
func (l *Layer) Camera() scene.Camera3D { return l.camera }

// AnimationCounter returns the layer's animation counter.
func (l *Layer) AnimationCounter() uint64 { return l.anim }

// Background returns the layer's clear color.
func (l *Layer) Background() geom.Vec4 { return l.background }

// GP returns general-purpose slot i, or zero for an out-of-range slot.
func (l *Layer) GP(i int) geom.Vec4 {
	if i < 0 || i >= scene.GPSlots {
		return geom.Vec4{}
	}
	return l.gp[i]
}

// Output returns the surface holding the layer's latest frame.
func (l *Layer) Output() compositor.Surface { return l.comp.Output() }

func (l *Layer) release() { l.comp.Release() }

// syncTables rebuilds the atlas layout if needed and refreshes the tile
// tables when the layout version moved. Tile indices change with the
// layout, so every geometry cache is invalidated too.
func (l *Layer) syncTables() {
	if built, dropped := l.atlas.EnsureBuilt(); built && dropped > 0 {
		slogger().Warn("scenevm: atlas frames did not fit", "dropped", dropped)
	}
	v := l.atlas.LayoutVersion()
	if l.tablesValid && v == l.tablesVersion {
		return
	}
	l.tiles = l.atlas.GPUTables()
	l.tablesVersion, l.tablesValid = v, true
	l.markAllDirty()
}

// uniforms returns the constant block of a w×h dispatch.
func (l *Layer) uniforms(w, h uint32, lights int) backend.Uniforms {
	inv, ok := l.transform2D.Inverse()
	if !ok {
		inv = geom.Identity3()
	}
	vp := [4]float32{0, 0, float32(w), float32(h)}
	if l.viewport != nil {
		vp = *l.viewport
	}
	aw, ah := l.atlas.Size()
	return backend.Uniforms{
		Background:  l.background,
		FBSize:      [2]uint32{w, h},
		Anim:        uint32(l.anim),
		LightsCount: uint32(lights),
		Viewport:    vp,
		GP:          l.gp,
		Transform2D: l.transform2D,
		Inverse2D:   inv,
		Transform3D: l.transform3D,
		Camera:      l.camera,
		AtlasSize:   [2]uint32{aw, ah},
		Palette:     l.palette,
	}
}

// region returns the 2D/SDF dispatch rectangle: the viewport clamped to
// the framebuffer, or the whole framebuffer.
func (l *Layer) region(w, h uint32) backend.Region {
	if l.viewport == nil {
		return backend.Region{W: w, H: h}
	}
	vp := *l.viewport
	x0 := uint32(geom.Clamp(vp[0], 0, float32(w)))
	y0 := uint32(geom.Clamp(vp[1], 0, float32(h)))
	x1 := uint32(geom.Clamp(vp[0]+vp[2], 0, float32(w)))
	y1 := uint32(geom.Clamp(vp[1]+vp[3], 0, float32(h)))
	if x1 <= x0 || y1 <= y0 {
		return backend.Region{X: x0, Y: y0}
	}
	return backend.Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// ensureBatch rebuilds the 2D batch when 2D state or the framebuffer
// size changed.
func (l *Layer) ensureBatch(w, h uint32) {
	if !l.dirty2D && l.batch != nil && l.batchW == w && l.batchH == h {
		return
	}
	l.batch = l.batcher.Build(l.store, l.atlas, l.transform2D, w, h)
	l.batchW, l.batchH = w, h
	l.dirty2D = false
	slogger().Debug("scenevm: 2d batch rebuilt",
		"vertices", len(l.batch.Vertices),
		"triangles", l.batch.TriangleCount(),
		"tiles", l.batch.TilesX*l.batch.TilesY)
}

// ensureAccel rebuilds the BVH after a geometry change, or only the
// visibility mask after a visibility toggle.
func (l *Layer) ensureAccel() {
	switch {
	case l.accelDirty || l.geometry == nil:
		l.geometry = bvh.Flatten(l.store, l.atlas, l.transform3D)
		l.accel = bvh.Build(l.geometry.Vertices, l.geometry.Indices, l.leafSize)
		l.grid, l.gridData = l.accel.Pack(l.geometry.VisibilityWords())
		l.accelDirty, l.visDirty = false, false
		slogger().Debug("scenevm: bvh rebuilt",
			"triangles", l.accel.TriCount,
			"nodes", l.accel.NodeCount,
			"leaf_size", l.leafSize)
	case l.visDirty:
		words := bvh.Visibility(l.store, l.atlas)
		for i := range l.geometry.Visible {
			l.geometry.Visible[i] = bvh.IsVisible(words, i)
		}
		l.grid, l.gridData = l.accel.Pack(words)
		l.visDirty = false
	}
}

// target returns the pick snapshot of the layer, rebuilding it after
// any 3D, visibility or billboard change.
func (l *Layer) target() *pick.Target {
	if l.pickDirty || l.pickTarget == nil {
		l.pickTarget = pick.NewTarget(l.store, l.transform3D, l.dyn.Objects())
		l.pickDirty = false
	}
	return l.pickTarget
}
