package atlas

import (
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Default atlas settings.
const (
	// DefaultSize is the default atlas edge length in pixels.
	DefaultSize = 4096
)

// DefaultMaterial is the material texel used when a tile has no
// material frame: roughness 7/15, metallic 0, opacity 15/15, emission 0
// and a flat normal.
var DefaultMaterial = [4]byte{7, 15, 128, 128}

// Entry is the pixel rectangle of one placed frame.
type Entry struct {
	X, Y, W, H uint32
}

// IsValid returns true if the entry has non-zero size.
func (e Entry) IsValid() bool {
	return e.W > 0 && e.H > 0
}

// Contains returns true if the pixel (x, y) lies inside the entry.
func (e Entry) Contains(x, y uint32) bool {
	return x >= e.X && x < e.X+e.W && y >= e.Y && y < e.Y+e.H
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry(%d,%d %dx%d)", e.X, e.Y, e.W, e.H)
}

// TileMeta locates a tile's frames in GPUTables.Frames.
type TileMeta struct {
	FirstFrame uint32
	FrameCount uint32
}

// GPUTables are the per-tile animation tables consumed by shaders. The
// i-th meta belongs to the tile whose TileIndex is i.
type GPUTables struct {
	Metas  []TileMeta
	Frames []Entry
}

// Tile is a registered tile with normalized frame buffers.
type Tile struct {
	W, H           uint32
	Frames         [][]byte
	MaterialFrames [][]byte
}

// Atlas is a tile registry plus its packed color and material atlases.
// It is safe for concurrent use; layers of one VM share a single Atlas.
type Atlas struct {
	mu sync.Mutex

	tiles map[uuid.UUID]*Tile
	order []uuid.UUID

	color    *image.RGBA
	material *image.RGBA

	layoutDirty bool
	version     uint64

	index      map[uuid.UUID]uint32
	placements map[uuid.UUID][]Entry
}

// New creates an empty atlas of the given size. Zero dimensions are
// raised to 1.
func New(width, height uint32) *Atlas {
	width, height = max(width, 1), max(height, 1)
	return &Atlas{
		tiles:       make(map[uuid.UUID]*Tile),
		color:       image.NewRGBA(image.Rect(0, 0, int(width), int(height))),
		material:    image.NewRGBA(image.Rect(0, 0, int(width), int(height))),
		layoutDirty: true,
		index:       make(map[uuid.UUID]uint32),
		placements:  make(map[uuid.UUID][]Entry),
	}
}

// Size returns the atlas dimensions in pixels.
func (a *Atlas) Size() (width, height uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sizeLocked()
}

func (a *Atlas) sizeLocked() (uint32, uint32) {
	b := a.color.Bounds()
	return uint32(b.Dx()), uint32(b.Dy())
}

// AddTile registers or replaces a tile. Frames are padded or truncated
// to width*height*4 bytes; missing material frames get the default
// material and surplus ones are dropped.
func (a *Atlas) AddTile(id uuid.UUID, width, height uint32, frames, materialFrames [][]byte) {
	need := int(width) * int(height) * 4
	norm := make([][]byte, len(frames))
	for i, f := range frames {
		norm[i] = fitFrame(f, need)
	}

	mats := make([][]byte, 0, len(norm))
	for i := 0; i < len(materialFrames) && i < len(norm); i++ {
		mats = append(mats, fitFrame(materialFrames[i], need))
	}
	for len(mats) < len(norm) {
		mats = append(mats, DefaultMaterialFrame(need))
	}
	if len(mats) == 0 {
		mats = append(mats, DefaultMaterialFrame(need))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tiles[id] = &Tile{W: width, H: height, Frames: norm, MaterialFrames: mats}
	if !slices.Contains(a.order, id) {
		a.order = append(a.order, id)
	}
	a.layoutDirty = true
}

// AddSolid registers a 1×1 tile of a single color with the default
// material.
func (a *Atlas) AddSolid(id uuid.UUID, color [4]byte) {
	a.AddTile(id, 1, 1, [][]byte{color[:]}, [][]byte{DefaultMaterial[:]})
}

// AddSolidWithMaterial registers a 1×1 tile with an explicit material
// texel (roughness/metallic, opacity/emission, normal x, normal y).
func (a *Atlas) AddSolidWithMaterial(id uuid.UUID, color, material [4]byte) {
	a.AddTile(id, 1, 1, [][]byte{color[:]}, [][]byte{material[:]})
}

// SetMaterialFrames replaces the material frames of an existing tile,
// normalized to the tile's size and frame count. It reports whether the
// tile exists.
func (a *Atlas) SetMaterialFrames(id uuid.UUID, frames [][]byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tiles[id]
	if !ok {
		return false
	}
	need := int(t.W) * int(t.H) * 4
	mats := make([][]byte, 0, len(t.Frames))
	for i := 0; i < len(frames) && i < len(t.Frames); i++ {
		mats = append(mats, fitFrame(frames[i], need))
	}
	for len(mats) < len(t.Frames) {
		mats = append(mats, DefaultMaterialFrame(need))
	}
	t.MaterialFrames = mats
	a.layoutDirty = true
	return true
}

// RemoveTile unregisters a tile. The layout is rebuilt on the next
// EnsureBuilt.
func (a *Atlas) RemoveTile(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tiles, id)
	a.order = slices.DeleteFunc(a.order, func(t uuid.UUID) bool { return t == id })
	delete(a.placements, id)
	a.layoutDirty = true
}

// Clear removes every tile and blanks both atlases.
func (a *Atlas) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.tiles)
	a.order = a.order[:0]
	clear(a.color.Pix)
	clear(a.material.Pix)
	clear(a.placements)
	a.layoutDirty = true
}

// Resize changes the atlas size. Resizing to the current size is a
// no-op; otherwise all placements and tile indices are dropped and the
// layout version is bumped.
func (a *Atlas) Resize(width, height uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, h := a.sizeLocked(); w == width && h == height {
		return
	}
	width, height = max(width, 1), max(height, 1)
	a.color = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	a.material = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	clear(a.placements)
	clear(a.index)
	a.layoutDirty = true
	a.version++
}

// LayoutVersion returns the current layout version. It changes on every
// relayout and every resize.
func (a *Atlas) LayoutVersion() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// TileCount returns the number of registered tiles.
func (a *Atlas) TileCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tiles)
}

// TileIndex returns the dense index of a placed tile.
func (a *Atlas) TileIndex(id uuid.UUID) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	return i, ok
}

// TileData returns a tile's size and a copy of its first frame.
func (a *Atlas) TileData(id uuid.UUID) (width, height uint32, rgba []byte, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tiles[id]
	if !ok {
		return 0, 0, nil, false
	}
	if len(t.Frames) > 0 {
		rgba = slices.Clone(t.Frames[0])
	}
	return t.W, t.H, rgba, true
}

// FrameRect returns the placement of animation frame anim of a tile.
// anim wraps around the tile's frame count.
func (a *Atlas) FrameRect(id uuid.UUID, anim uint32) (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frameRectLocked(id, anim)
}

func (a *Atlas) frameRectLocked(id uuid.UUID, anim uint32) (Entry, bool) {
	rects := a.placements[id]
	if len(rects) == 0 {
		return Entry{}, false
	}
	return rects[int(anim)%len(rects)], true
}

// SDFUV4 returns the normalized rectangle (offset x, offset y, scale x,
// scale y) of a tile frame, building the layout first if needed.
func (a *Atlas) SDFUV4(id uuid.UUID, anim uint32) ([4]float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.layoutDirty {
		a.buildLocked()
	}
	r, ok := a.frameRectLocked(id, anim)
	if !ok {
		return [4]float32{}, false
	}
	w, h := a.sizeLocked()
	fw, fh := float32(w), float32(h)
	return [4]float32{float32(r.X) / fw, float32(r.Y) / fh, float32(r.W) / fw, float32(r.H) / fh}, true
}

// GPUTables returns the animation tables of every placed tile in tile
// index order.
func (a *Atlas) GPUTables() GPUTables {
	a.mu.Lock()
	defer a.mu.Unlock()
	var t GPUTables
	for _, id := range a.order {
		rects := a.placements[id]
		if len(rects) == 0 {
			continue
		}
		if _, ok := a.index[id]; !ok {
			continue
		}
		t.Metas = append(t.Metas, TileMeta{FirstFrame: uint32(len(t.Frames)), FrameCount: uint32(len(rects))})
		t.Frames = append(t.Frames, rects...)
	}
	return t
}

// Pixels returns a copy of the color atlas (RGBA8, row-major).
func (a *Atlas) Pixels() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.color.Pix)
}

// MaterialPixels returns a copy of the material atlas.
func (a *Atlas) MaterialPixels() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.material.Pix)
}

// EnsureBuilt relayouts the atlas if any tile changed since the last
// build. It reports whether a build happened and how many frames did
// not fit.
func (a *Atlas) EnsureBuilt() (built bool, dropped int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.layoutDirty {
		return false, 0
	}
	return true, a.buildLocked()
}

// Build relayouts the atlas unconditionally and returns the number of
// frames that did not fit.
func (a *Atlas) Build() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildLocked()
}

func (a *Atlas) buildLocked() int {
	clear(a.color.Pix)
	clear(a.material.Pix)
	clear(a.placements)

	aw, ah := a.sizeLocked()
	var penX, penY, shelfH uint32
	dropped := 0

	for _, id := range a.order {
		t, ok := a.tiles[id]
		if !ok || t.W == 0 || t.H == 0 {
			continue
		}
		rects := make([]Entry, 0, len(t.Frames))
		for f := range t.Frames {
			if t.W > aw {
				break
			}
			if penX+t.W > aw {
				penX = 0
				penY += shelfH
				shelfH = 0
			}
			if penY+t.H > ah {
				break
			}
			shelfH = max(shelfH, t.H)

			mat := DefaultMaterialFrame(int(t.W) * int(t.H) * 4)
			if f < len(t.MaterialFrames) {
				mat = t.MaterialFrames[f]
			}
			blit(a.color, t.Frames[f], t.W, t.H, penX, penY)
			blit(a.material, mat, t.W, t.H, penX, penY)

			rects = append(rects, Entry{X: penX, Y: penY, W: t.W, H: t.H})
			penX += t.W
		}
		dropped += len(t.Frames) - len(rects)
		if len(rects) > 0 {
			a.placements[id] = rects
		}
	}

	clear(a.index)
	for _, id := range a.order {
		if _, ok := a.placements[id]; ok {
			a.index[id] = uint32(len(a.index))
		}
	}
	a.version++
	a.layoutDirty = false
	return dropped
}

// blit copies a tightly packed w×h RGBA frame into dst at (x, y).
func blit(dst *image.RGBA, frame []byte, w, h, x, y uint32) {
	if len(frame) == 0 {
		return
	}
	src := &image.RGBA{
		Pix:    frame,
		Stride: int(w) * 4,
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}
	r := image.Rect(int(x), int(y), int(x+w), int(y+h))
	draw.Draw(dst, r, src, image.Point{}, draw.Src)
}

// DefaultMaterialFrame returns n bytes filled with DefaultMaterial.
func DefaultMaterialFrame(n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := 0; i+4 <= n; i += 4 {
		copy(out[i:i+4], DefaultMaterial[:])
	}
	return out
}

func fitFrame(f []byte, need int) []byte {
	out := make([]byte, need)
	copy(out, f)
	return out
}
