// Package dynamic holds the per-frame state of a layer that is not
// chunk geometry: lights, billboards and avatar pixel buffers. Build
// serializes it into the scene-data blob read by the rasterizers.
package dynamic

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// TileIndexer resolves tile ids to dense atlas indices.
type TileIndexer interface {
	TileIndex(id uuid.UUID) (uint32, bool)
}

// Avatar is a square RGBA8 pixel buffer drawn on avatar billboards.
type Avatar struct {
	Size uint32
	RGBA []byte
}

func (a Avatar) valid() bool {
	return a.Size > 0 && uint64(len(a.RGBA)) == uint64(a.Size)*uint64(a.Size)*4
}

// Layer is the dynamic content of one render layer. It is not safe for
// concurrent use.
type Layer struct {
	lights map[scene.GeoID]scene.Light

	objects    []scene.DynamicObject
	avatars    []scene.DynamicObject
	avatarAt   map[scene.GeoID]int
	avatarData map[scene.GeoID]Avatar
}

// New returns an empty layer.
func New() *Layer {
	return &Layer{
		lights:     make(map[scene.GeoID]scene.Light),
		avatarAt:   make(map[scene.GeoID]int),
		avatarData: make(map[scene.GeoID]Avatar),
	}
}

// SetLight inserts or replaces the light with id.
func (l *Layer) SetLight(id scene.GeoID, light scene.Light) {
	l.lights[id] = light
}

// RemoveLight deletes the light with id.
func (l *Layer) RemoveLight(id scene.GeoID) bool {
	_, ok := l.lights[id]
	delete(l.lights, id)
	return ok
}

// ClearLights removes every light.
func (l *Layer) ClearLights() {
	clear(l.lights)
}

// LightCount returns the number of lights.
func (l *Layer) LightCount() int { return len(l.lights) }

// LightIDs returns the light ids in serialization order.
func (l *Layer) LightIDs() []scene.GeoID {
	ids := make([]scene.GeoID, 0, len(l.lights))
	for id := range l.lights {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

func compareIDs(a, b scene.GeoID) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// AddObject queues a billboard for this frame. Objects with a
// non-positive or non-finite size are ignored; view axes are sanitized.
// An avatar billboard replaces the live one with the same id, keeping
// its position in the queue.
func (l *Layer) AddObject(o scene.DynamicObject) bool {
	if !(o.Width > 0) || !geom.IsFinite(o.Width) || !(o.Height > 0) || !geom.IsFinite(o.Height) {
		return false
	}
	o.Sanitize()
	if o.Kind != scene.BillboardAvatar {
		l.objects = append(l.objects, o)
		return true
	}
	if i, ok := l.avatarAt[o.ID]; ok {
		l.avatars[i] = o
		return true
	}
	l.avatarAt[o.ID] = len(l.avatars)
	l.avatars = append(l.avatars, o)
	return true
}

// ClearObjects removes every billboard.
func (l *Layer) ClearObjects() {
	l.objects = l.objects[:0]
	l.avatars = l.avatars[:0]
	clear(l.avatarAt)
}

// Objects returns the queued billboards: tile billboards in insertion
// order, then one avatar billboard per id in first-insertion order.
func (l *Layer) Objects() []scene.DynamicObject {
	return slices.Concat(l.objects, l.avatars)
}

// ObjectCount returns the number of queued billboards.
func (l *Layer) ObjectCount() int { return len(l.objects) + len(l.avatars) }

// SetAvatar stores the pixels for avatar billboards with id. Buffers
// whose length is not size*size*4 are ignored.
func (l *Layer) SetAvatar(id scene.GeoID, size uint32, rgba []byte) bool {
	a := Avatar{Size: size, RGBA: rgba}
	if !a.valid() {
		return false
	}
	l.avatarData[id] = a
	return true
}

// RemoveAvatar deletes the pixels stored for id.
func (l *Layer) RemoveAvatar(id scene.GeoID) bool {
	_, ok := l.avatarData[id]
	delete(l.avatarData, id)
	return ok
}

// ClearAvatars deletes all avatar pixel buffers.
func (l *Layer) ClearAvatars() {
	clear(l.avatarData)
}

// Clear resets the layer.
func (l *Layer) Clear() {
	l.ClearLights()
	l.ClearObjects()
	l.ClearAvatars()
}

// Build serializes the layer for animation frame anim. Tile billboards
// whose tile has no atlas index and avatar billboards without valid
// pixels are skipped. Avatar pixels are appended in billboard order.
func (l *Layer) Build(anim uint32, tiles TileIndexer) *Blob {
	var h Header
	data := make([]uint32, 0, len(l.lights)*LightWords+l.ObjectCount()*BillboardWords)

	for _, id := range l.LightIDs() {
		data = appendLight(data, l.lights[id], anim)
	}
	h.LightsCount = uint32(len(l.lights))

	var (
		bbs    []uint32
		metas  []uint32
		pixels []uint32
	)
	for _, o := range l.Objects() {
		if !o.Valid() {
			continue
		}
		switch o.Kind {
		case scene.BillboardTile:
			if o.TileID == nil {
				continue
			}
			ti, ok := tiles.TileIndex(*o.TileID)
			if !ok {
				continue
			}
			bbs = appendBillboard(bbs, &o, ti, float32(o.RepeatMode))
		case scene.BillboardAvatar:
			a, ok := l.avatarData[o.ID]
			if !ok || !a.valid() {
				continue
			}
			ai := uint32(len(metas) / AvatarMetaWords)
			metas = append(metas, uint32(len(pixels)), a.Size, 0, 0)
			for i := 0; i+4 <= len(a.RGBA); i += 4 {
				pixels = append(pixels, binary.LittleEndian.Uint32(a.RGBA[i:]))
			}
			bbs = appendBillboard(bbs, &o, ai, 0)
		}
	}

	if len(bbs) > 0 {
		h.BillboardsOffset = uint32(len(data))
		h.BillboardsCount = uint32(len(bbs) / BillboardWords)
		data = append(data, bbs...)
	}
	if len(metas) > 0 {
		h.AvatarMetaOffset = uint32(len(data))
		h.AvatarMetaCount = uint32(len(metas) / AvatarMetaWords)
		data = append(data, metas...)
	}
	if len(pixels) > 0 {
		h.AvatarPixelOffset = uint32(len(data))
		data = append(data, pixels...)
	}

	h.DataWords = uint32(len(data))
	if len(data) == 0 {
		data = make([]uint32, minDataWords)
	}
	return &Blob{Header: h, Data: data}
}

func appendLight(dst []uint32, l scene.Light, anim uint32) []uint32 {
	f := math.Float32bits
	emitting := uint32(0)
	if l.Emitting {
		emitting = 1
	}
	return append(dst,
		uint32(l.Type), emitting, 0, 0,
		f(l.Position.X), f(l.Position.Y), f(l.Position.Z), 0,
		f(l.Color.X), f(l.Color.Y), f(l.Color.Z), 0,
		f(l.Intensity), f(l.Radius), f(l.StartDistance), f(l.EndDistance),
		f(FlickerFactor(l, anim)), 0, 0, 0,
	)
}

func appendBillboard(dst []uint32, o *scene.DynamicObject, index uint32, repeat float32) []uint32 {
	f := math.Float32bits
	hw, hh := o.HalfExtents()
	r := o.ViewRight.Mul(hw)
	u := o.ViewUp.Mul(hh)
	return append(dst,
		f(o.Center.X), f(o.Center.Y), f(o.Center.Z), f(o.Width),
		f(r.X), f(r.Y), f(r.Z), f(o.Height),
		f(u.X), f(u.Y), f(u.Z), f(repeat),
		index, uint32(o.Kind), f(o.Opacity), 0,
	)
}

// FlickerFactor returns the attenuation of l at animation frame anim,
// in [1-Flicker, 1]. The value is a hash of anim and the light's
// integer position, so it is stable for a given frame.
func FlickerFactor(l scene.Light, anim uint32) float32 {
	if !(l.Flicker > 0) {
		return 1
	}
	q := saturateU32(l.Position.X) + saturateU32(l.Position.Y) + saturateU32(l.Position.Z)
	combined := hashU32(anim) + q*100
	v := geom.Clamp(float32(combined)/float32(math.MaxUint32), 0, 1)
	return 1 - v*l.Flicker
}

// hashU32 is Wang's integer hash.
func hashU32(s uint32) uint32 {
	s = (s ^ 61) ^ (s >> 16)
	s += s << 3
	s ^= s >> 4
	s *= 0x27d4eb2d
	s ^= s >> 15
	return s
}

// saturateU32 truncates x toward zero into [0, MaxUint32]; NaN maps
// to 0.
func saturateU32(x float32) uint32 {
	switch {
	case !(x > 0):
		return 0
	case x >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(x)
}
