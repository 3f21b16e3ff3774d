package scene

import (
	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
)

// DynamicKind distinguishes tile billboards from avatar billboards.
type DynamicKind uint32

const (
	// BillboardTile samples a tile from the atlas.
	BillboardTile DynamicKind = iota
	// BillboardAvatar samples a per-instance RGBA buffer.
	BillboardAvatar
)

func (k DynamicKind) String() string {
	if k == BillboardAvatar {
		return "billboard_avatar"
	}
	return "billboard_tile"
}

// RepeatMode controls how billboard UVs outside [0,1] are treated.
type RepeatMode uint32

const (
	ClampXY RepeatMode = iota
	RepeatXY
	RepeatX
	RepeatY
)

// DynamicObject is a camera-facing quad submitted per frame. Width and
// Height are full extents; ViewRight and ViewUp span the quad.
type DynamicObject struct {
	ID         GeoID       `json:"id"`
	Kind       DynamicKind `json:"kind"`
	Center     geom.Vec3   `json:"center"`
	ViewRight  geom.Vec3   `json:"view_right"`
	ViewUp     geom.Vec3   `json:"view_up"`
	Width      float32     `json:"width"`
	Height     float32     `json:"height"`
	TileID     *uuid.UUID  `json:"tile_id,omitempty"`
	Opacity    float32     `json:"opacity"`
	RepeatMode RepeatMode  `json:"repeat_mode"`
}

// NewTileBillboard returns an opaque tile billboard facing +Z.
func NewTileBillboard(id GeoID, tile uuid.UUID, center geom.Vec3, width, height float32) DynamicObject {
	return DynamicObject{
		ID:        id,
		Kind:      BillboardTile,
		Center:    center,
		ViewRight: geom.V3(1, 0, 0),
		ViewUp:    geom.V3(0, 1, 0),
		Width:     width,
		Height:    height,
		TileID:    &tile,
		Opacity:   1,
	}
}

// NewAvatarBillboard returns an opaque avatar billboard facing +Z.
func NewAvatarBillboard(id GeoID, center geom.Vec3, width, height float32) DynamicObject {
	return DynamicObject{
		ID:        id,
		Kind:      BillboardAvatar,
		Center:    center,
		ViewRight: geom.V3(1, 0, 0),
		ViewUp:    geom.V3(0, 1, 0),
		Width:     width,
		Height:    height,
		Opacity:   1,
	}
}

// HalfExtents returns half the width and height, clamped at zero.
func (o *DynamicObject) HalfExtents() (hw, hh float32) {
	return max(o.Width*0.5, 0), max(o.Height*0.5, 0)
}

// Valid reports whether both half extents are finite and positive.
func (o *DynamicObject) Valid() bool {
	hw, hh := o.HalfExtents()
	return geom.IsFinite(hw) && hw > 0 && geom.IsFinite(hh) && hh > 0
}

// Sanitize replaces the view axes with a finite orthonormal pair.
func (o *DynamicObject) Sanitize() {
	o.ViewRight, o.ViewUp = geom.SanitizeBillboardAxes(o.ViewRight, o.ViewUp)
}
