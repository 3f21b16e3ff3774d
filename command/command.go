// Package command defines the instruction stream applied to a SceneVM.
//
// Every mutation of a layer is a Command value: a plain, serializable
// struct with a stable type name. Commands can be built in code, or
// read from and written to JSON-lines logs (see Encoder and Decoder),
// which makes any session replayable without a GPU.
//
// # Example
//
//	cmds := []command.Command{
//		command.AddSolid{ID: tile, Color: [4]uint8{255, 0, 0, 255}},
//		command.AddPoly2D{Poly: scene.SquarePoly2D(scene.Sector(1), tile, [2]float32{0, 0}, 1, 0, true)},
//		command.SetRenderMode{Mode: scene.Mode2D},
//	}
//	for _, c := range cmds {
//		vm.Apply(c)
//	}
package command

import (
	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// Type identifies the kind of a command.
type Type uint8

const (
	// Atlas
	TypeAddTile Type = iota
	TypeSetTileMaterialFrames
	TypeAddSolid
	TypeAddSolidWithMaterial
	TypeRemoveTile
	TypeBuildAtlas
	TypeSetAtlasSize

	// Geometry
	TypeAddPoly2D
	TypeAddPoly3D
	TypeAddLineStrip2D
	TypeAddLineStrip2DPx
	TypeNewChunk
	TypeAddChunk
	TypeRemoveChunk
	TypeRemoveChunkAt
	TypeSetCurrentChunk
	TypeSetGeoVisible
	TypeSetLayer
	TypeSetTransform2D
	TypeSetTransform3D
	TypeSetBvhLeafSize

	// Render state
	TypeSetAnimationCounter
	TypeSetBackground
	TypeSetGP
	TypeSetPalette
	TypeSetRenderMode
	TypeSetSource2D
	TypeSetSource3D
	TypeSetSourceSDF
	TypeSetViewportRect2D
	TypeSetSDFData
	TypeSetCamera
	TypeSetPingPong

	// Dynamic content
	TypeAddLight
	TypeRemoveLight
	TypeClearLights
	TypeAddDynamic
	TypeClearDynamics
	TypeSetAvatarData
	TypeRemoveAvatarData
	TypeClearAvatarData

	// Clearing
	TypeClear
	TypeClearTiles
	TypeClearGeometry

	// Layers
	TypeSetActiveLayer
	TypeSetLayerEnabled

	typeCount
)

var typeNames = [...]string{
	TypeAddTile:               "add_tile",
	TypeSetTileMaterialFrames: "set_tile_material_frames",
	TypeAddSolid:              "add_solid",
	TypeAddSolidWithMaterial:  "add_solid_with_material",
	TypeRemoveTile:            "remove_tile",
	TypeBuildAtlas:            "build_atlas",
	TypeSetAtlasSize:          "set_atlas_size",
	TypeAddPoly2D:             "add_poly_2d",
	TypeAddPoly3D:             "add_poly_3d",
	TypeAddLineStrip2D:        "add_line_strip_2d",
	TypeAddLineStrip2DPx:      "add_line_strip_2d_px",
	TypeNewChunk:              "new_chunk",
	TypeAddChunk:              "add_chunk",
	TypeRemoveChunk:           "remove_chunk",
	TypeRemoveChunkAt:         "remove_chunk_at",
	TypeSetCurrentChunk:       "set_current_chunk",
	TypeSetGeoVisible:         "set_geo_visible",
	TypeSetLayer:              "set_layer",
	TypeSetTransform2D:        "set_transform_2d",
	TypeSetTransform3D:        "set_transform_3d",
	TypeSetBvhLeafSize:        "set_bvh_leaf_size",
	TypeSetAnimationCounter:   "set_animation_counter",
	TypeSetBackground:         "set_background",
	TypeSetGP:                 "set_gp",
	TypeSetPalette:            "set_palette",
	TypeSetRenderMode:         "set_render_mode",
	TypeSetSource2D:           "set_source_2d",
	TypeSetSource3D:           "set_source_3d",
	TypeSetSourceSDF:          "set_source_sdf",
	TypeSetViewportRect2D:     "set_viewport_rect_2d",
	TypeSetSDFData:            "set_sdf_data",
	TypeSetCamera:             "set_camera",
	TypeSetPingPong:           "set_ping_pong",
	TypeAddLight:              "add_light",
	TypeRemoveLight:           "remove_light",
	TypeClearLights:           "clear_lights",
	TypeAddDynamic:            "add_dynamic",
	TypeClearDynamics:         "clear_dynamics",
	TypeSetAvatarData:         "set_avatar_data",
	TypeRemoveAvatarData:      "remove_avatar_data",
	TypeClearAvatarData:       "clear_avatar_data",
	TypeClear:                 "clear",
	TypeClearTiles:            "clear_tiles",
	TypeClearGeometry:         "clear_geometry",
	TypeSetActiveLayer:        "set_active_layer",
	TypeSetLayerEnabled:       "set_layer_enabled",
}

// String returns the wire name of t.
func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "unknown"
}

// TypeOf returns the Type with the given wire name.
func TypeOf(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// Command is implemented by every instruction.
type Command interface {
	Type() Type
}

// --------------------------------------------------------------------------
// Atlas
// --------------------------------------------------------------------------

// AddTile adds or replaces a tile. Frames are tightly packed RGBA8
// images of Width×Height; short frames are zero-padded, long ones cut.
// Missing material frames get the default material.
type AddTile struct {
	ID             uuid.UUID `json:"id"`
	Width          uint32    `json:"width"`
	Height         uint32    `json:"height"`
	Frames         [][]byte  `json:"frames"`
	MaterialFrames [][]byte  `json:"material_frames,omitempty"`
}

func (AddTile) Type() Type { return TypeAddTile }

// SetTileMaterialFrames replaces the material frames of an existing
// tile. Each material texel is roughness, metallic, opacity, emission.
type SetTileMaterialFrames struct {
	ID     uuid.UUID `json:"id"`
	Frames [][]byte  `json:"frames"`
}

func (SetTileMaterialFrames) Type() Type { return TypeSetTileMaterialFrames }

// AddSolid adds a 1×1 tile of one color.
type AddSolid struct {
	ID    uuid.UUID `json:"id"`
	Color [4]uint8  `json:"color"`
}

func (AddSolid) Type() Type { return TypeAddSolid }

// AddSolidWithMaterial adds a 1×1 tile with an explicit material texel.
type AddSolidWithMaterial struct {
	ID       uuid.UUID `json:"id"`
	Color    [4]uint8  `json:"color"`
	Material [4]uint8  `json:"material"`
}

func (AddSolidWithMaterial) Type() Type { return TypeAddSolidWithMaterial }

// RemoveTile drops a tile from the atlas.
type RemoveTile struct {
	ID uuid.UUID `json:"id"`
}

func (RemoveTile) Type() Type { return TypeRemoveTile }

// BuildAtlas packs every registered tile now instead of at the next
// draw.
type BuildAtlas struct{}

func (BuildAtlas) Type() Type { return TypeBuildAtlas }

// SetAtlasSize resizes the atlas. Dimensions are raised to at least 1.
type SetAtlasSize struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (SetAtlasSize) Type() Type { return TypeSetAtlasSize }

// --------------------------------------------------------------------------
// Geometry
// --------------------------------------------------------------------------

// AddPoly2D inserts or replaces a 2D polygon in the current chunk.
type AddPoly2D struct {
	Poly *scene.Poly2D `json:"poly"`
}

func (AddPoly2D) Type() Type { return TypeAddPoly2D }

// AddPoly3D appends a 3D polygon to the current chunk.
type AddPoly3D struct {
	Poly *scene.Poly3D `json:"poly"`
}

func (AddPoly3D) Type() Type { return TypeAddPoly3D }

// AddLineStrip2D adds a line strip with a world-space width.
type AddLineStrip2D struct {
	ID     scene.GeoID  `json:"id"`
	TileID uuid.UUID    `json:"tile_id"`
	Points [][2]float32 `json:"points"`
	Width  float32      `json:"width"`
}

func (AddLineStrip2D) Type() Type { return TypeAddLineStrip2D }

// AddLineStrip2DPx adds a line strip with a width in screen pixels.
type AddLineStrip2DPx struct {
	ID      scene.GeoID  `json:"id"`
	TileID  uuid.UUID    `json:"tile_id"`
	Points  [][2]float32 `json:"points"`
	WidthPx float32      `json:"width_px"`
}

func (AddLineStrip2DPx) Type() Type { return TypeAddLineStrip2DPx }

// NewChunk creates an empty chunk without selecting it.
type NewChunk struct {
	ID uuid.UUID `json:"id"`
}

func (NewChunk) Type() Type { return TypeNewChunk }

// ChunkData is the serializable content of a chunk.
type ChunkData struct {
	Origin   scene.GridPos        `json:"origin"`
	Size     int32                `json:"size"`
	Priority int32                `json:"priority,omitempty"`
	Polys2D  []*scene.Poly2D      `json:"polys_2d,omitempty"`
	Polys3D  []*scene.Poly3D      `json:"polys_3d,omitempty"`
	Lines    []*scene.LineStrip2D `json:"lines,omitempty"`
}

// Chunk builds a scene chunk from d.
func (d *ChunkData) Chunk() *scene.Chunk {
	c := scene.NewChunk(d.Origin, d.Size)
	c.Priority = d.Priority
	for _, p := range d.Polys2D {
		c.AddPoly2D(p)
	}
	for _, p := range d.Polys3D {
		c.AddPoly3D(p)
	}
	for _, l := range d.Lines {
		c.AddLineStrip(l)
	}
	return c
}

// AddChunk inserts or replaces a whole chunk. The current chunk is not
// changed.
type AddChunk struct {
	ID    uuid.UUID `json:"id"`
	Chunk ChunkData `json:"chunk"`
}

func (AddChunk) Type() Type { return TypeAddChunk }

// RemoveChunk deletes a chunk, unsetting it if it was current.
type RemoveChunk struct {
	ID uuid.UUID `json:"id"`
}

func (RemoveChunk) Type() Type { return TypeRemoveChunk }

// RemoveChunkAt deletes the chunk at a grid origin.
type RemoveChunkAt struct {
	Origin scene.GridPos `json:"origin"`
}

func (RemoveChunkAt) Type() Type { return TypeRemoveChunkAt }

// SetCurrentChunk selects the chunk receiving new polygons, creating it
// if missing.
type SetCurrentChunk struct {
	ID uuid.UUID `json:"id"`
}

func (SetCurrentChunk) Type() Type { return TypeSetCurrentChunk }

// SetGeoVisible shows or hides everything owned by ID in every chunk.
type SetGeoVisible struct {
	ID      scene.GeoID `json:"id"`
	Visible bool        `json:"visible"`
}

func (SetGeoVisible) Type() Type { return TypeSetGeoVisible }

// SetLayer sets the draw layer of subsequently added line strips.
type SetLayer struct {
	Layer int32 `json:"layer"`
}

func (SetLayer) Type() Type { return TypeSetLayer }

// SetTransform2D sets the global 2D transform.
type SetTransform2D struct {
	Matrix geom.Mat3 `json:"matrix"`
}

func (SetTransform2D) Type() Type { return TypeSetTransform2D }

// SetTransform3D sets the global 3D transform.
type SetTransform3D struct {
	Matrix geom.Mat4 `json:"matrix"`
}

func (SetTransform3D) Type() Type { return TypeSetTransform3D }

// SetBvhLeafSize sets the maximum triangles per BVH leaf.
type SetBvhLeafSize struct {
	MaxTris int `json:"max_tris"`
}

func (SetBvhLeafSize) Type() Type { return TypeSetBvhLeafSize }

// --------------------------------------------------------------------------
// Render state
// --------------------------------------------------------------------------

// SetAnimationCounter sets the frame counter used for tile animation
// and light flicker.
type SetAnimationCounter struct {
	Counter uint64 `json:"counter"`
}

func (SetAnimationCounter) Type() Type { return TypeSetAnimationCounter }

// SetBackground sets the clear color.
type SetBackground struct {
	Color geom.Vec4 `json:"color"`
}

func (SetBackground) Type() Type { return TypeSetBackground }

// SetGP sets one of the scene.GPSlots general-purpose shader vectors.
// Out-of-range slots are ignored.
type SetGP struct {
	Slot  int       `json:"slot"`
	Value geom.Vec4 `json:"value"`
}

func (SetGP) Type() Type { return TypeSetGP }

// SetPalette replaces the palette. Entries past scene.PaletteSize are
// ignored; missing ones are zero.
type SetPalette struct {
	Colors []geom.Vec4 `json:"colors"`
}

func (SetPalette) Type() Type { return TypeSetPalette }

// SetRenderMode selects the rasterizer.
type SetRenderMode struct {
	Mode scene.RenderMode `json:"mode"`
}

func (SetRenderMode) Type() Type { return TypeSetRenderMode }

// SetSource2D replaces the body of the 2D shader.
type SetSource2D struct {
	Source string `json:"source"`
}

func (SetSource2D) Type() Type { return TypeSetSource2D }

// SetSource3D replaces the body of the 3D shader.
type SetSource3D struct {
	Source string `json:"source"`
}

func (SetSource3D) Type() Type { return TypeSetSource3D }

// SetSourceSDF replaces the body of the SDF shader.
type SetSourceSDF struct {
	Source string `json:"source"`
}

func (SetSourceSDF) Type() Type { return TypeSetSourceSDF }

// SetViewportRect2D limits 2D and SDF dispatches to x, y, width,
// height in pixels. A nil Rect restores the full framebuffer.
type SetViewportRect2D struct {
	Rect *[4]float32 `json:"rect"`
}

func (SetViewportRect2D) Type() Type { return TypeSetViewportRect2D }

// SetSDFData replaces the data read by the SDF shader.
type SetSDFData struct {
	Data []geom.Vec4 `json:"data"`
}

func (SetSDFData) Type() Type { return TypeSetSDFData }

// SetCamera sets the 3D camera.
type SetCamera struct {
	Camera scene.Camera3D `json:"camera"`
}

func (SetCamera) Type() Type { return TypeSetCamera }

// SetPingPong switches the layer between one output surface and a
// front/back pair.
type SetPingPong struct {
	Enabled bool `json:"enabled"`
}

func (SetPingPong) Type() Type { return TypeSetPingPong }

// --------------------------------------------------------------------------
// Dynamic content
// --------------------------------------------------------------------------

// AddLight inserts or replaces a light.
type AddLight struct {
	ID    scene.GeoID `json:"id"`
	Light scene.Light `json:"light"`
}

func (AddLight) Type() Type { return TypeAddLight }

// RemoveLight deletes a light.
type RemoveLight struct {
	ID scene.GeoID `json:"id"`
}

func (RemoveLight) Type() Type { return TypeRemoveLight }

// ClearLights deletes every light.
type ClearLights struct{}

func (ClearLights) Type() Type { return TypeClearLights }

// AddDynamic queues a billboard.
type AddDynamic struct {
	Object scene.DynamicObject `json:"object"`
}

func (AddDynamic) Type() Type { return TypeAddDynamic }

// ClearDynamics removes every billboard.
type ClearDynamics struct{}

func (ClearDynamics) Type() Type { return TypeClearDynamics }

// SetAvatarData stores a Size×Size RGBA8 image for avatar billboards
// with ID.
type SetAvatarData struct {
	ID   scene.GeoID `json:"id"`
	Size uint32      `json:"size"`
	RGBA []byte      `json:"rgba"`
}

func (SetAvatarData) Type() Type { return TypeSetAvatarData }

// RemoveAvatarData deletes the avatar image for ID.
type RemoveAvatarData struct {
	ID scene.GeoID `json:"id"`
}

func (RemoveAvatarData) Type() Type { return TypeRemoveAvatarData }

// ClearAvatarData deletes every avatar image.
type ClearAvatarData struct{}

func (ClearAvatarData) Type() Type { return TypeClearAvatarData }

// --------------------------------------------------------------------------
// Clearing
// --------------------------------------------------------------------------

// Clear resets tiles, geometry, dynamic content and render state.
type Clear struct{}

func (Clear) Type() Type { return TypeClear }

// ClearTiles empties the atlas and the billboards, keeping chunks.
type ClearTiles struct{}

func (ClearTiles) Type() Type { return TypeClearTiles }

// ClearGeometry removes every chunk and billboard, keeping tiles.
type ClearGeometry struct{}

func (ClearGeometry) Type() Type { return TypeClearGeometry }

// --------------------------------------------------------------------------
// Layers
// --------------------------------------------------------------------------

// SetActiveLayer routes subsequent commands to layer Index.
type SetActiveLayer struct {
	Index int `json:"index"`
}

func (SetActiveLayer) Type() Type { return TypeSetActiveLayer }

// SetLayerEnabled includes or skips layer Index when drawing.
type SetLayerEnabled struct {
	Index   int  `json:"index"`
	Enabled bool `json:"enabled"`
}

func (SetLayerEnabled) Type() Type { return TypeSetLayerEnabled }

// newByType returns a pointer to a zero command of type t.
func newByType(t Type) Command {
	switch t {
	case TypeAddTile:
		return &AddTile{}
	case TypeSetTileMaterialFrames:
		return &SetTileMaterialFrames{}
	case TypeAddSolid:
		return &AddSolid{}
	case TypeAddSolidWithMaterial:
		return &AddSolidWithMaterial{}
	case TypeRemoveTile:
		return &RemoveTile{}
	case TypeBuildAtlas:
		return &BuildAtlas{}
	case TypeSetAtlasSize:
		return &SetAtlasSize{}
	case TypeAddPoly2D:
		return &AddPoly2D{}
	case TypeAddPoly3D:
		return &AddPoly3D{}
	case TypeAddLineStrip2D:
		return &AddLineStrip2D{}
	case TypeAddLineStrip2DPx:
		return &AddLineStrip2DPx{}
	case TypeNewChunk:
		return &NewChunk{}
	case TypeAddChunk:
		return &AddChunk{}
	case TypeRemoveChunk:
		return &RemoveChunk{}
	case TypeRemoveChunkAt:
		return &RemoveChunkAt{}
	case TypeSetCurrentChunk:
		return &SetCurrentChunk{}
	case TypeSetGeoVisible:
		return &SetGeoVisible{}
	case TypeSetLayer:
		return &SetLayer{}
	case TypeSetTransform2D:
		return &SetTransform2D{}
	case TypeSetTransform3D:
		return &SetTransform3D{}
	case TypeSetBvhLeafSize:
		return &SetBvhLeafSize{}
	case TypeSetAnimationCounter:
		return &SetAnimationCounter{}
	case TypeSetBackground:
		return &SetBackground{}
	case TypeSetGP:
		return &SetGP{}
	case TypeSetPalette:
		return &SetPalette{}
	case TypeSetRenderMode:
		return &SetRenderMode{}
	case TypeSetSource2D:
		return &SetSource2D{}
	case TypeSetSource3D:
		return &SetSource3D{}
	case TypeSetSourceSDF:
		return &SetSourceSDF{}
	case TypeSetViewportRect2D:
		return &SetViewportRect2D{}
	case TypeSetSDFData:
		return &SetSDFData{}
	case TypeSetCamera:
		return &SetCamera{}
	case TypeSetPingPong:
		return &SetPingPong{}
	case TypeAddLight:
		return &AddLight{}
	case TypeRemoveLight:
		return &RemoveLight{}
	case TypeClearLights:
		return &ClearLights{}
	case TypeAddDynamic:
		return &AddDynamic{}
	case TypeClearDynamics:
		return &ClearDynamics{}
	case TypeSetAvatarData:
		return &SetAvatarData{}
	case TypeRemoveAvatarData:
		return &RemoveAvatarData{}
	case TypeClearAvatarData:
		return &ClearAvatarData{}
	case TypeClear:
		return &Clear{}
	case TypeClearTiles:
		return &ClearTiles{}
	case TypeClearGeometry:
		return &ClearGeometry{}
	case TypeSetActiveLayer:
		return &SetActiveLayer{}
	case TypeSetLayerEnabled:
		return &SetLayerEnabled{}
	}
	return nil
}
