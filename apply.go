package scenevm

import (
	"fmt"

	"github.com/gogpu/scenevm/command"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

// defaultBackground is the clear color of a fresh or cleared layer.
var defaultBackground = geom.Vec4{X: 1, Y: 0.8, Z: 0.2, W: 1}

// apply executes one layer-scoped command, given as a value. Atlas commands act on the
// atlas shared by every layer; the other layers notice the new layout
// version on their next draw.
func (l *Layer) apply(cmd command.Command) error {
	switch c := cmd.(type) {
	// Atlas
	case command.AddTile:
		l.atlas.AddTile(c.ID, c.Width, c.Height, c.Frames, c.MaterialFrames)
	case command.SetTileMaterialFrames:
		if !l.atlas.SetMaterialFrames(c.ID, c.Frames) {
			slogger().Debug("scenevm: material frames for unknown tile", "tile", c.ID)
		}
	case command.AddSolid:
		l.atlas.AddSolid(c.ID, c.Color)
	case command.AddSolidWithMaterial:
		l.atlas.AddSolidWithMaterial(c.ID, c.Color, c.Material)
	case command.RemoveTile:
		l.atlas.RemoveTile(c.ID)
	case command.BuildAtlas:
		if dropped := l.atlas.Build(); dropped > 0 {
			slogger().Warn("scenevm: atlas frames did not fit", "dropped", dropped)
		}
	case command.SetAtlasSize:
		l.atlas.Resize(max(c.Width, 1), max(c.Height, 1))

	// Geometry
	case command.AddPoly2D:
		if c.Poly == nil {
			return fmt.Errorf("%w: nil 2D polygon", ErrInvalidGeometry)
		}
		l.store.CurrentOrNew().AddPoly2D(c.Poly)
		l.mark2DDirty()
	case command.AddPoly3D:
		if c.Poly == nil {
			return fmt.Errorf("%w: nil 3D polygon", ErrInvalidGeometry)
		}
		l.store.CurrentOrNew().AddPoly3D(c.Poly)
		l.mark3DDirty()
	case command.AddLineStrip2D:
		if len(c.Points) < 2 {
			return nil
		}
		l.store.CurrentOrNew().AddLineStrip2D(c.ID, c.TileID, c.Points, c.Width, l.layer)
		l.markAllDirty()
	case command.AddLineStrip2DPx:
		if len(c.Points) < 2 || c.WidthPx <= 0 {
			return nil
		}
		l.store.CurrentOrNew().AddLineStrip2DPx(c.ID, c.TileID, c.Points, c.WidthPx, l.layer)
		l.markAllDirty()
	case command.NewChunk:
		l.store.Ensure(c.ID)
	case command.AddChunk:
		l.store.Insert(c.ID, c.Chunk.Chunk())
		l.markAllDirty()
	case command.RemoveChunk:
		if l.store.Remove(c.ID) {
			l.markAllDirty()
		}
	case command.RemoveChunkAt:
		if l.store.RemoveAt(c.Origin) {
			l.markAllDirty()
		}
	case command.SetCurrentChunk:
		l.store.SetCurrent(c.ID)
	case command.SetGeoVisible:
		touched2D, touched3D := l.store.SetVisible(c.ID, c.Visible)
		if touched2D {
			l.mark2DDirty()
		}
		if touched3D {
			l.visDirty = true
			l.pickDirty = true
		}
	case command.SetLayer:
		l.layer = c.Layer
	case command.SetTransform2D:
		if c.Matrix != l.transform2D {
			l.transform2D = c.Matrix
			l.mark2DDirty()
		}
	case command.SetTransform3D:
		l.transform3D = c.Matrix
		l.mark3DDirty()
	case command.SetBvhLeafSize:
		l.leafSize = max(c.MaxTris, 1)
		l.accelDirty = true

	// Render state
	case command.SetAnimationCounter:
		l.anim = c.Counter
	case command.SetBackground:
		l.background = c.Color
	case command.SetGP:
		if c.Slot >= 0 && c.Slot < scene.GPSlots {
			l.gp[c.Slot] = c.Value
		}
	case command.SetPalette:
		l.palette = [scene.PaletteSize]geom.Vec4{}
		copy(l.palette[:], c.Colors)
	case command.SetRenderMode:
		l.mode = c.Mode
	case command.SetSource2D:
		l.source2D = c.Source
	case command.SetSource3D:
		l.source3D = c.Source
	case command.SetSourceSDF:
		l.sourceSDF = c.Source
	case command.SetViewportRect2D:
		if c.Rect == nil {
			l.viewport = nil
		} else {
			vp := *c.Rect
			l.viewport = &vp
		}
	case command.SetSDFData:
		l.sdfData = append(l.sdfData[:0], c.Data...)
	case command.SetCamera:
		l.camera = c.Camera
	case command.SetPingPong:
		l.pingPong = c.Enabled
		l.comp.SetPingPong(c.Enabled)

	// Dynamic content
	case command.AddLight:
		l.dyn.SetLight(c.ID, c.Light)
	case command.RemoveLight:
		l.dyn.RemoveLight(c.ID)
	case command.ClearLights:
		l.dyn.ClearLights()
	case command.AddDynamic:
		if l.dyn.AddObject(c.Object) {
			l.pickDirty = true
		} else {
			slogger().Debug("scenevm: rejected billboard", "id", c.Object.ID)
		}
	case command.ClearDynamics:
		l.dyn.ClearObjects()
		l.pickDirty = true
	case command.SetAvatarData:
		if !l.dyn.SetAvatar(c.ID, c.Size, c.RGBA) {
			slogger().Debug("scenevm: rejected avatar data", "id", c.ID, "size", c.Size, "bytes", len(c.RGBA))
		}
	case command.RemoveAvatarData:
		l.dyn.RemoveAvatar(c.ID)
	case command.ClearAvatarData:
		l.dyn.ClearAvatars()

	// Clearing
	case command.Clear:
		l.clear()
	case command.ClearTiles:
		l.atlas.Clear()
		l.dyn.ClearObjects()
		l.markAllDirty()
	case command.ClearGeometry:
		l.store.Clear()
		l.dyn.ClearObjects()
		l.markAllDirty()

	default:
		return fmt.Errorf("%w: %T is not a layer command", ErrInvalidOperation, cmd)
	}
	return nil
}

// clear resets tiles, geometry, billboards, avatars and the basic render
// state. Lights, transforms, the palette and the camera survive.
func (l *Layer) clear() {
	l.atlas.Clear()
	l.store.Clear()
	l.dyn.ClearObjects()
	l.dyn.ClearAvatars()
	l.anim = 0
	l.background = defaultBackground
	for i := range 3 {
		l.gp[i] = geom.Vec4{}
	}
	l.mode = scene.Mode2D
	l.sdfData = nil
	l.markAllDirty()
}
