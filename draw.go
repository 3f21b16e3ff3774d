package scenevm

import (
	"fmt"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/scene"
)

// draw renders the layer into its compositor for a w×h framebuffer.
func (l *Layer) draw(w, h uint32) error {
	if w == 0 || h == 0 {
		return nil
	}
	l.syncTables()
	switch l.mode {
	case scene.Mode3D:
		return l.draw3D(w, h)
	case scene.ModeSDF:
		return l.drawSDF(w, h)
	default:
		return l.draw2D(w, h)
	}
}

func (l *Layer) acquire(w, h uint32) (compositor.Frame, error) {
	f, err := l.comp.Acquire(w, h, l.anim, l.background)
	if err != nil {
		return compositor.Frame{}, fmt.Errorf("%w: %w", ErrBufferAllocation, err)
	}
	return f, nil
}

// finish commits a dispatched frame and records the atlas upload it
// carried.
func (l *Layer) finish(f compositor.Frame, upload *backend.AtlasUpload, version uint64, err error) error {
	if err != nil {
		if upload != nil {
			return fmt.Errorf("%w: %w", ErrTextureUpload, err)
		}
		return err
	}
	l.comp.Commit(f)
	l.atlas.markUploaded(version)
	return nil
}

func (l *Layer) draw2D(w, h uint32) error {
	l.ensureBatch(w, h)
	blob := l.dyn.Build(uint32(l.anim), l.atlas)

	f, err := l.acquire(w, h)
	if err != nil {
		return err
	}
	upload, version := l.atlas.pending()
	err = l.be.Dispatch2D(&backend.Frame2D{
		Surfaces: f,
		Region:   l.region(w, h),
		Source:   l.source2D,
		Uniforms: l.uniforms(w, h, int(blob.Header.LightsCount)),
		Batch:    l.batch,
		Tiles:    l.tiles,
		Scene:    blob,
		Atlas:    upload,
	})
	return l.finish(f, upload, version, err)
}

func (l *Layer) draw3D(w, h uint32) error {
	l.ensureAccel()
	blob := l.dyn.Build(uint32(l.anim), l.atlas)

	f, err := l.acquire(w, h)
	if err != nil {
		return err
	}
	upload, version := l.atlas.pending()
	err = l.be.Dispatch3D(&backend.Frame3D{
		Surfaces: f,
		Source:   l.source3D,
		Uniforms: l.uniforms(w, h, int(blob.Header.LightsCount)),
		Geometry: l.geometry,
		Accel:    l.accel,
		Grid:     l.grid,
		GridData: l.gridData,
		Tiles:    l.tiles,
		Scene:    blob,
		Atlas:    upload,
	})
	return l.finish(f, upload, version, err)
}

func (l *Layer) drawSDF(w, h uint32) error {
	blob := l.dyn.Build(uint32(l.anim), l.atlas)

	f, err := l.acquire(w, h)
	if err != nil {
		return err
	}
	upload, version := l.atlas.pending()
	err = l.be.DispatchSDF(&backend.FrameSDF{
		Surfaces: f,
		Region:   l.region(w, h),
		Source:   l.sourceSDF,
		Uniforms: l.uniforms(w, h, int(blob.Header.LightsCount)),
		Data:     l.sdfData,
		Tiles:    l.tiles,
		Scene:    blob,
		Atlas:    upload,
	})
	return l.finish(f, upload, version, err)
}
