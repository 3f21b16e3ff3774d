package native

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenevm/atlas"
	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/dynamic"
	"github.com/gogpu/scenevm/scene"
)

// pass is one prepared dispatch.
type pass struct {
	mode     scene.RenderMode
	source   string
	surfaces compositor.Frame
	uniforms backend.Uniforms
	geometry [4][]uint32
	tiles    atlas.GPUTables
	scene    *dynamic.Blob
	atlas    *backend.AtlasUpload
	groupsX  uint32
	groupsY  uint32
}

// Dispatch2D runs the 2D program over f.Region.
func (b *Backend) Dispatch2D(f *backend.Frame2D) error {
	region := regionOf(f.Surfaces.Write, f.Region)
	u := f.Uniforms
	u.Viewport = [4]float32{float32(region.X), float32(region.Y), float32(region.W), float32(region.H)}
	var geo [4][]uint32
	if f.Batch != nil {
		geo = [4][]uint32{
			backend.Vertex2DWords(f.Batch.Vertices),
			backend.PadWords(f.Batch.Indices),
			backend.BinWords(f.Batch.Bins),
			backend.PadWords(f.Batch.TileTris),
		}
	}
	return b.run(&pass{
		mode: scene.Mode2D, source: f.Source, surfaces: f.Surfaces, uniforms: u,
		geometry: geo, tiles: f.Tiles, scene: f.Scene, atlas: f.Atlas,
		groupsX: (region.W + 7) / 8, groupsY: (region.H + 7) / 8,
	})
}

// Dispatch3D runs the 3D program over the whole surface.
func (b *Backend) Dispatch3D(f *backend.Frame3D) error {
	var geo [4][]uint32
	if f.Geometry != nil {
		geo[0] = backend.PadWords(f.Geometry.VertexWords())
		geo[1] = backend.PadWords(f.Geometry.Indices)
	}
	geo[2] = f.Grid.Words()
	geo[3] = backend.PadWords(f.GridData)
	w, h := sizeOf(f.Surfaces.Write)
	return b.run(&pass{
		mode: scene.Mode3D, source: f.Source, surfaces: f.Surfaces, uniforms: f.Uniforms,
		geometry: geo, tiles: f.Tiles, scene: f.Scene, atlas: f.Atlas,
		groupsX: (w + 7) / 8, groupsY: (h + 7) / 8,
	})
}

// DispatchSDF runs the SDF program over f.Region.
func (b *Backend) DispatchSDF(f *backend.FrameSDF) error {
	region := regionOf(f.Surfaces.Write, f.Region)
	u := f.Uniforms
	u.Viewport = [4]float32{float32(region.X), float32(region.Y), float32(region.W), float32(region.H)}
	return b.run(&pass{
		mode: scene.ModeSDF, source: f.Source, surfaces: f.Surfaces, uniforms: u,
		geometry: [4][]uint32{f.DataWords()}, tiles: f.Tiles, scene: f.Scene, atlas: f.Atlas,
		groupsX: (region.W + 7) / 8, groupsY: (region.H + 7) / 8,
	})
}

// transient tracks per-dispatch GPU resources for cleanup.
type transient struct {
	device    hal.Device
	buffers   []hal.Buffer
	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
}

func (t *transient) cleanup() {
	if t.cmdBuf != nil {
		t.device.FreeCommandBuffer(t.cmdBuf)
	}
	if t.bindGroup != nil {
		t.device.DestroyBindGroup(t.bindGroup)
	}
	for _, buf := range t.buffers {
		t.device.DestroyBuffer(buf)
	}
}

func (b *Backend) run(p *pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return backend.ErrNotInitialized
	}
	write, err := b.own(p.surfaces.Write)
	if err != nil {
		return err
	}
	read, err := b.own(p.surfaces.Read)
	if err != nil {
		return err
	}
	if err := b.uploadAtlasLocked(p.atlas); err != nil {
		return err
	}
	prog, err := b.programLocked(p.mode, p.source)
	if err != nil {
		return err
	}
	if p.groupsX == 0 || p.groupsY == 0 {
		return nil
	}

	res := &transient{device: b.device}
	defer res.cleanup()

	metas, frames := backend.TileWords(p.tiles)
	inputs := [][]uint32{
		p.uniforms.Words(),
		backend.PadWords(p.geometry[0]),
		backend.PadWords(p.geometry[1]),
		backend.PadWords(p.geometry[2]),
		backend.PadWords(p.geometry[3]),
		metas,
		frames,
	}
	bufs := make([]hal.Buffer, 0, bindingCount)
	for i, words := range inputs {
		usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
		if i == 0 {
			usage = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
		}
		buf, err := b.uploadLocked(fmt.Sprintf("scenevm_in%d", i), wordBytes(words), usage)
		if err != nil {
			return err
		}
		res.buffers = append(res.buffers, buf)
		bufs = append(bufs, buf)
	}
	sceneBuf, err := b.uploadLocked("scenevm_scene", blobBytes(p.scene), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	res.buffers = append(res.buffers, sceneBuf)
	bufs = append(bufs, sceneBuf, b.atlasColor, b.atlasMaterial, read.buf, write.buf)

	entries := make([]gputypes.BindGroupEntry, len(bufs))
	for i, buf := range bufs {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}
	}
	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "scenevm_bg",
		Layout:  b.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	res.bindGroup = bg

	label := "scenevm_" + p.mode.String()
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	cp := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	cp.SetPipeline(prog.pipeline)
	cp.SetBindGroup(0, bg, nil)
	cp.Dispatch(p.groupsX, p.groupsY, 1)
	cp.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf

	if err := b.submitAndWait(cmdBuf); err != nil {
		return err
	}
	slogger().Debug("native: dispatched",
		"mode", p.mode.String(),
		"workgroups", p.groupsX*p.groupsY)
	return nil
}

// uploadLocked creates a buffer holding data, at least one word long.
func (b *Backend) uploadLocked(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if len(data) < 4 {
		data = make([]byte, 4)
	}
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBufferAllocation, label, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// uploadAtlasLocked replaces the atlas buffers when u carries pixels and
// makes sure placeholders exist otherwise.
func (b *Backend) uploadAtlasLocked(u *backend.AtlasUpload) error {
	if u == nil && b.atlasColor != nil {
		return nil
	}
	var color, material []byte
	if u != nil {
		color, material = u.Color, u.Material
		if material == nil {
			material = make([]byte, len(color))
		}
	}
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	c, err := b.uploadLocked("scenevm_atlas_color", color, usage)
	if err != nil {
		return err
	}
	m, err := b.uploadLocked("scenevm_atlas_material", material, usage)
	if err != nil {
		b.device.DestroyBuffer(c)
		return err
	}
	b.destroyAtlasLocked()
	b.atlasColor, b.atlasMaterial = c, m
	if u != nil {
		slogger().Debug("native: atlas uploaded",
			"width", u.Width, "height", u.Height,
			"bytes", humanize.IBytes(uint64(u.Size())))
	}
	return nil
}

func wordBytes(w []uint32) []byte {
	out := make([]byte, 4*len(w))
	for i, v := range w {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func blobBytes(b *dynamic.Blob) []byte {
	if b == nil {
		return make([]byte, 4*(dynamic.HeaderWords+4))
	}
	return b.Bytes()
}

func sizeOf(s compositor.Surface) (uint32, uint32) {
	if s == nil {
		return 0, 0
	}
	return s.Size()
}

// regionOf clamps r to s. An empty region selects the whole surface.
func regionOf(s compositor.Surface, r backend.Region) backend.Region {
	w, h := sizeOf(s)
	if r.Empty() {
		return backend.Region{W: w, H: h}
	}
	if r.X >= w || r.Y >= h {
		return backend.Region{}
	}
	r.W = min(r.W, w-r.X)
	r.H = min(r.H, h-r.Y)
	return r
}
