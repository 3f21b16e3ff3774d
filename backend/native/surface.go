package native

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/compositor"
	"github.com/gogpu/scenevm/geom"
)

// fenceTimeout bounds every wait on the GPU.
const fenceTimeout = 5 * time.Second

// Surface is a storage buffer of w*h packed RGBA8 pixels.
type Surface struct {
	buf   hal.Buffer
	w, h  uint32
	owner *Backend
}

// Size returns the surface dimensions.
func (s *Surface) Size() (uint32, uint32) { return s.w, s.h }

func (s *Surface) bytes() uint64 { return uint64(s.w) * uint64(s.h) * 4 }

// NewSurface allocates a w x h surface.
func (b *Backend) NewSurface(w, h uint32) (compositor.Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	if w == 0 || h == 0 {
		return nil, ErrInvalidDimensions
	}
	s := &Surface{w: w, h: h, owner: b}
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("scenevm_surface_%dx%d", w, h),
		Size:  s.bytes(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create surface: %w", err)
	}
	s.buf = buf
	b.live++
	return s, nil
}

// ClearSurface fills s with color.
func (b *Backend) ClearSurface(s compositor.Surface, color geom.Vec4) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.own(s)
	if err != nil {
		return err
	}
	px := packColor(color)
	data := make([]byte, ns.bytes())
	for i := 0; i < len(data); i += 4 {
		binary.LittleEndian.PutUint32(data[i:], px)
	}
	b.queue.WriteBuffer(ns.buf, 0, data)
	return nil
}

// ReleaseSurface destroys s. Foreign surfaces are ignored.
func (b *Backend) ReleaseSurface(s compositor.Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.own(s)
	if err != nil || ns.buf == nil {
		return
	}
	b.device.DestroyBuffer(ns.buf)
	ns.buf = nil
	b.live--
}

// ReadPixels copies s back to the CPU as RGBA8 rows.
func (b *Backend) ReadPixels(s compositor.Surface) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.own(s)
	if err != nil {
		return nil, err
	}
	size := ns.bytes()
	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "scenevm_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "scenevm_readback"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("scenevm_readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(ns.buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	if err := b.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := b.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	return out, nil
}

func (b *Backend) own(s compositor.Surface) (*Surface, error) {
	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	ns, ok := s.(*Surface)
	if !ok || ns.owner != b {
		return nil, backend.ErrForeignSurface
	}
	return ns, nil
}

func (b *Backend) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("native: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrGPUTimeout, fenceTimeout)
	}
	return nil
}

// packColor matches WGSL pack4x8unorm.
func packColor(c geom.Vec4) uint32 {
	ch := func(v float32) uint32 {
		v = min(max(v, 0), 1)
		return uint32(math.Floor(float64(v)*255 + 0.5))
	}
	return ch(c.X) | ch(c.Y)<<8 | ch(c.Z)<<16 | ch(c.W)<<24
}
