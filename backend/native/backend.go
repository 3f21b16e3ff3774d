package native

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/internal/lru"
)

// bindingCount is the number of entries in the shared bind group layout.
const bindingCount = 12

func init() {
	backend.Register(backend.BackendNative, func() backend.ComputeBackend {
		return New()
	})
}

// Backend is a ComputeBackend running on a HAL device.
//
// A Backend created with New opens its own Vulkan device in Init and
// destroys it in Close. Backends created with NewWithDevice or
// NewFromProvider borrow the device and leave it alive on Close.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool

	initialized bool

	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	programs       *lru.Cache[programKey, *program]

	atlasColor    hal.Buffer
	atlasMaterial hal.Buffer

	live int
}

// New returns a Backend that opens its own device on Init.
func New() *Backend {
	b := &Backend{}
	b.programs = lru.New(maxPrograms, func(_ programKey, p *program) {
		p.destroy(b.device)
	})
	return b
}

// NewWithDevice returns a Backend sharing device and queue.
func NewWithDevice(device hal.Device, queue hal.Queue) *Backend {
	b := New()
	b.device = device
	b.queue = queue
	b.external = true
	return b
}

// NewFromProvider returns a Backend sharing the device of a host
// application. The provider must expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("native: provider HalQueue is not hal.Queue")
	}
	return NewWithDevice(device, queue), nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendNative }

// SetLogger sets the package logger.
func (b *Backend) SetLogger(l *slog.Logger) { setLogger(l) }

// Init opens the device if needed and creates the shared layouts.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if b.device == nil {
		if err := b.openVulkan(); err != nil {
			return err
		}
	}
	if err := b.createLayouts(); err != nil {
		b.releaseDevice()
		return err
	}
	b.initialized = true
	slogger().Info("native: backend initialized", "external_device", b.external)
	return nil
}

// openVulkan creates a standalone Vulkan device, preferring a discrete
// or integrated GPU.
func (b *Backend) openVulkan() error {
	vk, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := vk.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("native: open device: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	slogger().Info("native: GPU opened", "adapter", selected.Info.Name)
	return nil
}

func (b *Backend) createLayouts() error {
	entries := make([]gputypes.BindGroupLayoutEntry, bindingCount)
	for i := range entries {
		typ := gputypes.BufferBindingTypeReadOnlyStorage
		switch i {
		case 0:
			typ = gputypes.BufferBindingTypeUniform
		case bindingCount - 1:
			typ = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}

	bgl, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "scenevm_bgl",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("native: create bind group layout: %w", err)
	}
	pl, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "scenevm_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgl},
	})
	if err != nil {
		b.device.DestroyBindGroupLayout(bgl)
		return fmt.Errorf("native: create pipeline layout: %w", err)
	}
	b.bindLayout = bgl
	b.pipelineLayout = pl
	return nil
}

// Close releases pipelines, layouts and atlas buffers, and the device
// when the backend owns it. Surfaces still alive are not released.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}
	b.programs.Clear()
	b.destroyAtlasLocked()
	if b.pipelineLayout != nil {
		b.device.DestroyPipelineLayout(b.pipelineLayout)
		b.pipelineLayout = nil
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.live > 0 {
		slogger().Warn("native: closing with live surfaces", "count", b.live)
	}
	b.releaseDevice()
	b.initialized = false
	slogger().Info("native: backend closed")
}

func (b *Backend) releaseDevice() {
	if b.external {
		return
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.queue = nil
}

func (b *Backend) destroyAtlasLocked() {
	if b.atlasColor != nil {
		b.device.DestroyBuffer(b.atlasColor)
		b.atlasColor = nil
	}
	if b.atlasMaterial != nil {
		b.device.DestroyBuffer(b.atlasMaterial)
		b.atlasMaterial = nil
	}
}

// LiveSurfaces returns the number of surfaces not yet released.
func (b *Backend) LiveSurfaces() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

var (
	_ backend.ComputeBackend = (*Backend)(nil)
	_ backend.PixelReader    = (*Backend)(nil)
	_ backend.LoggerSetter   = (*Backend)(nil)
)
