package scenevm

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/atlas"
	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/command"
	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/internal/parallel"
	"github.com/gogpu/scenevm/pick"
	"github.com/gogpu/scenevm/scene"
)

// SceneVM is an ordered stack of layers sharing one tile atlas and one
// compute backend. Commands go to the active layer; Draw renders every
// enabled layer. Layer 0 is the base layer and always exists.
//
// SceneVM is safe for concurrent use.
type SceneVM struct {
	mu sync.Mutex

	cfg         Config
	be          backend.ComputeBackend
	ownsBackend bool
	atlas       *sharedAtlas
	layers      []*Layer
	active      int

	width, height uint32
	pool          *parallel.WorkerPool
	closed        bool
}

// New creates a SceneVM with a w×h default framebuffer.
func New(width, height uint32, opts ...Option) (*SceneVM, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	be, owns := o.backend, false
	if be != nil {
		if err := be.Init(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBackendInit, be.Name(), err)
		}
	} else {
		var err error
		if be, err = backend.InitNamed(o.cfg.Backend); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBackendInit, o.cfg.Backend, err)
		}
		owns = true
	}
	trackLogger(be)

	aw, ah := max(o.cfg.AtlasWidth, 1), max(o.cfg.AtlasHeight, 1)
	vm := &SceneVM{
		cfg:         o.cfg,
		be:          be,
		ownsBackend: owns,
		atlas:       &sharedAtlas{Atlas: atlas.New(aw, ah)},
		width:       width,
		height:      height,
	}
	vm.layers = []*Layer{vm.newLayer(o.cfg.background())}

	slogger().Info("scenevm: created",
		"backend", be.Name(),
		"width", width, "height", height,
		"atlas", fmt.Sprintf("%dx%d", aw, ah))
	return vm, nil
}

func (vm *SceneVM) newLayer(bg geom.Vec4) *Layer {
	return newLayer(vm.atlas, vm.be, vm.cfg.LeafSize, vm.cfg.PingPong, bg)
}

// Backend returns the compute backend.
func (vm *SceneVM) Backend() backend.ComputeBackend { return vm.be }

// Config returns the construction settings.
func (vm *SceneVM) Config() Config { return vm.cfg }

// Apply executes one command against the active layer. Layer commands
// (SetActiveLayer, SetLayerEnabled) act on the layer stack.
func (vm *SceneVM) Apply(cmd command.Command) error {
	cmd = command.Value(cmd)
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidOperation)
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.applyLocked(cmd)
}

func (vm *SceneVM) applyLocked(cmd command.Command) error {
	switch c := cmd.(type) {
	case command.SetActiveLayer:
		return vm.setActiveLocked(c.Index)
	case command.SetLayerEnabled:
		l, err := vm.layerLocked(c.Index)
		if err != nil {
			return err
		}
		l.enabled = c.Enabled
		return nil
	}
	return vm.layers[vm.active].apply(cmd)
}

// ApplyAll executes cmds in order, stopping at the first error.
func (vm *SceneVM) ApplyAll(cmds []command.Command) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i, c := range cmds {
		c = command.Value(c)
		if c == nil {
			return fmt.Errorf("%w: nil command at %d", ErrInvalidOperation, i)
		}
		if err := vm.applyLocked(c); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.Type(), err)
		}
	}
	return nil
}

// Replay decodes a JSON-lines command log from r and applies it.
func (vm *SceneVM) Replay(r io.Reader) (int, error) {
	cmds, err := command.ReadAll(r)
	if err != nil {
		return 0, err
	}
	return len(cmds), vm.ApplyAll(cmds)
}

// ReplayFile applies the command log at path. Files ending in .zst are
// decompressed.
func (vm *SceneVM) ReplayFile(path string) (int, error) {
	cmds, err := command.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return len(cmds), vm.ApplyAll(cmds)
}

// AddLayer appends a layer with a transparent background and returns
// its index. The active layer does not change.
func (vm *SceneVM) AddLayer() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.layers = append(vm.layers, vm.newLayer(geom.Vec4{}))
	slogger().Info("scenevm: layer added", "index", len(vm.layers)-1)
	return len(vm.layers) - 1
}

// RemoveLayer deletes layer i and releases its surfaces. The base layer
// cannot be removed. The active index follows its layer, falling back
// to the base layer when the active layer itself is removed.
func (vm *SceneVM) RemoveLayer(i int) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if i == 0 {
		return fmt.Errorf("%w: the base layer cannot be removed", ErrInvalidOperation)
	}
	l, err := vm.layerLocked(i)
	if err != nil {
		return err
	}
	l.release()
	slogger().Info("scenevm: layer removed", "index", i)
	vm.layers = append(vm.layers[:i], vm.layers[i+1:]...)
	switch {
	case vm.active == i:
		vm.active = 0
	case vm.active > i:
		vm.active--
	}
	return nil
}

// SetActiveLayer routes subsequent commands to layer i.
func (vm *SceneVM) SetActiveLayer(i int) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.setActiveLocked(i)
}

func (vm *SceneVM) setActiveLocked(i int) error {
	if _, err := vm.layerLocked(i); err != nil {
		return err
	}
	vm.active = i
	return nil
}

// SetLayerEnabled includes or skips layer i when drawing.
func (vm *SceneVM) SetLayerEnabled(i int, on bool) error {
	return vm.Apply(command.SetLayerEnabled{Index: i, Enabled: on})
}

// LayerCount returns the number of layers.
func (vm *SceneVM) LayerCount() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.layers)
}

// ActiveLayer returns the index of the layer receiving commands.
func (vm *SceneVM) ActiveLayer() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.active
}

// Layer returns layer i. The returned layer must not be used
// concurrently with the SceneVM.
func (vm *SceneVM) Layer(i int) (*Layer, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.layerLocked(i)
}

func (vm *SceneVM) layerLocked(i int) (*Layer, error) {
	if i < 0 || i >= len(vm.layers) {
		return nil, fmt.Errorf("%w: %d of %d", ErrLayerNotFound, i, len(vm.layers))
	}
	return vm.layers[i], nil
}

// Size returns the default framebuffer size.
func (vm *SceneVM) Size() (width, height uint32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.width, vm.height
}

// Resize changes the default framebuffer size used by Pick and
// PickRect.
func (vm *SceneVM) Resize(width, height uint32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.width, vm.height = width, height
}

// Draw renders every enabled layer, bottom to top, into a w×h
// framebuffer and makes w×h the default size. Each layer keeps its own
// output surface; compositing them is left to the caller. A zero size
// draws nothing.
func (vm *SceneVM) Draw(w, h uint32) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return fmt.Errorf("%w: closed", ErrInvalidOperation)
	}
	vm.width, vm.height = w, h
	var errs []error
	for i, l := range vm.layers {
		if !l.enabled {
			continue
		}
		if err := l.draw(w, h); err != nil {
			errs = append(errs, fmt.Errorf("layer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Draw2D renders the active layer as 2D regardless of its mode.
func (vm *SceneVM) Draw2D(w, h uint32) error { return vm.drawActive(scene.Mode2D, w, h) }

// Draw3D renders the active layer as 3D regardless of its mode.
func (vm *SceneVM) Draw3D(w, h uint32) error { return vm.drawActive(scene.Mode3D, w, h) }

// DrawSDF renders the active layer with its SDF program regardless of
// its mode.
func (vm *SceneVM) DrawSDF(w, h uint32) error { return vm.drawActive(scene.ModeSDF, w, h) }

func (vm *SceneVM) drawActive(mode scene.RenderMode, w, h uint32) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return fmt.Errorf("%w: closed", ErrInvalidOperation)
	}
	l := vm.layers[vm.active]
	saved := l.mode
	l.mode = mode
	defer func() { l.mode = saved }()
	return l.draw(w, h)
}

// ReadPixels returns the latest frame of layer i as tightly packed
// RGBA8. The backend must implement backend.PixelReader.
func (vm *SceneVM) ReadPixels(i int) ([]byte, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	l, err := vm.layerLocked(i)
	if err != nil {
		return nil, err
	}
	pr, ok := vm.be.(backend.PixelReader)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot read pixels", ErrInvalidOperation, vm.be.Name())
	}
	out := l.Output()
	if out == nil {
		return nil, fmt.Errorf("%w: layer %d has not been drawn", ErrInvalidOperation, i)
	}
	return pr.ReadPixels(out)
}

// RayFromUV returns the camera ray of the active layer through uv in
// [0,1]² of the default framebuffer.
func (vm *SceneVM) RayFromUV(uv [2]float32) geom.Ray {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.layers[vm.active].camera.RayFromUV(vm.width, vm.height, uv)
}

// Pick returns the closest object of the active layer under uv in
// [0,1]² of the default framebuffer.
func (vm *SceneVM) Pick(uv [2]float32, opts pick.Options) (pick.Hit, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	l := vm.layers[vm.active]
	return l.target().At(l.camera, vm.width, vm.height, uv, opts)
}

// PickRect returns the distinct ids of kind hit by any pixel of rect on
// the active layer, sorted. Rows are traced on a worker pool created on
// first use.
func (vm *SceneVM) PickRect(rect pick.Rect, kind scene.GeoKind, opts pick.Options) []scene.GeoID {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.pool == nil {
		vm.pool = parallel.NewWorkerPool(vm.cfg.PickWorkers)
	}
	l := vm.layers[vm.active]
	return l.target().InRect(vm.pool, l.camera, vm.width, vm.height, rect, kind, opts)
}

// BuildAtlas packs the shared atlas now. It returns ErrAtlasFull when
// some frames did not fit.
func (vm *SceneVM) BuildAtlas() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if dropped := vm.atlas.Build(); dropped > 0 {
		return fmt.Errorf("%w: %d frames dropped", ErrAtlasFull, dropped)
	}
	return nil
}

// FrameRect returns the atlas rectangle of tile id at animation frame
// anim, packing the atlas first if needed.
func (vm *SceneVM) FrameRect(id uuid.UUID, anim uint32) (atlas.Entry, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.atlas.EnsureBuilt()
	return vm.atlas.FrameRect(id, anim)
}

// AtlasPixels returns a copy of the packed color atlas.
func (vm *SceneVM) AtlasPixels() []byte {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.atlas.EnsureBuilt()
	return vm.atlas.Pixels()
}

// MaterialAtlasPixels returns a copy of the packed material atlas.
func (vm *SceneVM) MaterialAtlasPixels() []byte {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.atlas.EnsureBuilt()
	return vm.atlas.MaterialPixels()
}

// Close releases every layer surface and, when the SceneVM created it,
// the backend. Close is idempotent.
func (vm *SceneVM) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return
	}
	vm.closed = true
	for _, l := range vm.layers {
		l.release()
	}
	untrackLogger(vm.be)
	if vm.ownsBackend {
		vm.be.Close()
	}
	if vm.pool != nil {
		vm.pool.Close()
		vm.pool = nil
	}
	slogger().Debug("scenevm: closed")
}
