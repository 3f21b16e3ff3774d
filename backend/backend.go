package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/scenevm/compositor"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrForeignSurface is returned when a surface was created by another backend.
	ErrForeignSurface = errors.New("backend: surface belongs to another backend")
)

// ComputeBackend runs the per-pixel programs of a layer.
//
// A backend owns the output surfaces (it is the compositor's
// Allocator), receives fully prepared frame payloads and dispatches one
// compute pass per call. Backends must be registered via Register() and
// are selected via Get() or Default().
type ComputeBackend interface {
	compositor.Allocator

	// Name returns the backend identifier (e.g., "capture", "native").
	Name() string

	// Init initializes the backend.
	// This should be called before any dispatch.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Dispatch2D shades the tile-binned 2D geometry into f.Surfaces.Write.
	Dispatch2D(f *Frame2D) error

	// Dispatch3D ray-casts the 3D geometry into f.Surfaces.Write.
	Dispatch3D(f *Frame3D) error

	// DispatchSDF evaluates the SDF program into f.Surfaces.Write.
	DispatchSDF(f *FrameSDF) error
}

// PixelReader is implemented by backends that can read a surface back
// as tightly packed RGBA8.
type PixelReader interface {
	ReadPixels(s compositor.Surface) ([]byte, error)
}

// LoggerSetter is implemented by backends that log.
type LoggerSetter interface {
	SetLogger(l *slog.Logger)
}
