package scenevm

import "errors"

// Errors returned by SceneVM. Data-shape problems such as malformed
// tiles or degenerate triangles are normalized silently and never
// reported.
var (
	// ErrBackendInit is returned when the compute backend fails to start.
	ErrBackendInit = errors.New("scenevm: backend initialization failed")

	// ErrBufferAllocation is returned when a layer surface cannot be allocated.
	ErrBufferAllocation = errors.New("scenevm: buffer allocation failed")

	// ErrShaderCompilation is returned when a program body fails to compile.
	ErrShaderCompilation = errors.New("scenevm: shader compilation failed")

	// ErrTextureUpload is returned when a dispatch carrying new atlas pixels fails.
	ErrTextureUpload = errors.New("scenevm: atlas upload failed")

	// ErrInvalidGeometry is returned for geometry commands without geometry.
	ErrInvalidGeometry = errors.New("scenevm: invalid geometry")

	// ErrAtlasFull is returned by BuildAtlas when some frames did not fit.
	ErrAtlasFull = errors.New("scenevm: atlas full")

	// ErrInvalidOperation is returned for nil or unsupported commands and
	// for removing the base layer.
	ErrInvalidOperation = errors.New("scenevm: invalid operation")

	// ErrLayerNotFound is returned for an out-of-range layer index.
	ErrLayerNotFound = errors.New("scenevm: layer not found")
)
