package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrShaderCompilation is returned when a program fails to compile.
	ErrShaderCompilation = errors.New("native: shader compilation failed")

	// ErrBufferAllocation is returned when a GPU buffer cannot be created.
	ErrBufferAllocation = errors.New("native: buffer allocation failed")

	// ErrGPUTimeout is returned when a submission does not complete in time.
	ErrGPUTimeout = errors.New("native: GPU timeout")

	// ErrInvalidDimensions is returned when width or height is zero.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")
)
