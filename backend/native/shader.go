package native

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/scene"
)

// CompileSPIRV composes the program of mode around body and compiles it
// to SPIR-V words.
func CompileSPIRV(mode scene.RenderMode, body string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(backend.Compose(mode, body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompilation, mode, err)
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return code, nil
}

// maxPrograms bounds the pipeline cache; evicted pipelines are
// destroyed.
const maxPrograms = 32

type programKey struct {
	mode scene.RenderMode
	hash uint64
}

func keyOf(mode scene.RenderMode, body string) programKey {
	h := fnv.New64a()
	_, _ = h.Write([]byte(body))
	return programKey{mode: mode, hash: h.Sum64()}
}

// program is a compiled compute pipeline.
type program struct {
	module   hal.ShaderModule
	pipeline hal.ComputePipeline
}

func (p *program) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
	}
}

// programLocked returns the cached pipeline for mode and body, building
// it on first use.
func (b *Backend) programLocked(mode scene.RenderMode, body string) (*program, error) {
	key := keyOf(mode, body)
	if p, ok := b.programs.Get(key); ok {
		return p, nil
	}

	code, err := CompileSPIRV(mode, body)
	if err != nil {
		return nil, err
	}
	label := "scenevm_" + mode.String()
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create shader module for %s: %w", mode, err)
	}
	pipeline, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: b.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: backend.EntryPoint,
		},
	})
	if err != nil {
		b.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("native: create compute pipeline for %s: %w", mode, err)
	}

	p := &program{module: module, pipeline: pipeline}
	b.programs.Put(key, p)
	slogger().Debug("native: pipeline created", "mode", mode.String(), "spirv_words", len(code))
	return p, nil
}

// PipelineStats returns the pipeline cache hits and misses.
func (b *Backend) PipelineStats() (hits, misses uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits, misses, _ = b.programs.Stats()
	return hits, misses
}
