package backend

import (
	"embed"
	"strings"

	"github.com/gogpu/scenevm/scene"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// EntryPoint is the compute entry point every program body defines.
const EntryPoint = "cs_main"

func mustShader(name string) string {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		panic("backend: missing embedded shader " + name)
	}
	return string(b)
}

var (
	commonWGSL = mustShader("common.wgsl")

	headers = map[scene.RenderMode]string{
		scene.Mode2D:  commonWGSL + mustShader("header_2d.wgsl"),
		scene.Mode3D:  commonWGSL + mustShader("header_3d.wgsl"),
		scene.ModeSDF: commonWGSL + mustShader("header_sdf.wgsl"),
	}

	bodies = map[scene.RenderMode]string{
		scene.Mode2D:  mustShader("body_2d.wgsl"),
		scene.Mode3D:  mustShader("body_3d.wgsl"),
		scene.ModeSDF: mustShader("body_sdf.wgsl"),
	}
)

// Header returns the declarations prepended to every program of mode:
// the uniform block, the bindings and the helper functions.
func Header(mode scene.RenderMode) string {
	return headers[mode]
}

// DefaultBody returns the built-in program body of mode.
func DefaultBody(mode scene.RenderMode) string {
	return bodies[mode]
}

// HeaderLines returns the number of lines Compose places before the
// body, for mapping diagnostics back to body lines.
func HeaderLines(mode scene.RenderMode) int {
	h := headers[mode]
	n := strings.Count(h, "\n")
	if !strings.HasSuffix(h, "\n") {
		n++
	}
	return n
}

// Compose returns the full program of mode. An empty body selects the
// default program.
func Compose(mode scene.RenderMode, body string) string {
	if strings.TrimSpace(body) == "" {
		body = bodies[mode]
	}
	h := headers[mode]
	if !strings.HasSuffix(h, "\n") {
		h += "\n"
	}
	return h + body
}
