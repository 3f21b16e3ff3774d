package scenevm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/command"
	"github.com/gogpu/scenevm/scene"
)

// Diagnostic is one compiler message. Line is 1-based and relative to
// the submitted body; 0 means the message has no position or points into
// the built-in header.
type Diagnostic struct {
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// ShaderError reports a shader body that failed to compile.
type ShaderError struct {
	Mode        scene.RenderMode
	Diagnostics []Diagnostic
}

func (e *ShaderError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.String()
	}
	return fmt.Sprintf("scenevm: %s shader: %s", e.Mode, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrShaderCompilation.
func (e *ShaderError) Unwrap() error { return ErrShaderCompilation }

// CompileShader2D validates body as the 2D program and installs it on
// the active layer.
func (vm *SceneVM) CompileShader2D(body string) error {
	return vm.compileShader(scene.Mode2D, body)
}

// CompileShader3D validates body as the 3D program and installs it on
// the active layer.
func (vm *SceneVM) CompileShader3D(body string) error {
	return vm.compileShader(scene.Mode3D, body)
}

// CompileShaderSDF validates body as the SDF program and installs it on
// the active layer.
func (vm *SceneVM) CompileShaderSDF(body string) error {
	return vm.compileShader(scene.ModeSDF, body)
}

func (vm *SceneVM) compileShader(mode scene.RenderMode, body string) error {
	if err := CheckShader(mode, body); err != nil {
		return err
	}
	var cmd command.Command
	switch mode {
	case scene.Mode3D:
		cmd = command.SetSource3D{Source: body}
	case scene.ModeSDF:
		cmd = command.SetSourceSDF{Source: body}
	default:
		cmd = command.SetSource2D{Source: body}
	}
	return vm.Apply(cmd)
}

// CheckShader compiles body against the header of mode without
// installing it. An empty body checks the built-in program.
func CheckShader(mode scene.RenderMode, body string) error {
	if _, err := naga.Compile(backend.Compose(mode, body)); err != nil {
		return &ShaderError{Mode: mode, Diagnostics: diagnostics(err.Error(), backend.HeaderLines(mode))}
	}
	return nil
}

var linePattern = regexp.MustCompile(`(?:line\s+(\d+))|(?:(\d+):\d+)`)

// diagnostics splits compiler output into messages and rebases their
// line numbers onto the body, which starts after headerLines lines.
func diagnostics(msg string, headerLines int) []Diagnostic {
	var out []Diagnostic
	for _, raw := range strings.Split(msg, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		d := Diagnostic{Message: text}
		if m := linePattern.FindStringSubmatch(text); m != nil {
			n := m[1]
			if n == "" {
				n = m[2]
			}
			if line, err := strconv.Atoi(n); err == nil && line > headerLines {
				d.Line = line - headerLines
			}
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		out = append(out, Diagnostic{Message: "compilation failed"})
	}
	return out
}
