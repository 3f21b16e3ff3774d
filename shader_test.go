package scenevm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/scene"
)

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		header int
		want   []Diagnostic
	}{
		{
			name:   "line keyword",
			msg:    "error at line 120: unknown identifier `foo`",
			header: 100,
			want:   []Diagnostic{{Line: 20, Message: "error at line 120: unknown identifier `foo`"}},
		},
		{
			name:   "line:column",
			msg:    "shader.wgsl:105:7: expected `;`\n\n  note: here",
			header: 100,
			want: []Diagnostic{
				{Line: 5, Message: "shader.wgsl:105:7: expected `;`"},
				{Message: "note: here"},
			},
		},
		{
			name:   "inside header",
			msg:    "line 12: redefinition",
			header: 100,
			want:   []Diagnostic{{Message: "line 12: redefinition"}},
		},
		{
			name: "empty",
			msg:  "",
			want: []Diagnostic{{Message: "compilation failed"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diagnostics(tt.msg, tt.header))
		})
	}
}

func TestShaderError(t *testing.T) {
	err := &ShaderError{Mode: scene.ModeSDF, Diagnostics: []Diagnostic{{Line: 3, Message: "bad"}, {Message: "worse"}}}
	assert.True(t, errors.Is(err, ErrShaderCompilation))
	assert.Equal(t, "scenevm: sdf shader: line 3: bad; worse", err.Error())
}

func TestCompileShader(t *testing.T) {
	for _, mode := range []scene.RenderMode{scene.Mode2D, scene.Mode3D, scene.ModeSDF} {
		if err := CheckShader(mode, ""); err != nil {
			t.Skipf("built-in %s program not accepted by this compiler: %v", mode, err)
		}
	}

	vm, _ := newTestVM(t)
	body := backend.DefaultBody(scene.ModeSDF)
	require.NoError(t, vm.CompileShaderSDF(body))
	l, _ := vm.Layer(0)
	assert.Equal(t, body, l.sourceSDF)

	err := vm.CompileShader2D("fn cs_main( {")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShaderCompilation)
	var se *ShaderError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scene.Mode2D, se.Mode)
	assert.NotEmpty(t, se.Diagnostics)
	assert.Empty(t, l.source2D, "a failed body is not installed")
}
