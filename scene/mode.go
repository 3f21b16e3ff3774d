package scene

import (
	"fmt"
	"strings"
)

// RenderMode selects the rasterizer a layer draws with.
type RenderMode uint8

const (
	// Mode2D draws the tile-binned 2D polygons.
	Mode2D RenderMode = iota
	// Mode3D ray-casts the 3D geometry through the BVH.
	Mode3D
	// ModeSDF evaluates the layer's signed-distance program.
	ModeSDF
)

var renderModeNames = [...]string{"2d", "3d", "sdf"}

func (m RenderMode) String() string {
	if int(m) < len(renderModeNames) {
		return renderModeNames[m]
	}
	return fmt.Sprintf("RenderMode(%d)", uint8(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m RenderMode) MarshalText() ([]byte, error) {
	if int(m) >= len(renderModeNames) {
		return nil, fmt.Errorf("scene: invalid render mode %d", uint8(m))
	}
	return []byte(renderModeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RenderMode) UnmarshalText(b []byte) error {
	mode, err := ParseRenderMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseRenderMode parses "2d", "3d" or "sdf", ignoring case.
func ParseRenderMode(s string) (RenderMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range renderModeNames {
		if name == s {
			return RenderMode(i), nil
		}
	}
	return Mode2D, fmt.Errorf("scene: unknown render mode %q", s)
}

// Limits of the per-layer shader state.
const (
	// GPSlots is the number of general-purpose vec4 shader slots.
	GPSlots = 10
	// PaletteSize is the number of palette entries.
	PaletteSize = 256
)
