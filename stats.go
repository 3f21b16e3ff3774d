package scenevm

import (
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GeometryStats totals the content of every layer.
type GeometryStats struct {
	Layers     int
	Chunks     int
	Polys2D    int
	Polys3D    int
	LineStrips int
	Tiles      int
	Lights     int
	Billboards int
	// AtlasBytes is the size of the color and material atlases together.
	AtlasBytes uint64
}

// GeometryStats returns totals across all layers.
func (vm *SceneVM) GeometryStats() GeometryStats {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	aw, ah := vm.atlas.Size()
	s := GeometryStats{
		Layers:     len(vm.layers),
		Tiles:      vm.atlas.TileCount(),
		AtlasBytes: 2 * 4 * uint64(aw) * uint64(ah),
	}
	for _, l := range vm.layers {
		p2, p3, ls := l.store.Counts()
		s.Chunks += l.store.Len()
		s.Polys2D += p2
		s.Polys3D += p3
		s.LineStrips += ls
		s.Lights += l.dyn.LightCount()
		s.Billboards += l.dyn.ObjectCount()
	}
	return s
}

// Report formats s for humans, grouping digits the way tag does.
func (s GeometryStats) Report(tag language.Tag) string {
	p := message.NewPrinter(tag)
	var b strings.Builder
	p.Fprintf(&b, "layers:      %d\n", s.Layers)
	p.Fprintf(&b, "chunks:      %d\n", s.Chunks)
	p.Fprintf(&b, "2d polygons: %d\n", s.Polys2D)
	p.Fprintf(&b, "3d polygons: %d\n", s.Polys3D)
	p.Fprintf(&b, "line strips: %d\n", s.LineStrips)
	p.Fprintf(&b, "tiles:       %d\n", s.Tiles)
	p.Fprintf(&b, "lights:      %d\n", s.Lights)
	p.Fprintf(&b, "billboards:  %d\n", s.Billboards)
	p.Fprintf(&b, "atlas:       %s\n", humanize.IBytes(s.AtlasBytes))
	return b.String()
}
