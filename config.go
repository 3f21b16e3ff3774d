package scenevm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/geom"
)

// Config holds the construction settings of a SceneVM.
type Config struct {
	// Backend names a registered backend. Empty selects backend.Default.
	Backend string `yaml:"backend" toml:"backend"`

	AtlasWidth  uint32 `yaml:"atlas_width" toml:"atlas_width"`
	AtlasHeight uint32 `yaml:"atlas_height" toml:"atlas_height"`

	// LeafSize is the BVH leaf size, clamped to [1,16] at build time.
	LeafSize int `yaml:"leaf_size" toml:"leaf_size"`

	// PickWorkers is the rect-pick worker count; 0 selects GOMAXPROCS.
	PickWorkers int `yaml:"pick_workers" toml:"pick_workers"`

	PingPong   bool       `yaml:"ping_pong" toml:"ping_pong"`
	Background [4]float32 `yaml:"background" toml:"background"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Backend:     backend.BackendCapture,
		AtlasWidth:  4096,
		AtlasHeight: 4096,
		LeafSize:    8,
		Background:  [4]float32{1, 0.8, 0.2, 1},
	}
}

func (c Config) background() geom.Vec4 {
	return geom.V4(c.Background[0], c.Background[1], c.Background[2], c.Background[3])
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file. Fields
// missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &c)
	case ".toml":
		err = toml.Unmarshal(raw, &c)
	default:
		return c, fmt.Errorf("scenevm: unsupported config format %q", ext)
	}
	if err != nil {
		return c, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}
