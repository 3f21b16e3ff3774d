package scene

import "github.com/gogpu/scenevm/geom"

// LightType tags the falloff model of a light.
type LightType uint32

const (
	// PointLight radiates from a position with distance falloff.
	PointLight LightType = iota
)

// Light is a dynamic light owned by a layer and keyed by GeoID.
// Flicker is an attenuation amplitude in [0,1]; zero disables it.
type Light struct {
	Type          LightType `json:"type"`
	Position      geom.Vec3 `json:"position"`
	Color         geom.Vec3 `json:"color"`
	Intensity     float32   `json:"intensity"`
	Radius        float32   `json:"radius"`
	StartDistance float32   `json:"start_distance"`
	EndDistance   float32   `json:"end_distance"`
	Flicker       float32   `json:"flicker"`
	Emitting      bool      `json:"emitting"`
}

// NewPointLight returns an emitting white point light at pos.
func NewPointLight(pos geom.Vec3) Light {
	return Light{
		Type:        PointLight,
		Position:    pos,
		Color:       geom.V3(1, 1, 1),
		Intensity:   1,
		Radius:      10,
		EndDistance: 10,
		Emitting:    true,
	}
}
