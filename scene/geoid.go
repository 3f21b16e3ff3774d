package scene

import (
	"fmt"
	"strings"
)

// GeoKind is the variant tag of a GeoID.
type GeoKind uint8

// Geometry kinds.
const (
	GeoUnknown GeoKind = iota
	GeoVertex
	GeoLinedef
	GeoSector
	GeoCharacter
	GeoItem
	GeoLight
	GeoItemLight
	GeoTriangle
	GeoTerrain
	GeoHole
	GeoGizmo

	geoKindCount
)

var geoKindNames = [...]string{
	GeoUnknown:   "unknown",
	GeoVertex:    "vertex",
	GeoLinedef:   "linedef",
	GeoSector:    "sector",
	GeoCharacter: "character",
	GeoItem:      "item",
	GeoLight:     "light",
	GeoItemLight: "item_light",
	GeoTriangle:  "triangle",
	GeoTerrain:   "terrain",
	GeoHole:      "hole",
	GeoGizmo:     "gizmo",
}

// String returns the lower-case kind name.
func (k GeoKind) String() string {
	if k < geoKindCount {
		return geoKindNames[k]
	}
	return fmt.Sprintf("GeoKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k GeoKind) MarshalText() ([]byte, error) {
	if k >= geoKindCount {
		return nil, fmt.Errorf("scene: invalid geometry kind %d", uint8(k))
	}
	return []byte(geoKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *GeoKind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range geoKindNames {
		if name == s {
			*k = GeoKind(i)
			return nil
		}
	}
	return fmt.Errorf("scene: unknown geometry kind %q", s)
}

// ParseGeoKind parses a kind name such as "sector".
func ParseGeoKind(s string) (GeoKind, error) {
	var k GeoKind
	err := k.UnmarshalText([]byte(s))
	return k, err
}

// GeoID identifies one logical scene object. Equality is structural:
// two ids are equal when kind and payload match, so GeoID is usable as a
// map key. Terrain and Hole use both payload fields; every other kind
// uses A only.
type GeoID struct {
	Kind GeoKind `json:"kind"`
	A    int64   `json:"a"`
	B    int64   `json:"b,omitempty"`
}

// Unknown returns an Unknown id.
func Unknown(id uint32) GeoID { return GeoID{Kind: GeoUnknown, A: int64(id)} }

// Vertex returns a Vertex id.
func Vertex(id uint32) GeoID { return GeoID{Kind: GeoVertex, A: int64(id)} }

// Linedef returns a Linedef id.
func Linedef(id uint32) GeoID { return GeoID{Kind: GeoLinedef, A: int64(id)} }

// Sector returns a Sector id.
func Sector(id uint32) GeoID { return GeoID{Kind: GeoSector, A: int64(id)} }

// Character returns a Character id.
func Character(id uint32) GeoID { return GeoID{Kind: GeoCharacter, A: int64(id)} }

// Item returns an Item id.
func Item(id uint32) GeoID { return GeoID{Kind: GeoItem, A: int64(id)} }

// LightID returns a Light id.
func LightID(id uint32) GeoID { return GeoID{Kind: GeoLight, A: int64(id)} }

// ItemLight returns an ItemLight id.
func ItemLight(id uint32) GeoID { return GeoID{Kind: GeoItemLight, A: int64(id)} }

// Triangle returns a Triangle id.
func Triangle(id uint32) GeoID { return GeoID{Kind: GeoTriangle, A: int64(id)} }

// Terrain returns a Terrain id for grid cell (x, y).
func Terrain(x, y int32) GeoID { return GeoID{Kind: GeoTerrain, A: int64(x), B: int64(y)} }

// Hole returns a Hole id.
func Hole(a, b uint32) GeoID { return GeoID{Kind: GeoHole, A: int64(a), B: int64(b)} }

// Gizmo returns a Gizmo id.
func Gizmo(id uint32) GeoID { return GeoID{Kind: GeoGizmo, A: int64(id)} }

// SameKind reports whether id and other are the same variant,
// regardless of payload.
func (id GeoID) SameKind(other GeoID) bool {
	return id.Kind == other.Kind
}

// Less orders ids by kind, then payload.
func (id GeoID) Less(other GeoID) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	if id.A != other.A {
		return id.A < other.A
	}
	return id.B < other.B
}

// String returns a readable form such as "sector(4)" or "terrain(1,-2)".
func (id GeoID) String() string {
	switch id.Kind {
	case GeoTerrain, GeoHole:
		return fmt.Sprintf("%s(%d,%d)", id.Kind, id.A, id.B)
	default:
		return fmt.Sprintf("%s(%d)", id.Kind, id.A)
	}
}
