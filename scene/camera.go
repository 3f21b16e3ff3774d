package scene

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"github.com/gogpu/scenevm/geom"
)

// CameraKind selects the projection used by Camera3D.
type CameraKind uint8

const (
	// OrthoIso is an orthographic camera, typically isometric.
	OrthoIso CameraKind = iota
	// OrbitPersp is a perspective camera orbiting a target.
	OrbitPersp
	// FirstPersonPersp is a perspective camera at eye height.
	FirstPersonPersp
)

var cameraKindNames = [...]string{"ortho_iso", "orbit_persp", "first_person_persp"}

func (k CameraKind) String() string {
	if int(k) < len(cameraKindNames) {
		return cameraKindNames[k]
	}
	return fmt.Sprintf("CameraKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k CameraKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CameraKind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range cameraKindNames {
		if name == s {
			*k = CameraKind(i)
			return nil
		}
	}
	return fmt.Errorf("scene: unknown camera kind %q", s)
}

// Camera3D describes a 3D view. Forward, Right and Up are expected to
// form an orthonormal basis; the With* builders keep it that way.
type Camera3D struct {
	Kind       CameraKind `json:"kind"`
	Pos        geom.Vec3  `json:"pos"`
	Forward    geom.Vec3  `json:"forward"`
	Right      geom.Vec3  `json:"right"`
	Up         geom.Vec3  `json:"up"`
	VFovDeg    float32    `json:"vfov_deg"`
	OrthoHalfH float32    `json:"ortho_half_h"`
	Near       float32    `json:"near"`
	Far        float32    `json:"far"`
}

// DefaultCamera returns a perspective camera at (0,0,5) looking down -Z.
func DefaultCamera() Camera3D {
	return Camera3D{
		Kind:       OrbitPersp,
		Pos:        geom.V3(0, 0, 5),
		Forward:    geom.V3(0, 0, -1),
		Right:      geom.V3(1, 0, 0),
		Up:         geom.V3(0, 1, 0),
		VFovDeg:    50,
		OrthoHalfH: 5,
		Near:       0.01,
		Far:        1000,
	}
}

// IsoCamera returns an orthographic camera looking along (1,-1,-1).
func IsoCamera() Camera3D {
	dir := geom.V3(1, -1, -1).Normalize()
	right := geom.V3(1, 1, 0).Normalize()
	c := DefaultCamera()
	c.Kind = OrthoIso
	c.Pos = geom.Vec3{}
	c.Forward = dir
	c.Right = right
	c.Up = right.Cross(dir).Normalize()
	return c
}

// WithBasis sets an orthonormal basis from forward and an up hint. A
// missing hint falls back to +Y, and a hint collinear with forward to +X.
func (c Camera3D) WithBasis(forward, upHint geom.Vec3) Camera3D {
	f := forward.Normalize()
	hint := upHint
	if hint.Dot(hint) <= 1e-8 {
		hint = geom.V3(0, 1, 0)
	}
	r := f.Cross(hint)
	if r.Dot(r) < 1e-12 {
		r = f.Cross(geom.V3(1, 0, 0))
	}
	r = r.Normalize()
	c.Forward = f
	c.Right = r
	c.Up = r.Cross(f).Normalize()
	return c
}

// WithBasisExact sets the basis without re-orthonormalizing.
func (c Camera3D) WithBasisExact(forward, right, up geom.Vec3) Camera3D {
	c.Forward, c.Right, c.Up = forward, right, up
	return c
}

// LookAt places the camera at pos looking at target.
func (c Camera3D) LookAt(pos, target, upHint geom.Vec3) Camera3D {
	c.Pos = pos
	return c.WithBasis(target.Sub(pos), upHint)
}

// WithPos moves the camera.
func (c Camera3D) WithPos(pos geom.Vec3) Camera3D {
	c.Pos = pos
	return c
}

// WithPerspective switches to a perspective projection.
func (c Camera3D) WithPerspective(vfovDeg, near, far float32) Camera3D {
	c.Kind = OrbitPersp
	c.VFovDeg = vfovDeg
	c.Near = max(near, 1e-6)
	c.Far = far
	return c
}

// WithOrtho switches to an orthographic projection with the given
// half height.
func (c Camera3D) WithOrtho(halfH, near, far float32) Camera3D {
	c.Kind = OrthoIso
	c.OrthoHalfH = max(halfH, 1e-6)
	c.Near = max(near, 1e-6)
	c.Far = far
	return c
}

// RayFromUV returns the world-space ray through screen position uv,
// where (0,0) is the top-left corner and (1,1) the bottom-right. uv is
// clamped to the unit square and the framebuffer size to at least 1.
func (c Camera3D) RayFromUV(fbW, fbH uint32, uv [2]float32) geom.Ray {
	u := geom.Clamp(uv[0], 0, 1)
	v := geom.Clamp(uv[1], 0, 1)
	ndcX := u*2 - 1
	ndcY := -(v*2 - 1)
	aspect := float32(max(fbW, 1)) / float32(max(fbH, 1))

	if c.Kind == OrthoIso {
		halfW := c.OrthoHalfH * aspect
		origin := c.Pos.Add(c.Right.Mul(ndcX * halfW)).Add(c.Up.Mul(ndcY * c.OrthoHalfH))
		return geom.Ray{Origin: origin, Dir: c.Forward.Normalize()}
	}

	tanHalf := math32.Tan(c.VFovDeg * math32.Pi / 180 * 0.5)
	dx := ndcX * aspect * tanHalf
	dy := ndcY * tanHalf
	dir := c.Forward.Add(c.Right.Mul(dx)).Add(c.Up.Mul(dy)).Normalize()
	return geom.Ray{Origin: c.Pos, Dir: dir}
}
