package geom

import (
	"testing"

	"github.com/chewxy/math32"
)

func approx(a, b, eps float32) bool {
	return math32.Abs(a-b) <= eps
}

func TestMat3_InverseRoundTrip(t *testing.T) {
	m := Translate3(3, -2).Mul(Rotate3(0.7)).Mul(Scale3(2, 0.5))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("Inverse() reported singular matrix")
	}
	id := m.Mul(inv)
	want := Identity3()
	for i := range id {
		if !approx(id[i], want[i], 1e-5) {
			t.Fatalf("m * inv = %v, want identity", id)
		}
	}
}

func TestMat3_InverseSingular(t *testing.T) {
	inv, ok := Scale3(0, 1).Inverse()
	if ok {
		t.Error("Inverse() of singular matrix reported ok")
	}
	if inv != Identity3() {
		t.Errorf("singular Inverse() = %v, want identity", inv)
	}
}

func TestMat3_TransformPoint(t *testing.T) {
	p := Translate3(10, 20).TransformPoint(1, 2)
	if p != V2(11, 22) {
		t.Errorf("TransformPoint = %v, want (11,22)", p)
	}
}

func TestMat4_TransformPointDivide(t *testing.T) {
	m := Identity4()
	m[15] = 2
	p := m.TransformPoint(V3(2, 4, 6), 1)
	if p != V3(1, 2, 3) {
		t.Errorf("TransformPoint = %v, want (1,2,3)", p)
	}

	m[15] = 0
	p = m.TransformPoint(V3(2, 4, 6), 1)
	if p != V3(2, 4, 6) {
		t.Errorf("TransformPoint with w=0 = %v, want (2,4,6)", p)
	}
}

func TestMat4_TransformDirIgnoresTranslation(t *testing.T) {
	d := Translate4(5, 5, 5).TransformDir(V3(1, 0, 0))
	if d != V3(1, 0, 0) {
		t.Errorf("TransformDir = %v, want (1,0,0)", d)
	}
}

func TestAABB_SurfaceArea(t *testing.T) {
	b := AABB{Min: V3(0, 0, 0), Max: V3(1, 2, 3)}
	if got := b.SurfaceArea(); !approx(got, 22, 1e-6) {
		t.Errorf("SurfaceArea = %v, want 22", got)
	}
	if got := EmptyAABB().SurfaceArea(); got <= 0 {
		t.Errorf("empty SurfaceArea = %v, want > 0", got)
	}
}

func TestRay_IntersectTriangle(t *testing.T) {
	r := Ray{Origin: V3(0.25, 0.25, 5), Dir: V3(0, 0, -1)}
	tt, u, v, ok := r.IntersectTriangle(V3(0, 0, 1), V3(1, 0, 1), V3(0, 1, 1))
	if !ok {
		t.Fatal("expected hit")
	}
	if !approx(tt, 4, 1e-5) {
		t.Errorf("t = %v, want 4", tt)
	}
	if !approx(u, 0.25, 1e-5) || !approx(v, 0.25, 1e-5) {
		t.Errorf("uv = (%v,%v), want (0.25,0.25)", u, v)
	}
}

func TestRay_IntersectTriangleRejects(t *testing.T) {
	a, b, c := V3(0, 0, 1), V3(1, 0, 1), V3(0, 1, 1)
	tests := []struct {
		name string
		ray  Ray
	}{
		{"parallel", Ray{Origin: V3(0, 0, 0), Dir: V3(1, 0, 0)}},
		{"outside", Ray{Origin: V3(2, 2, 5), Dir: V3(0, 0, -1)}},
		{"behind", Ray{Origin: V3(0.2, 0.2, 0), Dir: V3(0, 0, -1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, ok := tt.ray.IntersectTriangle(a, b, c); ok {
				t.Error("expected miss")
			}
		})
	}
}

func TestRay_IntersectQuad(t *testing.T) {
	center := V3(0, 0, 0)
	r := V3(2, 0, 0) // half width 2
	u := V3(0, 1, 0) // half height 1

	ray := Ray{Origin: V3(0, 0, 10), Dir: V3(0, 0, -1)}
	tt, lu, lv, ok := ray.IntersectQuad(center, r, u, math32.Inf(1))
	if !ok {
		t.Fatal("expected center hit")
	}
	if !approx(tt, 10, 1e-5) || !approx(lu, 0, 1e-6) || !approx(lv, 0, 1e-6) {
		t.Errorf("hit = (t=%v, u=%v, v=%v), want (10, 0, 0)", tt, lu, lv)
	}

	ray.Origin = V3(2.01, 0, 10)
	if _, _, _, ok := ray.IntersectQuad(center, r, u, math32.Inf(1)); ok {
		t.Error("expected miss just outside half width")
	}
	ray.Origin = V3(0, 1.01, 10)
	if _, _, _, ok := ray.IntersectQuad(center, r, u, math32.Inf(1)); ok {
		t.Error("expected miss just outside half height")
	}

	ray.Origin = V3(0, 0, 10)
	if _, _, _, ok := ray.IntersectQuad(center, r, u, 5); ok {
		t.Error("expected miss beyond maxT")
	}
}
