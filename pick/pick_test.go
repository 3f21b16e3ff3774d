package pick

import (
	"math"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/internal/parallel"
	"github.com/gogpu/scenevm/scene"
)

var testTile = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func triangleAt(id scene.GeoID, z float32) *scene.Poly3D {
	return scene.NewPoly3D(id, testTile,
		[][4]float32{{-1, -1, z, 1}, {1, -1, z, 1}, {0, 1, z, 1}},
		nil,
		[][3]int{{0, 1, 2}},
	)
}

func quad(id scene.GeoID, x0, x1 float32) *scene.Poly3D {
	return scene.NewPoly3D(id, testTile,
		[][4]float32{{x0, -10, 0, 1}, {x1, -10, 0, 1}, {x1, 10, 0, 1}, {x0, 10, 0, 1}},
		nil,
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	)
}

func storeWith(polys ...*scene.Poly3D) *scene.Store {
	s := scene.NewStore()
	ch := s.CurrentOrNew()
	for _, p := range polys {
		ch.AddPoly3D(p)
	}
	return s
}

func TestAt_SingleTriangle(t *testing.T) {
	target := NewTarget(storeWith(triangleAt(scene.Sector(7), 0)), geom.Identity4(), nil)
	cam := scene.DefaultCamera()

	hit, ok := target.At(cam, 64, 64, [2]float32{0.5, 0.5}, Options{})
	if !ok {
		t.Fatal("expected a hit at screen center")
	}
	if hit.ID != scene.Sector(7) {
		t.Errorf("ID = %v, want sector(7)", hit.ID)
	}
	// Camera at z=5 looking down -Z onto the z=0 plane.
	if !approx(hit.Distance, 5) {
		t.Errorf("Distance = %v, want 5", hit.Distance)
	}
	if !approx(hit.Pos.X, 0) || !approx(hit.Pos.Y, 0) || !approx(hit.Pos.Z, 0) {
		t.Errorf("Pos = %v, want origin", hit.Pos)
	}

	if _, ok := target.At(cam, 64, 64, [2]float32{0, 0}, Options{}); ok {
		t.Error("corner ray should miss the triangle")
	}
}

func TestAt_ZeroFramebuffer(t *testing.T) {
	target := NewTarget(storeWith(triangleAt(scene.Sector(1), 0)), geom.Identity4(), nil)
	if _, ok := target.At(scene.DefaultCamera(), 0, 64, [2]float32{0.5, 0.5}, Options{}); ok {
		t.Error("zero-width framebuffer must not hit")
	}
}

func TestAt_Closest(t *testing.T) {
	target := NewTarget(storeWith(
		triangleAt(scene.Sector(1), 0),
		triangleAt(scene.Sector(2), 2),
		triangleAt(scene.Sector(3), -1),
	), geom.Identity4(), nil)

	hit, ok := target.At(scene.DefaultCamera(), 64, 64, [2]float32{0.5, 0.5}, Options{})
	if !ok || hit.ID != scene.Sector(2) {
		t.Fatalf("hit = %v, %v; want sector(2)", hit, ok)
	}
	if !approx(hit.Distance, 3) {
		t.Errorf("Distance = %v, want 3", hit.Distance)
	}
}

func TestAt_Hidden(t *testing.T) {
	front := triangleAt(scene.Sector(1), 1)
	front.Visible = false
	target := NewTarget(storeWith(front, triangleAt(scene.Sector(2), 0)), geom.Identity4(), nil)
	cam := scene.DefaultCamera()
	center := [2]float32{0.5, 0.5}

	hit, ok := target.At(cam, 64, 64, center, Options{})
	if !ok || hit.ID != scene.Sector(2) {
		t.Errorf("without hidden: hit = %v, %v; want sector(2)", hit, ok)
	}
	hit, ok = target.At(cam, 64, 64, center, Options{IncludeHidden: true})
	if !ok || hit.ID != scene.Sector(1) {
		t.Errorf("with hidden: hit = %v, %v; want sector(1)", hit, ok)
	}
}

func TestAt_Transform(t *testing.T) {
	// Moving the triangle 1 unit toward the camera shortens the hit.
	target := NewTarget(storeWith(triangleAt(scene.Sector(1), 0)), geom.Translate4(0, 0, 1), nil)
	hit, ok := target.At(scene.DefaultCamera(), 64, 64, [2]float32{0.5, 0.5}, Options{})
	if !ok || !approx(hit.Distance, 4) {
		t.Errorf("hit = %v, %v; want distance 4", hit, ok)
	}
}

func TestRay_BillboardCenter(t *testing.T) {
	bb := scene.NewAvatarBillboard(scene.Character(1), geom.V3(0, 0, 0), 2, 1)
	target := NewTarget(scene.NewStore(), geom.Identity4(), []scene.DynamicObject{bb})
	r := geom.Ray{Origin: geom.V3(0, 0, 5), Dir: geom.V3(0, 0, -1)}

	if _, ok := target.Ray(r, Options{}); ok {
		t.Error("billboards must be ignored unless requested")
	}
	hit, ok := target.Ray(r, Options{IncludeBillboards: true})
	if !ok || hit.ID != scene.Character(1) || !approx(hit.Distance, 5) {
		t.Fatalf("hit = %v, %v; want character(1) at 5", hit, ok)
	}

	hw, hh := bb.HalfExtents()
	_, u, v, ok := r.IntersectQuad(bb.Center, bb.ViewRight.Mul(hw), bb.ViewUp.Mul(hh), 100)
	if !ok || !approx(u, 0) || !approx(v, 0) {
		t.Errorf("local uv = (%v, %v), %v; want (0, 0)", u, v, ok)
	}
}

func TestRay_BillboardEdges(t *testing.T) {
	// Half extents (1, 0.5).
	bb := scene.NewTileBillboard(scene.Item(4), testTile, geom.V3(0, 0, 0), 2, 1)
	target := NewTarget(scene.NewStore(), geom.Identity4(), []scene.DynamicObject{bb})
	opts := Options{IncludeBillboards: true}

	tests := []struct {
		x, y float32
		want bool
	}{
		{0.99, 0, true},
		{0, 0.49, true},
		{-0.99, -0.49, true},
		{1.01, 0, false},
		{0, 0.51, false},
		{-1.01, 0, false},
	}
	for _, tt := range tests {
		r := geom.Ray{Origin: geom.V3(tt.x, tt.y, 5), Dir: geom.V3(0, 0, -1)}
		_, ok := target.Ray(r, opts)
		if ok != tt.want {
			t.Errorf("ray at (%v, %v): hit = %v, want %v", tt.x, tt.y, ok, tt.want)
		}
	}
}

func TestRay_BillboardVsTriangle(t *testing.T) {
	store := storeWith(triangleAt(scene.Sector(1), 1))
	near := scene.NewAvatarBillboard(scene.Character(1), geom.V3(0, 0, 2), 1, 1)
	far := scene.NewAvatarBillboard(scene.Character(2), geom.V3(0, 0, 0), 1, 1)
	r := geom.Ray{Origin: geom.V3(0, 0, 5), Dir: geom.V3(0, 0, -1)}
	opts := Options{IncludeBillboards: true}

	hit, _ := NewTarget(store, geom.Identity4(), []scene.DynamicObject{far}).Ray(r, opts)
	if hit.ID != scene.Sector(1) {
		t.Errorf("far billboard: hit %v, want sector(1)", hit.ID)
	}
	hit, _ = NewTarget(store, geom.Identity4(), []scene.DynamicObject{far, near}).Ray(r, opts)
	if hit.ID != scene.Character(1) {
		t.Errorf("near billboard: hit %v, want character(1)", hit.ID)
	}
}

func TestSetBillboards_DropsInvalid(t *testing.T) {
	target := NewTarget(scene.NewStore(), geom.Identity4(), nil)
	bad := scene.NewAvatarBillboard(scene.Character(1), geom.Vec3{}, 0, 1)
	nan := scene.NewAvatarBillboard(scene.Character(2), geom.Vec3{}, float32(math.NaN()), 1)
	target.SetBillboards([]scene.DynamicObject{bad, nan})

	r := geom.Ray{Origin: geom.V3(0, 0, 5), Dir: geom.V3(0, 0, -1)}
	if _, ok := target.Ray(r, Options{IncludeBillboards: true}); ok {
		t.Error("degenerate billboards must never be hit")
	}
}

func rectScene() (*Target, scene.Camera3D) {
	target := NewTarget(storeWith(quad(scene.Sector(1), -10, 0), quad(scene.Sector(2), 0, 10)), geom.Identity4(), nil)
	// 100x100 pixels map to x, y in [-5, 5].
	cam := scene.DefaultCamera().WithOrtho(5, 0.01, 1000)
	return target, cam
}

func TestInRect(t *testing.T) {
	target, cam := rectScene()
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()

	tests := []struct {
		name string
		rect Rect
		kind scene.GeoKind
		want []scene.GeoID
	}{
		{"full", Rect{0, 0, 100, 100}, scene.GeoSector, []scene.GeoID{scene.Sector(1), scene.Sector(2)}},
		{"left", Rect{0, 0, 40, 100}, scene.GeoSector, []scene.GeoID{scene.Sector(1)}},
		{"right reversed", Rect{100, 100, 60, 0}, scene.GeoSector, []scene.GeoID{scene.Sector(2)}},
		{"clamped", Rect{-50, -50, 20, 500}, scene.GeoSector, []scene.GeoID{scene.Sector(1)}},
		{"other kind", Rect{0, 0, 100, 100}, scene.GeoCharacter, nil},
		{"degenerate", Rect{10, 10, 10, 50}, scene.GeoSector, nil},
		{"outside", Rect{200, 200, 300, 300}, scene.GeoSector, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range []*parallel.WorkerPool{pool, nil} {
				got := target.InRect(p, cam, 100, 100, tt.rect, tt.kind, Options{})
				if !slices.Equal(got, tt.want) {
					t.Errorf("InRect(pool=%v) = %v, want %v", p != nil, got, tt.want)
				}
			}
		})
	}
}

func TestInRect_ZeroFramebuffer(t *testing.T) {
	target, cam := rectScene()
	if got := target.InRect(nil, cam, 0, 0, Rect{0, 0, 10, 10}, scene.GeoSector, Options{}); got != nil {
		t.Errorf("InRect = %v, want nil", got)
	}
}

func TestInRect_Billboards(t *testing.T) {
	target, cam := rectScene()
	bb := scene.NewAvatarBillboard(scene.Character(9), geom.V3(0, 0, 1), 2, 2)
	target.SetBillboards([]scene.DynamicObject{bb})

	got := target.InRect(nil, cam, 100, 100, Rect{0, 0, 100, 100}, scene.GeoCharacter, Options{IncludeBillboards: true})
	if !slices.Equal(got, []scene.GeoID{scene.Character(9)}) {
		t.Errorf("InRect = %v, want [character(9)]", got)
	}
}

func BenchmarkInRect(b *testing.B) {
	store := scene.NewStore()
	ch := store.CurrentOrNew()
	for i := 0; i < 64; i++ {
		x := float32(i%8) - 4
		y := float32(i/8) - 4
		ch.AddPoly3D(scene.SpherePoly3D(scene.Sector(uint32(i)), testTile, geom.V3(x, y, 0), 0.4, 8, 12))
	}
	target := NewTarget(store, geom.Identity4(), nil)
	cam := scene.DefaultCamera().WithOrtho(5, 0.01, 1000)
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		target.InRect(pool, cam, 128, 128, Rect{0, 0, 128, 128}, scene.GeoSector, Options{})
	}
}
