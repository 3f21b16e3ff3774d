package bvh

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

type indexMap map[uuid.UUID]uint32

func (m indexMap) TileIndex(id uuid.UUID) (uint32, bool) {
	i, ok := m[id]
	return i, ok
}

func tri3(id scene.GeoID, tile uuid.UUID, a, b, c geom.Vec3) *scene.Poly3D {
	return scene.NewPoly3D(id, tile,
		[][4]float32{{a.X, a.Y, a.Z, 1}, {b.X, b.Y, b.Z, 1}, {c.X, c.Y, c.Z, 1}},
		[][2]float32{{0, 0}, {1, 0}, {0, 1}},
		[][3]int{{0, 1, 2}})
}

func randomGeometry(n int, seed uint64) *Geometry {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	g := &Geometry{}
	for i := 0; i < n; i++ {
		c := geom.V3(rng.Float32()*100, rng.Float32()*100, rng.Float32()*100)
		for k := 0; k < 3; k++ {
			d := geom.V3(rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1)
			g.Vertices = append(g.Vertices, Vertex{Pos: c.Add(d)})
		}
		b := uint32(3 * i)
		g.Indices = append(g.Indices, b, b+1, b+2)
		g.Visible = append(g.Visible, i%3 != 0)
	}
	return g
}

func checkNode(t *testing.T, a *Accel, g *Geometry, idx uint32, seen []bool) {
	t.Helper()
	n := a.Nodes[idx]
	if n.IsLeaf() {
		for _, tri := range a.TriIndices[n.LeftFirst : n.LeftFirst+n.Count] {
			p0, p1, p2 := g.Triangle(int(tri))
			if !n.Bounds.Contains(geom.TriangleBounds(p0, p1, p2), 0) {
				t.Errorf("leaf %d does not contain triangle %d", idx, tri)
			}
			if seen[tri] {
				t.Errorf("triangle %d referenced twice", tri)
			}
			seen[tri] = true
		}
		return
	}
	for _, c := range []uint32{n.LeftFirst, n.LeftFirst + 1} {
		if c <= idx || c >= a.NodeCount {
			t.Fatalf("node %d has bad child %d", idx, c)
		}
		if !n.Bounds.Contains(a.Nodes[c].Bounds, 0) {
			t.Errorf("node %d does not contain child %d", idx, c)
		}
		checkNode(t, a, g, c, seen)
	}
}

func TestBuild_Containment(t *testing.T) {
	for _, leaf := range []int{0, 1, 4, 8, 16, 100} {
		g := randomGeometry(500, 7)
		a := Build(g.Vertices, g.Indices, leaf)
		if a.TriCount != 500 {
			t.Fatalf("leaf %d: tri count = %d", leaf, a.TriCount)
		}
		if int(a.NodeCount) != len(a.Nodes) {
			t.Fatalf("node count %d != %d", a.NodeCount, len(a.Nodes))
		}
		seen := make([]bool, 500)
		checkNode(t, a, g, 0, seen)
		for tri, ok := range seen {
			if !ok {
				t.Errorf("leaf %d: triangle %d unreachable", leaf, tri)
			}
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	g := randomGeometry(300, 11)
	a := Build(g.Vertices, g.Indices, 4)
	b := Build(g.Vertices, g.Indices, 4)
	if !slices.Equal(a.PackNodes(), b.PackNodes()) {
		t.Error("node arrays differ between builds")
	}
	if !slices.Equal(a.TriIndices, b.TriIndices) {
		t.Error("triangle orders differ between builds")
	}
}

func TestBuild_Empty(t *testing.T) {
	a := Build(nil, nil, 8)
	if a.NodeCount != 0 || a.TriCount != 0 {
		t.Errorf("counts = %d/%d", a.NodeCount, a.TriCount)
	}
	if a.Origin != (geom.Vec3{}) || a.Extent != geom.V3(1, 1, 1) {
		t.Errorf("dummy box = %v %v", a.Origin, a.Extent)
	}
	if got := a.PackNodes(); !slices.Equal(got, []uint32{0}) {
		t.Errorf("packed nodes = %v", got)
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	tile := uuid.New()
	tiles := indexMap{tile: 0}
	s := scene.NewStore()
	s.CurrentOrNew().AddPoly3D(tri3(scene.Sector(1), tile, geom.V3(0, 0, 0), geom.V3(1, 0, 0), geom.V3(0, 1, 0)))

	g := Flatten(s, tiles, geom.Identity4())
	a := Build(g.Vertices, g.Indices, 1)
	if a.NodeCount != 1 || a.TriCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", a.NodeCount, a.TriCount)
	}
	want := geom.AABB{Min: geom.V3(0, 0, 0), Max: geom.V3(1, 1, 0)}
	if a.Nodes[0].Bounds != want {
		t.Errorf("root = %v, want %v", a.Nodes[0].Bounds, want)
	}

	s.CurrentOrNew().AddPoly3D(tri3(scene.Sector(2), tile, geom.V3(10, 10, 10), geom.V3(11, 10, 10), geom.V3(10, 11, 10)))
	g = Flatten(s, tiles, geom.Identity4())
	a = Build(g.Vertices, g.Indices, 1)
	if a.NodeCount != 3 || a.TriCount != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", a.NodeCount, a.TriCount)
	}
	want = geom.AABB{Min: geom.V3(0, 0, 0), Max: geom.V3(11, 11, 10)}
	if a.Nodes[0].Bounds != want {
		t.Errorf("root = %v, want %v", a.Nodes[0].Bounds, want)
	}
	if a.Nodes[0].LeftFirst != 1 || a.Nodes[0].IsLeaf() {
		t.Errorf("root = %+v, want internal node with children 1,2", a.Nodes[0])
	}
}

func TestVisibility_DoesNotChangeTree(t *testing.T) {
	tile := uuid.New()
	tiles := indexMap{tile: 0}
	s := scene.NewStore()
	c := s.CurrentOrNew()
	for i := 0; i < 40; i++ {
		o := float32(i) * 2
		c.AddPoly3D(tri3(scene.Sector(uint32(i)), tile, geom.V3(o, 0, 0), geom.V3(o+1, 0, 0), geom.V3(o, 1, 0)))
	}
	c.AddPoly3D(tri3(scene.Item(1), uuid.New(), geom.V3(0, 0, 0), geom.V3(1, 0, 0), geom.V3(0, 1, 0)))

	g := Flatten(s, tiles, geom.Identity4())
	before := Build(g.Vertices, g.Indices, 2)
	if got := g.VisibilityWords(); !slices.Equal(got, []uint32{0xffffffff, 0xff}) {
		t.Fatalf("visibility = %#x", got)
	}

	s.SetVisible(scene.Sector(33), false)
	vis := Visibility(s, tiles)
	if IsVisible(vis, 33) || !IsVisible(vis, 32) || !IsVisible(vis, 39) {
		t.Errorf("visibility = %#x", vis)
	}
	after := Build(Flatten(s, tiles, geom.Identity4()).Vertices, g.Indices, 2)
	if !slices.Equal(before.PackNodes(), after.PackNodes()) {
		t.Error("visibility toggle changed the tree")
	}
}

func TestFlatten_NormalsAndBlend(t *testing.T) {
	tile, tile2 := uuid.New(), uuid.New()
	s := scene.NewStore()
	p := tri3(scene.Sector(1), tile, geom.V3(0, 0, 0), geom.V3(2, 0, 0), geom.V3(0, 2, 0))
	p.TileID2 = &tile2
	p.BlendWeights = []float32{-1, 0.5, 3}
	s.CurrentOrNew().AddPoly3D(p)

	g := Flatten(s, indexMap{tile: 3, tile2: 5}, geom.Translate4(0, 0, 1))
	if len(g.Vertices) != 3 {
		t.Fatalf("vertices = %d", len(g.Vertices))
	}
	v := g.Vertices[1]
	if v.Pos != geom.V3(2, 0, 1) || v.Normal != geom.V3(0, 0, 1) {
		t.Errorf("vertex = %+v", v)
	}
	if v.TileIndex != 3 || v.TileIndex2 != 5 {
		t.Errorf("tiles = %d/%d", v.TileIndex, v.TileIndex2)
	}
	blends := []float32{g.Vertices[0].Blend, g.Vertices[1].Blend, g.Vertices[2].Blend}
	if !slices.Equal(blends, []float32{0, 0.5, 1}) {
		t.Errorf("blend = %v", blends)
	}
	if words := g.VertexWords(); len(words) != 3*VertexWords {
		t.Errorf("vertex words = %d", len(words))
	}

	g = Flatten(s, indexMap{tile: 3}, geom.Identity4())
	if g.Vertices[0].TileIndex2 != 3 {
		t.Errorf("missing second tile should fall back to primary, got %d", g.Vertices[0].TileIndex2)
	}
}

func TestIntersect_MatchesBruteForce(t *testing.T) {
	g := randomGeometry(400, 5)
	a := Build(g.Vertices, g.Indices, 4)
	rng := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 200; i++ {
		r := geom.Ray{
			Origin: geom.V3(rng.Float32()*100, rng.Float32()*100, -10),
			Dir:    geom.V3(rng.Float32()*0.2-0.1, rng.Float32()*0.2-0.1, 1).Normalize(),
		}
		hit, ok := a.Intersect(g, r, float32(1e30), nil)

		bestT, bestTri := float32(1e30), -1
		for tri := 0; tri < g.TriangleCount(); tri++ {
			p0, p1, p2 := g.Triangle(tri)
			if tt, _, _, hitOK := r.IntersectTriangle(p0, p1, p2); hitOK && tt > geom.HitEpsilon && tt < bestT {
				bestT, bestTri = tt, tri
			}
		}
		if ok != (bestTri >= 0) || (ok && hit.Tri != bestTri) {
			t.Fatalf("ray %d: bvh = %v %v, brute force = %d", i, hit, ok, bestTri)
		}
	}
}

func TestPack_Header(t *testing.T) {
	g := randomGeometry(10, 1)
	a := Build(g.Vertices, g.Indices, 2)
	vis := g.VisibilityWords()
	h, data := a.Pack(vis)
	if h.TrisStart != a.NodeCount*NodeWords {
		t.Errorf("tris start = %d", h.TrisStart)
	}
	if int(h.VisStart+h.VisWords) != len(data) {
		t.Errorf("visibility range %d+%d exceeds %d", h.VisStart, h.VisWords, len(data))
	}
	if !slices.Equal(data[h.VisStart:], vis) {
		t.Error("visibility words not at VisStart")
	}
	if len(h.Words()) != GridHeaderWords {
		t.Errorf("header words = %d", len(h.Words()))
	}
}

func BenchmarkBuild(b *testing.B) {
	g := randomGeometry(20000, 3)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Build(g.Vertices, g.Indices, 8)
	}
}
