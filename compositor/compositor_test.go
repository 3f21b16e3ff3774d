package compositor

import (
	"errors"
	"testing"

	"github.com/gogpu/scenevm/geom"
)

type fakeSurface struct {
	id   int
	w, h uint32
}

func (s *fakeSurface) Size() (uint32, uint32) { return s.w, s.h }

type fakeAlloc struct {
	next     int
	live     map[*fakeSurface]bool
	cleared  map[*fakeSurface]geom.Vec4
	clears   int
	failSize uint32
}

func newFakeAlloc() *fakeAlloc {
	return &fakeAlloc{live: map[*fakeSurface]bool{}, cleared: map[*fakeSurface]geom.Vec4{}}
}

func (a *fakeAlloc) NewSurface(w, h uint32) (Surface, error) {
	if a.failSize != 0 && w == a.failSize {
		return nil, errors.New("out of memory")
	}
	a.next++
	s := &fakeSurface{id: a.next, w: w, h: h}
	a.live[s] = true
	return s, nil
}

func (a *fakeAlloc) ClearSurface(s Surface, c geom.Vec4) error {
	a.clears++
	a.cleared[s.(*fakeSurface)] = c
	return nil
}

func (a *fakeAlloc) ReleaseSurface(s Surface) {
	delete(a.live, s.(*fakeSurface))
}

var bg = geom.V4(1, 0.8, 0.2, 1)

func TestSingle(t *testing.T) {
	alloc := newFakeAlloc()
	c := New(alloc, false)

	f, err := c.Acquire(64, 32, 5, bg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if w, h := f.Write.Size(); w != 64 || h != 32 {
		t.Errorf("write size = %dx%d, want 64x32", w, h)
	}
	if w, h := f.Read.Size(); w != 1 || h != 1 {
		t.Errorf("read size = %dx%d, want 1x1 dummy", w, h)
	}
	if got := alloc.cleared[f.Read.(*fakeSurface)]; got != (geom.Vec4{}) {
		t.Errorf("dummy cleared to %v, want transparent", got)
	}
	if got := alloc.cleared[f.Write.(*fakeSurface)]; got != bg {
		t.Errorf("write cleared to %v, want background", got)
	}
	if f.NextFront != 0 {
		t.Errorf("NextFront = %d, want 0", f.NextFront)
	}

	// Same size reuses the surface, new size replaces it.
	f2, _ := c.Acquire(64, 32, 6, bg)
	if f2.Write != f.Write {
		t.Error("same size should reuse the layer surface")
	}
	f3, _ := c.Acquire(128, 32, 7, bg)
	if f3.Write == f.Write {
		t.Error("resize should replace the layer surface")
	}
	if alloc.live[f.Write.(*fakeSurface)] {
		t.Error("old surface should be released")
	}
	if f3.Read != f.Read {
		t.Error("dummy surface should be kept across resizes")
	}
	if c.Output() != f3.Write {
		t.Error("Output should be the layer surface")
	}
}

func TestPingPong_Alternates(t *testing.T) {
	alloc := newFakeAlloc()
	c := New(alloc, true)

	f1, err := c.Acquire(16, 16, 0, bg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if f1.Write == f1.Read {
		t.Fatal("write and read must differ")
	}
	if alloc.clears != 2 {
		t.Errorf("first frame clears = %d, want 2", alloc.clears)
	}
	if f1.NextFront != 1 {
		t.Errorf("NextFront = %d, want 1", f1.NextFront)
	}
	c.Commit(f1)
	if c.Output() != f1.Write {
		t.Error("Output should be the surface just written")
	}

	f2, _ := c.Acquire(16, 16, 1, bg)
	if f2.Read != f1.Write || f2.Write != f1.Read {
		t.Error("second frame should swap the pair")
	}
	if alloc.clears != 2 {
		t.Errorf("clears after second frame = %d, want 2", alloc.clears)
	}
	c.Commit(f2)
	if c.FrontIndex() != 0 {
		t.Errorf("FrontIndex = %d, want 0", c.FrontIndex())
	}
}

func TestPingPong_NoCommitKeepsFront(t *testing.T) {
	c := New(newFakeAlloc(), true)
	f1, _ := c.Acquire(8, 8, 3, bg)
	// Dispatch failed: no Commit.
	f2, _ := c.Acquire(8, 8, 4, bg)
	if f2.Write != f1.Write || f2.Read != f1.Read {
		t.Error("without Commit the same surfaces should be returned")
	}
}

func TestPingPong_ResizeResets(t *testing.T) {
	alloc := newFakeAlloc()
	c := New(alloc, true)
	f, _ := c.Acquire(8, 8, 3, bg)
	c.Commit(f)

	alloc.clears = 0
	f2, _ := c.Acquire(16, 8, 4, bg)
	if w, _ := f2.Write.Size(); w != 16 {
		t.Errorf("write width = %d, want 16", w)
	}
	if f2.NextFront != 1 {
		t.Errorf("NextFront = %d, want 1 after reset", f2.NextFront)
	}
	if alloc.clears != 2 {
		t.Errorf("clears = %d, want 2 for a new pair", alloc.clears)
	}
	if len(alloc.live) != 2 {
		t.Errorf("live surfaces = %d, want 2", len(alloc.live))
	}
}

func TestSetPingPong(t *testing.T) {
	alloc := newFakeAlloc()
	c := New(alloc, true)
	f, _ := c.Acquire(8, 8, 0, bg)
	c.Commit(f)

	c.SetPingPong(false)
	if c.PingPong() || c.FrontIndex() != 0 {
		t.Error("disabling ping-pong should reset the front index")
	}
	if len(alloc.live) != 0 {
		t.Errorf("live surfaces = %d, want 0 after disabling", len(alloc.live))
	}

	if _, err := c.Acquire(8, 8, 1, bg); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c.Release()
	if len(alloc.live) != 0 {
		t.Errorf("live surfaces = %d after Release, want 0", len(alloc.live))
	}
}

func TestAcquireErrors(t *testing.T) {
	if _, err := New(nil, false).Acquire(4, 4, 0, bg); !errors.Is(err, ErrNoAllocator) {
		t.Errorf("err = %v, want ErrNoAllocator", err)
	}

	alloc := newFakeAlloc()
	alloc.failSize = 32
	c := New(alloc, true)
	if _, err := c.Acquire(32, 32, 0, bg); err == nil {
		t.Error("expected allocation error")
	}
	if len(alloc.live) != 0 {
		t.Errorf("failed pair allocation leaked %d surfaces", len(alloc.live))
	}
}
