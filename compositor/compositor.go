// Package compositor manages the output surfaces of a render layer: a
// single surface, or a front/back pair when the layer reads its own
// previous frame.
package compositor

import (
	"errors"
	"fmt"

	"github.com/gogpu/scenevm/geom"
)

// ErrNoAllocator is returned when a Compositor has nothing to create
// surfaces with.
var ErrNoAllocator = errors.New("compositor: no surface allocator")

// Surface is a backend-owned RGBA output image.
type Surface interface {
	Size() (w, h uint32)
}

// Allocator creates, clears and releases surfaces. Backends implement it.
type Allocator interface {
	NewSurface(w, h uint32) (Surface, error)
	ClearSurface(s Surface, color geom.Vec4) error
	ReleaseSurface(s Surface)
}

// Frame is the set of surfaces for one dispatch.
type Frame struct {
	// Write receives this frame's output.
	Write Surface
	// Read holds the previous frame, or a 1x1 transparent surface when
	// ping-pong is off.
	Read Surface
	// NextFront becomes the front index once the dispatch succeeds.
	NextFront int
}

// Compositor owns the surfaces of one layer.
type Compositor struct {
	alloc    Allocator
	pingPong bool

	single Surface
	pair   [2]Surface
	front  int
	fresh  bool
	dummy  Surface
}

// New returns a Compositor that allocates from alloc.
func New(alloc Allocator, pingPong bool) *Compositor {
	return &Compositor{alloc: alloc, pingPong: pingPong}
}

// PingPong reports whether the layer keeps a front/back pair.
func (c *Compositor) PingPong() bool { return c.pingPong }

// SetPingPong switches modes. Changing the mode resets the front index;
// turning ping-pong off releases the pair.
func (c *Compositor) SetPingPong(on bool) {
	if c.pingPong == on {
		return
	}
	c.pingPong = on
	c.front = 0
	if !on {
		c.releasePair()
	}
}

// FrontIndex returns the index of the pair surface holding the latest
// completed frame.
func (c *Compositor) FrontIndex() int { return c.front }

// Acquire returns the surfaces for a frame of size w×h, recreating them
// when the size changed. In single mode the write surface is cleared to
// bg. In ping-pong mode both surfaces are cleared to bg when the pair
// is new or anim is zero, so the first frame never reads garbage.
func (c *Compositor) Acquire(w, h uint32, anim uint64, bg geom.Vec4) (Frame, error) {
	if c.alloc == nil {
		return Frame{}, ErrNoAllocator
	}
	if c.pingPong {
		return c.acquirePair(w, h, anim, bg)
	}
	return c.acquireSingle(w, h, bg)
}

func (c *Compositor) acquireSingle(w, h uint32, bg geom.Vec4) (Frame, error) {
	if !sized(c.single, w, h) {
		if c.single != nil {
			c.alloc.ReleaseSurface(c.single)
			c.single = nil
		}
		s, err := c.alloc.NewSurface(w, h)
		if err != nil {
			return Frame{}, fmt.Errorf("compositor: layer surface %dx%d: %w", w, h, err)
		}
		c.single = s
	}
	if c.dummy == nil {
		d, err := c.alloc.NewSurface(1, 1)
		if err != nil {
			return Frame{}, fmt.Errorf("compositor: dummy surface: %w", err)
		}
		if err := c.alloc.ClearSurface(d, geom.Vec4{}); err != nil {
			return Frame{}, err
		}
		c.dummy = d
	}
	if err := c.alloc.ClearSurface(c.single, bg); err != nil {
		return Frame{}, err
	}
	return Frame{Write: c.single, Read: c.dummy, NextFront: c.front}, nil
}

func (c *Compositor) acquirePair(w, h uint32, anim uint64, bg geom.Vec4) (Frame, error) {
	if !sized(c.pair[0], w, h) || !sized(c.pair[1], w, h) {
		c.releasePair()
		for i := range c.pair {
			s, err := c.alloc.NewSurface(w, h)
			if err != nil {
				c.releasePair()
				return Frame{}, fmt.Errorf("compositor: ping-pong surface %dx%d: %w", w, h, err)
			}
			c.pair[i] = s
		}
		c.front = 0
		c.fresh = true
	}

	read := c.front
	write := 1 - read
	if c.fresh || anim == 0 {
		for _, s := range c.pair {
			if err := c.alloc.ClearSurface(s, bg); err != nil {
				return Frame{}, err
			}
		}
		c.fresh = false
	}
	return Frame{Write: c.pair[write], Read: c.pair[read], NextFront: write}, nil
}

// Commit records a successful dispatch of f.
func (c *Compositor) Commit(f Frame) {
	if c.pingPong {
		c.front = f.NextFront
	}
}

// Output returns the surface holding the latest completed frame, or nil
// before the first Acquire.
func (c *Compositor) Output() Surface {
	if c.pingPong {
		return c.pair[c.front]
	}
	return c.single
}

// Release frees every surface.
func (c *Compositor) Release() {
	if c.alloc == nil {
		return
	}
	c.releasePair()
	for _, s := range []*Surface{&c.single, &c.dummy} {
		if *s != nil {
			c.alloc.ReleaseSurface(*s)
			*s = nil
		}
	}
}

func (c *Compositor) releasePair() {
	for i, s := range c.pair {
		if s != nil && c.alloc != nil {
			c.alloc.ReleaseSurface(s)
		}
		c.pair[i] = nil
	}
}

func sized(s Surface, w, h uint32) bool {
	if s == nil {
		return false
	}
	sw, sh := s.Size()
	return sw == w && sh == h
}
