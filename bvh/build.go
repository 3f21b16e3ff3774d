package bvh

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/gogpu/scenevm/geom"
)

// Build parameters.
const (
	// Bins is the number of centroid bins evaluated per axis.
	Bins = 16
	// MinLeafSize and MaxLeafSize bound the requested leaf size.
	MinLeafSize = 1
	MaxLeafSize = 16
	// NodeWords is the size of a packed Node in 32-bit words.
	NodeWords = 8
)

const (
	boundsPadding  = 0.1
	minExtent      = 1e-4
	minSplitExtent = 1e-6
)

// Node is one BVH node. For a leaf, Count > 0 and LeftFirst is the
// first slot in Accel.TriIndices. For an internal node, Count == 0 and
// LeftFirst is the left child; the right child is LeftFirst+1.
type Node struct {
	Bounds    geom.AABB
	LeftFirst uint32
	Count     uint32
}

// IsLeaf reports whether n is a leaf.
func (n Node) IsLeaf() bool { return n.Count > 0 }

// Accel is a built hierarchy. Origin and Extent describe the scene box
// padded by 10% of its diagonal.
type Accel struct {
	Origin     geom.Vec3
	Extent     geom.Vec3
	Nodes      []Node
	TriIndices []uint32
	NodeCount  uint32
	TriCount   uint32
}

// empty returns the accel of a scene without triangles.
func empty(origin, extent geom.Vec3) *Accel {
	return &Accel{Origin: origin, Extent: extent}
}

// PackNodes returns the nodes packed as min xyz, max xyz,
// left/first, count. An empty tree packs to a single zero word.
func (a *Accel) PackNodes() []uint32 {
	if len(a.Nodes) == 0 {
		return []uint32{0}
	}
	f := math.Float32bits
	out := make([]uint32, 0, len(a.Nodes)*NodeWords)
	for _, n := range a.Nodes {
		out = append(out,
			f(n.Bounds.Min.X), f(n.Bounds.Min.Y), f(n.Bounds.Min.Z),
			f(n.Bounds.Max.X), f(n.Bounds.Max.Y), f(n.Bounds.Max.Z),
			n.LeftFirst, n.Count,
		)
	}
	return out
}

// PackTris returns TriIndices, or a single zero word if empty.
func (a *Accel) PackTris() []uint32 {
	if len(a.TriIndices) == 0 {
		return []uint32{0}
	}
	return a.TriIndices
}

// Build constructs a BVH over the triangles indices describe. leafSize
// is clamped to [MinLeafSize, MaxLeafSize]. An input with no vertices
// yields a unit box at the origin with zero counts. Indices must
// reference vertices.
func Build(vertices []Vertex, indices []uint32, leafSize int) *Accel {
	sceneBox := geom.EmptyAABB()
	for i := range vertices {
		sceneBox = sceneBox.Extend(vertices[i].Pos)
	}
	if !geom.IsFinite(sceneBox.Min.X) {
		return empty(geom.Vec3{}, geom.V3(1, 1, 1))
	}

	diag := math32.Max(sceneBox.Extent().Length(), 1e-6)
	pad := boundsPadding * diag
	padV := geom.V3(pad, pad, pad)
	origin := sceneBox.Min.Sub(padV)
	extent := sceneBox.Max.Add(padV).Sub(origin)
	extent = geom.V3(math32.Max(extent.X, minExtent), math32.Max(extent.Y, minExtent), math32.Max(extent.Z, minExtent))

	triCount := len(indices) / 3
	if triCount == 0 {
		return empty(origin, extent)
	}
	leafSize = min(max(leafSize, MinLeafSize), MaxLeafSize)

	b := &builder{
		leafSize:  uint32(leafSize),
		bounds:    make([]geom.AABB, triCount),
		centroids: make([]geom.Vec3, triCount),
		order:     make([]uint32, triCount),
		nodes:     make([]Node, 1, 2*triCount/max(leafSize, 1)+1),
	}
	for t := 0; t < triCount; t++ {
		p0 := vertices[indices[3*t]].Pos
		p1 := vertices[indices[3*t+1]].Pos
		p2 := vertices[indices[3*t+2]].Pos
		b.bounds[t] = geom.TriangleBounds(p0, p1, p2)
		b.centroids[t] = p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
		b.order[t] = uint32(t)
	}
	b.build(0, 0, uint32(triCount))

	return &Accel{
		Origin:     origin,
		Extent:     extent,
		Nodes:      b.nodes,
		TriIndices: b.order,
		NodeCount:  uint32(len(b.nodes)),
		TriCount:   uint32(triCount),
	}
}

type builder struct {
	leafSize  uint32
	bounds    []geom.AABB
	centroids []geom.Vec3
	order     []uint32
	nodes     []Node
}

type bin struct {
	count uint32
	box   geom.AABB
}

// binOf maps a centroid coordinate to its bin on an axis.
func binOf(c, lo, extent float32) int {
	b := int((c - lo) / extent * (Bins - 1))
	return min(max(b, 0), Bins-1)
}

func (b *builder) build(nodeIdx int, start, count uint32) {
	end := start + count
	box := geom.EmptyAABB()
	cbox := geom.EmptyAABB()
	for _, t := range b.order[start:end] {
		box = box.Union(b.bounds[t])
		cbox = cbox.Extend(b.centroids[t])
	}
	b.nodes[nodeIdx].Bounds = box

	if count <= b.leafSize {
		b.leaf(nodeIdx, start, count)
		return
	}

	cext := cbox.Extent()
	bestAxis, bestSplit := -1, 0
	bestCost := float32(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		ext := cext.Axis(axis)
		if ext < minSplitExtent {
			continue
		}
		lo := cbox.Min.Axis(axis)

		var bins [Bins]bin
		for i := range bins {
			bins[i].box = geom.EmptyAABB()
		}
		for _, t := range b.order[start:end] {
			i := binOf(b.centroids[t].Axis(axis), lo, ext)
			bins[i].count++
			bins[i].box = bins[i].box.Union(b.bounds[t])
		}

		var prefix, suffix [Bins]bin
		run := bin{box: geom.EmptyAABB()}
		for i := 0; i < Bins; i++ {
			run.count += bins[i].count
			run.box = run.box.Union(bins[i].box)
			prefix[i] = run
		}
		run = bin{box: geom.EmptyAABB()}
		for i := Bins - 1; i >= 0; i-- {
			run.count += bins[i].count
			run.box = run.box.Union(bins[i].box)
			suffix[i] = run
		}

		for s := 0; s < Bins-1; s++ {
			l, r := prefix[s], suffix[s+1]
			if l.count == 0 || r.count == 0 {
				continue
			}
			cost := l.box.SurfaceArea()*float32(l.count) + r.box.SurfaceArea()*float32(r.count)
			if cost < bestCost {
				bestCost, bestAxis, bestSplit = cost, axis, s
			}
		}
	}

	if bestAxis < 0 || bestCost >= box.SurfaceArea()*float32(count) {
		b.leaf(nodeIdx, start, count)
		return
	}

	lo, ext := cbox.Min.Axis(bestAxis), cext.Axis(bestAxis)
	left := func(t uint32) bool {
		return binOf(b.centroids[t].Axis(bestAxis), lo, ext) <= bestSplit
	}
	i, j := int(start), int(end)-1
	for i <= j {
		if left(b.order[i]) {
			i++
			continue
		}
		if !left(b.order[j]) {
			j--
			continue
		}
		b.order[i], b.order[j] = b.order[j], b.order[i]
		i++
		j--
	}

	mid := uint32(min(max(i, int(start)+1), int(end)-1))
	leftCount := mid - start
	rightCount := count - leftCount
	if leftCount == 0 || rightCount == 0 {
		b.leaf(nodeIdx, start, count)
		return
	}

	child := len(b.nodes)
	b.nodes[nodeIdx].LeftFirst = uint32(child)
	b.nodes[nodeIdx].Count = 0
	b.nodes = append(b.nodes, Node{}, Node{})

	b.build(child, start, leftCount)
	b.build(child+1, mid, rightCount)
}

func (b *builder) leaf(nodeIdx int, start, count uint32) {
	b.nodes[nodeIdx].LeftFirst = start
	b.nodes[nodeIdx].Count = count
}
