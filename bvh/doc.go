// Package bvh flattens 3D chunk geometry and builds a binary bounding
// volume hierarchy over it using binned surface-area-heuristic splits.
//
// Nodes live in a flat arena. Node 0 is the root; an internal node
// stores the index of its left child, and the right child sits directly
// after it. A leaf stores the first position of its contiguous range in
// the reordered triangle index array.
//
// Triangle visibility is kept outside the tree as a bitmask, 32
// triangles per word, so toggling visibility never rebuilds nodes.
package bvh
