// Package geom provides the float32 vector, matrix and intersection
// primitives shared by the scene, batching, BVH and picking packages.
//
// Matrices are stored row-major. GPU uniform packing goes through the
// Columns methods, which return column-major padded vec4 columns.
package geom
