// Package native runs scenevm programs on the GPU through the Pure Go
// gogpu/wgpu HAL.
//
// Surfaces are storage buffers of packed RGBA8 pixels. Every program
// shares one bind group layout:
//
//	0      uniforms
//	1..4   mode geometry (2D: verts, indices, bins, tile tris;
//	       3D: verts, indices, grid header, grid data; SDF: data)
//	5, 6   tile metas and frame rects
//	7      scene-data blob
//	8, 9   atlas color and material
//	10     previous frame
//	11     output
//
// Importing the package registers the "native" backend, which opens a
// Vulkan device on Init. Use NewWithDevice to share an existing device.
package native
