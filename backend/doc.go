// Package backend provides the pluggable compute backend abstraction of
// scenevm.
//
// A backend allocates layer surfaces and runs one compute dispatch per
// draw. Every dispatch receives a fully prepared frame payload
// (Frame2D, Frame3D or FrameSDF): packed geometry, tile tables, the
// scene-data blob, uniforms and, when the atlas layout changed, new
// atlas pixels.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The capture backend lives in this package and is always registered;
// the GPU backend is registered by importing backend/native:
//
//	import _ "github.com/gogpu/scenevm/backend/native"
//
// # Backend Selection
//
// Use Default() to get the best available backend, Get() to request a
// specific backend by name, or InitNamed() to do either and initialize
// the result:
//
//	b, err := backend.InitNamed("capture")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// # Programs
//
// Every mode has a WGSL header (uniforms, bindings, helpers) and a
// default body defining cs_main. Compose joins a header with a user
// body; HeaderLines maps compiler line numbers back onto the body.
//
// # Available Backends
//
//   - "capture": CPU reference. 2D draws the nearest textured triangle,
//     3D ray-casts the BVH; SDF dispatches are recorded, not shaded.
//   - "native": GPU compute through gogpu/wgpu (backend/native).
package backend
