// Package scenevm is a scene-rendering virtual machine.
//
// A SceneVM accumulates tagged 2D and 3D geometry, dynamic billboards and
// lights into chunked storage, packs texture tiles into a shared atlas
// and, on every draw, prepares what a compute rasterizer needs: batched
// vertex and index buffers, an 8×8 screen-tile binning index for 2D
// draws, a BVH for 3D draws, and a scene-data blob with lights,
// billboards and avatar pixels.
//
// # Quick Start
//
//	vm, err := scenevm.New(320, 200)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vm.Close()
//
//	tile := uuid.New()
//	_ = vm.Apply(command.AddSolid{ID: tile, Color: [4]uint8{255, 0, 0, 255}})
//	_ = vm.Apply(command.AddPoly2D{Poly: scene.SquarePoly2D(scene.Sector(1), tile, [2]float32{160, 100}, 32, 0, true)})
//	if err := vm.Draw(320, 200); err != nil {
//	    log.Fatal(err)
//	}
//
// # Layers
//
// Layer 0 is the base layer. Overlay layers added with AddLayer share
// the base atlas, start with a transparent background and are drawn
// after it in order. Apply executes on the active layer.
//
// # Backends
//
// Drawing is delegated to a backend.ComputeBackend. The "capture" CPU
// backend is always available; importing backend/native adds the GPU
// backend. Select one with WithBackendName or WithBackend.
//
// # Logging
//
// scenevm is silent by default. Call SetLogger to enable structured
// logging through log/slog.
package scenevm
