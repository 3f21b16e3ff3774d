package scenevm

import (
	"github.com/gogpu/scenevm/backend"
	"github.com/gogpu/scenevm/geom"
)

// Option configures a SceneVM during creation.
//
// Example:
//
//	// Default CPU capture backend
//	vm, err := scenevm.New(800, 600)
//
//	// GPU backend with a smaller atlas
//	import _ "github.com/gogpu/scenevm/backend/native"
//	vm, err := scenevm.New(800, 600,
//	    scenevm.WithBackendName("native"),
//	    scenevm.WithAtlasSize(2048, 2048))
type Option func(*options)

// options holds optional configuration for SceneVM creation.
type options struct {
	cfg     Config
	backend backend.ComputeBackend
}

func defaultOptions() options {
	return options{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Options after it still
// apply on top.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.cfg = c
	}
}

// WithBackend uses b instead of a registered backend. The SceneVM
// initializes b but does not close it.
func WithBackend(b backend.ComputeBackend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithBackendName selects a registered backend by name.
func WithBackendName(name string) Option {
	return func(o *options) {
		o.cfg.Backend = name
	}
}

// WithLeafSize sets the BVH leaf size of new layers.
func WithLeafSize(n int) Option {
	return func(o *options) {
		o.cfg.LeafSize = n
	}
}

// WithPingPong enables front/back surfaces on new layers.
func WithPingPong(on bool) Option {
	return func(o *options) {
		o.cfg.PingPong = on
	}
}

// WithPickWorkers sets the rect-pick worker count. n <= 0 selects
// GOMAXPROCS.
func WithPickWorkers(n int) Option {
	return func(o *options) {
		o.cfg.PickWorkers = n
	}
}

// WithAtlasSize sets the shared atlas size.
func WithAtlasSize(w, h uint32) Option {
	return func(o *options) {
		o.cfg.AtlasWidth, o.cfg.AtlasHeight = w, h
	}
}

// WithBackground sets the base layer background color.
func WithBackground(c geom.Vec4) Option {
	return func(o *options) {
		o.cfg.Background = c.Array()
	}
}
