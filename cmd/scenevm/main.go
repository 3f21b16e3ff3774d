// Command scenevm replays a SceneVM command log, draws one frame and
// prints geometry stats and pick results.
//
// Usage:
//
//	scenevm -log scene.jsonl.zst -mode 3d -pick 0.5,0.5
//	scenevm -log scene.jsonl -config vm.yaml -rect 0,0,320,240 -kind sector
//	scenevm -log scene.jsonl -watch -out frame.png
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"

	"github.com/gogpu/scenevm"
	_ "github.com/gogpu/scenevm/backend/native"
	"github.com/gogpu/scenevm/command"
	"github.com/gogpu/scenevm/pick"
	"github.com/gogpu/scenevm/scene"
)

type options struct {
	log     string
	config  string
	backend string
	width   uint
	height  uint
	mode    string
	pickUV  string
	rect    string
	kind    string
	out     string
	watch   bool
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.log, "log", "", "command log to replay (.jsonl or .jsonl.zst)")
	flag.StringVar(&o.config, "config", "", "YAML or TOML config file")
	flag.StringVar(&o.backend, "backend", "", "backend name, overrides the config (capture, native)")
	flag.UintVar(&o.width, "width", 800, "framebuffer width")
	flag.UintVar(&o.height, "height", 600, "framebuffer height")
	flag.StringVar(&o.mode, "mode", "", "force the render mode of the active layer (2d, 3d, sdf)")
	flag.StringVar(&o.pickUV, "pick", "", "pick at u,v in [0,1]")
	flag.StringVar(&o.rect, "rect", "", "rect pick x0,y0,x1,y1 in pixels")
	flag.StringVar(&o.kind, "kind", "sector", "geometry kind for -rect")
	flag.StringVar(&o.out, "out", "", "write the base layer to a PNG file")
	flag.BoolVar(&o.watch, "watch", false, "replay again whenever the log changes")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	if o.log == "" {
		flag.Usage()
		os.Exit(2)
	}
	if o.verbose {
		scenevm.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := scenevm.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = scenevm.LoadConfig(o.config); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}

	if err := run(o, cfg); err != nil {
		log.Fatal(err)
	}
	if o.watch {
		if err := watch(o, cfg); err != nil {
			log.Fatal(err)
		}
	}
}

// run replays the log into a fresh SceneVM and reports on one frame.
func run(o options, cfg scenevm.Config) error {
	w, h := uint32(o.width), uint32(o.height)
	vm, err := scenevm.New(w, h, scenevm.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer vm.Close()

	n, err := vm.ReplayFile(o.log)
	if err != nil {
		return fmt.Errorf("replay %s: %w", o.log, err)
	}
	if o.mode != "" {
		mode, err := scene.ParseRenderMode(o.mode)
		if err != nil {
			return err
		}
		if err := vm.Apply(command.SetRenderMode{Mode: mode}); err != nil {
			return err
		}
	}
	if err := vm.Draw(w, h); err != nil {
		return fmt.Errorf("draw: %w", err)
	}

	fmt.Printf("%s: %d commands, backend %s\n", filepath.Base(o.log), n, vm.Backend().Name())
	fmt.Print(vm.GeometryStats().Report(language.English))

	if o.pickUV != "" {
		uv, err := parseFloats(o.pickUV, 2)
		if err != nil {
			return fmt.Errorf("-pick: %w", err)
		}
		if hit, ok := vm.Pick([2]float32{uv[0], uv[1]}, pick.Options{IncludeBillboards: true}); ok {
			fmt.Printf("pick %v: %s at %.3f (distance %.3f)\n", uv, hit.ID, hit.Pos, hit.Distance)
		} else {
			fmt.Printf("pick %v: nothing\n", uv)
		}
	}
	if o.rect != "" {
		r, err := parseFloats(o.rect, 4)
		if err != nil {
			return fmt.Errorf("-rect: %w", err)
		}
		kind, err := scene.ParseGeoKind(o.kind)
		if err != nil {
			return err
		}
		ids := vm.PickRect(pick.Rect{X0: r[0], Y0: r[1], X1: r[2], Y1: r[3]}, kind, pick.Options{})
		fmt.Printf("rect %v: %d %s\n", r, len(ids), kind)
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
	if o.out != "" {
		if err := writePNG(vm, o.out, int(w), int(h)); err != nil {
			return fmt.Errorf("-out: %w", err)
		}
	}
	return nil
}

// watch reruns run whenever the log file is written or replaced.
func watch(o options, cfg scenevm.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are seen.
	if err := w.Add(filepath.Dir(o.log)); err != nil {
		return err
	}
	target := filepath.Clean(o.log)
	log.Printf("watching %s", target)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := run(o, cfg); err != nil {
				log.Printf("replay: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

func writePNG(vm *scenevm.SceneVM, path string, w, h int) error {
	pix, err := vm.ReadPixels(0)
	if err != nil {
		return err
	}
	img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseFloats(s string, n int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float32, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}
