package scenevm

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// live backends receive logger updates.
var (
	backendsMu sync.Mutex
	backends   = make(map[loggerSetter]struct{})
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for scenevm and its backends.
// By default, scenevm produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by scenevm:
//   - [slog.LevelDebug]: rebuild and upload diagnostics (triangle counts, BVH nodes, byte sizes)
//   - [slog.LevelInfo]: lifecycle events (backend initialized, layer added or removed)
//   - [slog.LevelWarn]: recoverable problems (atlas frames that did not fit)
//
// Example:
//
//	scenevm.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	backendsMu.Lock()
	defer backendsMu.Unlock()
	for ls := range backends {
		ls.SetLogger(l)
	}
}

// Logger returns the current logger used by scenevm.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// trackLogger hands the current logger to b and keeps it updated until
// untrackLogger is called.
func trackLogger(b any) {
	ls, ok := b.(loggerSetter)
	if !ok {
		return
	}
	ls.SetLogger(Logger())
	backendsMu.Lock()
	backends[ls] = struct{}{}
	backendsMu.Unlock()
}

func untrackLogger(b any) {
	ls, ok := b.(loggerSetter)
	if !ok {
		return
	}
	backendsMu.Lock()
	delete(backends, ls)
	backendsMu.Unlock()
}
