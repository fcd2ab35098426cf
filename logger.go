package ge

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/ge/backend/wgpu"
	"github.com/gogpu/ge/internal/logging"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for ge and all its sub-packages,
// including the wgpu backend. By default, ge produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by ge:
//   - [slog.LevelDebug]: allocation plans, pool blocks, pipeline creation
//   - [slog.LevelInfo]: context lifecycle
//   - [slog.LevelWarn]: dropped draws and flushes, failed allocations
//
// Example:
//
//	ge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	logging.Set(l)
	wgpu.SetLogger(l)
}

// Logger returns the current logger used by ge.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the current logger to a device if it implements
// loggerSetter. Called when a DirectContext takes over a device.
func propagateLogger(device any) {
	if ls, ok := device.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}
}
