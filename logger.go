// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package logger. Accessed atomically so SetLogger can
// run concurrently with graphs logging from other goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the default logger for every Graph created without
// WithLogger. By default rendergraph produces no log output.
//
// Pass nil to restore the silent default.
//
// Log levels used by rendergraph:
//   - [slog.LevelDebug]: compiled plans, heap pool reuse, per-frame statistics
//   - [slog.LevelInfo]: lifecycle events (graph created, device selected)
//   - [slog.LevelWarn]: recoverable issues (chain steps a pass did not advance,
//     heap eviction after an allocation failure)
//
// Example:
//
//	rendergraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
// Backends call this to share the configuration without an import cycle.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
