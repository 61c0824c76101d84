// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "log/slog"

// Option configures a Graph during creation.
//
// Example:
//
//	g, err := rendergraph.New(dev,
//	    rendergraph.WithFramesInFlight(3),
//	    rendergraph.WithLogger(slog.Default()),
//	)
type Option func(*options)

// options holds Graph configuration.
type options struct {
	logger         *slog.Logger
	culling        bool
	aliasing       bool
	framesInFlight int
	retainFrames   uint64
	failFast       bool
	labelPrefix    string
}

// Defaults used when an option is not given.
const (
	DefaultFramesInFlight   = 2
	DefaultHeapRetainFrames = 4
)

func defaultOptions() options {
	return options{
		culling:        true,
		aliasing:       true,
		framesInFlight: DefaultFramesInFlight,
		retainFrames:   DefaultHeapRetainFrames,
	}
}

// WithLogger sets the logger for one graph. Without it the graph uses the
// package logger (see SetLogger).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCulling enables or disables removal of passes whose results are never
// consumed. Culling is on by default.
func WithCulling(enabled bool) Option {
	return func(o *options) {
		o.culling = enabled
	}
}

// WithAliasing enables or disables memory sharing between transient
// resources with disjoint lifetimes. With aliasing off every transient
// resource gets its own allocation. Aliasing is on by default.
func WithAliasing(enabled bool) Option {
	return func(o *options) {
		o.aliasing = enabled
	}
}

// WithFramesInFlight sets how many frames may be queued on the device before
// Execute waits for the oldest one. Values below 1 are treated as 1.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = max(n, 1)
	}
}

// WithHeapRetainFrames sets how many frames an unused pooled heap survives
// before it is released to the device.
func WithHeapRetainFrames(n uint64) Option {
	return func(o *options) {
		o.retainFrames = n
	}
}

// WithFailFast makes build calls (CreateImage, AddPass, ...) panic on the
// first configuration error instead of deferring it to Compile or Execute.
// Intended for debug builds.
func WithFailFast() Option {
	return func(o *options) {
		o.failFast = true
	}
}

// WithLabelPrefix prefixes every label the graph hands to the device, which
// helps telling several graphs apart in GPU debuggers.
func WithLabelPrefix(prefix string) Option {
	return func(o *options) {
		o.labelPrefix = prefix
	}
}
