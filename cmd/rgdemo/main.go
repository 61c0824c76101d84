// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command rgdemo builds and runs a small deferred-style frame through the
// render graph and prints what the graph scheduled, allocated and
// synchronized.
//
// Usage:
//
//	rgdemo [-backend null|wgpu|noop] [-frames n] [-plan] [-events] [-v]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
)

// onLogger is called with the logger chosen by -v, for packages with their
// own logger.
var onLogger = []func(*slog.Logger){rendergraph.SetLogger}

type config struct {
	backend       string
	frames        int
	width, height uint
	plan          bool
	events        bool
	verbose       bool
	shaders       bool
	noOverlay     bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.backend, "backend", "", "device backend; empty picks the best available")
	flag.IntVar(&cfg.frames, "frames", 3, "number of frames to run")
	flag.UintVar(&cfg.width, "width", 1280, "backbuffer width")
	flag.UintVar(&cfg.height, "height", 720, "backbuffer height")
	flag.BoolVar(&cfg.plan, "plan", false, "print the compiled plan of each frame")
	flag.BoolVar(&cfg.events, "events", false, "print recorded commands (null backend)")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging to stderr")
	flag.BoolVar(&cfg.shaders, "shaders", false, "compile the demo shaders before running")
	flag.BoolVar(&cfg.noOverlay, "no-overlay", false, "omit the unused debug overlay pass")
	flag.Parse()

	if err := run(&cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rgdemo:", err)
		os.Exit(1)
	}
}

func run(cfg *config, out io.Writer) error {
	if cfg.frames < 1 {
		return errors.New("-frames must be at least 1")
	}
	if cfg.width == 0 || cfg.height == 0 {
		return errors.New("-width and -height must be positive")
	}
	if cfg.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		for _, set := range onLogger {
			set(logger)
		}
	}

	dev, name, err := openDevice(cfg.backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(dev); err != nil {
			fmt.Fprintln(os.Stderr, "rgdemo: close device:", err)
		}
	}()
	fmt.Fprintf(out, "backend: %s\n", name)

	if cfg.shaders {
		if err := loadShaders(dev, out); err != nil {
			return err
		}
	}

	d, err := newDemo(dev, uint32(cfg.width), uint32(cfg.height))
	if err != nil {
		return err
	}
	d.overlay = !cfg.noOverlay

	g, err := rendergraph.New(dev)
	if err != nil {
		d.close()
		return err
	}
	runErr := runFrames(cfg, g, d, out)
	if err := g.Close(); err != nil && runErr == nil {
		runErr = err
	}
	d.close()
	return runErr
}

func openDevice(name string) (rendergraph.Device, string, error) {
	if name == "" {
		return backend.Default()
	}
	dev, err := backend.Get(name)
	if err != nil {
		return nil, "", fmt.Errorf("%w (available: %v)", err, backend.Available())
	}
	return dev, name, nil
}

func runFrames(cfg *config, g *rendergraph.Graph, d *demo, out io.Writer) error {
	for i := 0; i < cfg.frames; i++ {
		d.build(g)
		plan, err := g.Compile()
		if err != nil {
			return err
		}
		if cfg.plan {
			fmt.Fprint(out, plan.String())
		}
		frame := g.Frame()
		stats, err := g.Execute()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, stats.String())
		if cfg.events {
			printEvents(out, g.Device(), frame)
		}
	}
	return nil
}

func printEvents(out io.Writer, dev rendergraph.Device, frame uint64) {
	null, ok := dev.(*rendergraph.NullDevice)
	if !ok {
		fmt.Fprintln(out, "  (events are only recorded by the null backend)")
		return
	}
	for _, sub := range null.FrameSubmissions(frame) {
		fmt.Fprintf(out, "  submit %v wait=%d signal=%v\n", sub.Slot, len(sub.Wait), sub.Signal)
		for _, l := range sub.Lists {
			fmt.Fprintf(out, "    list %s\n", l.Label)
			for _, e := range l.Events {
				fmt.Fprintf(out, "      %s\n", e)
			}
		}
	}
}
