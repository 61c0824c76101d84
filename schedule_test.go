// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"slices"
	"testing"
)

func TestCullUnconsumedPasses(t *testing.T) {
	tests := []struct {
		name       string
		culling    bool
		wantOrder  []string
		wantCulled []string
	}{
		{"culling", true, []string{"shadow", "main", "present"}, []string{"debug", "debug-blur"}},
		{"no culling", false, []string{"shadow", "debug", "main", "debug-blur", "present"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, dev := newTestGraph(t, WithCulling(tt.culling))
			shadow := g.FullImageView(g.CreateImage(rgba("shadow", 32)))
			debug := g.FullImageView(g.CreateImage(rgba("debug", 32)))
			blurred := g.FullImageView(g.CreateImage(rgba("debug-blurred", 32)))
			color := g.FullImageView(g.CreateImage(rgba("color", 32)))
			swap := g.FullImageView(importImage(t, g, dev, rgba("swap", 32), nil, ImportOptions{}))

			g.AddPass("shadow", QueueGraphics, []Usage{UseImage(shadow, StateColorAttachment, 0)}, nop())
			g.AddPass("debug", QueueGraphics, []Usage{
				UseImage(shadow, StateSampled, 0),
				UseImage(debug, StateColorAttachment, 0),
			}, nop())
			g.AddPass("main", QueueGraphics, []Usage{
				UseImage(shadow, StateSampled, 0),
				UseImage(color, StateColorAttachment, 0),
			}, nop())
			g.AddPass("debug-blur", QueueGraphics, []Usage{
				UseImage(debug, StateSampled, 0),
				UseImage(blurred, StateColorAttachment, 0),
			}, nop())
			g.AddPass("present", QueueGraphics, []Usage{
				UseImage(color, StateCopySrc, 0),
				UseImage(swap, StateCopyDst, 0),
			}, nop())
			p := mustCompile(t, g)

			if got := p.Order(); !slices.Equal(got, tt.wantOrder) {
				t.Errorf("Order() = %q, want %q", got, tt.wantOrder)
			}
			if !slices.Equal(p.Culled, tt.wantCulled) {
				t.Errorf("Culled = %q, want %q", p.Culled, tt.wantCulled)
			}
		})
	}
}

func TestReadersDoNotKeepWritersAlive(t *testing.T) {
	g, dev := newTestGraph(t)
	buf := g.FullBufferView(importBuffer(t, g, dev, BufferDescription{Label: "readback", Size: 256}, nil, ImportOptions{}))
	tmp := g.FullBufferView(g.CreateBuffer(BufferDescription{Label: "scratch", Size: 256}))

	// "read" only reads an imported buffer, so nothing visible depends on it.
	g.AddPass("read", QueueGraphics, []Usage{
		UseBuffer(buf, StateCopySrc, 0),
		UseBuffer(tmp, StateCopyDst, 0),
	}, nop())
	g.AddPass("write", QueueGraphics, []Usage{UseBuffer(buf, StateCopyDst, 0)}, nop())
	p := mustCompile(t, g)

	if got := p.Order(); !slices.Equal(got, []string{"write"}) {
		t.Errorf("Order() = %q, want only the writer", got)
	}
	if !slices.Equal(p.Culled, []string{"read"}) {
		t.Errorf("Culled = %q", p.Culled)
	}
}

func TestWriteAfterReadKeepsOrder(t *testing.T) {
	g, dev := newTestGraph(t)
	buf := g.FullBufferView(importBuffer(t, g, dev, BufferDescription{Label: "state", Size: 256}, nil, ImportOptions{}))
	g.AddPass("consume", QueueGraphics, []Usage{UseBuffer(buf, StateUniformBuffer, 0)}, nop(), ForceExecution())
	g.AddPass("update", QueueGraphics, []Usage{UseBuffer(buf, StateCopyDst, 0)}, nop())
	p := mustCompile(t, g)

	if got := p.Order(); !slices.Equal(got, []string{"consume", "update"}) {
		t.Errorf("Order() = %q", got)
	}
	update := mustStep(t, p, "update")
	if len(update.Pre) != 1 || update.Pre[0].Src.Stage != StageShaders {
		t.Errorf("update.Pre = %v, want a barrier after the uniform reads", update.Pre)
	}
}

func TestScheduleLevels(t *testing.T) {
	g, _ := newTestGraph(t)
	a := g.FullImageView(g.CreateImage(rgba("a", 16)))
	b := g.FullImageView(g.CreateImage(rgba("b", 16)))
	g.AddPass("draw-a", QueueGraphics, []Usage{UseImage(a, StateColorAttachment, 0)}, nop())
	g.AddPass("draw-b", QueueGraphics, []Usage{UseImage(b, StateColorAttachment, 0)}, nop())
	g.AddPass("combine", QueueGraphics, []Usage{
		UseImage(a, StateSampled, 0),
		UseImage(b, StateSampled, 0),
	}, nop(), ForceExecution())
	p := mustCompile(t, g)

	want := [][]int{{0, 1}, {2}}
	if len(p.Levels) != len(want) {
		t.Fatalf("Levels = %v, want %v", p.Levels, want)
	}
	for i := range want {
		if !slices.Equal(p.Levels[i], want[i]) {
			t.Errorf("Levels[%d] = %v, want %v", i, p.Levels[i], want[i])
		}
	}
}

func TestDependencyHazards(t *testing.T) {
	g, dev := newTestGraph(t)
	buf := g.FullBufferView(importBuffer(t, g, dev, BufferDescription{Label: "b", Size: 64}, nil, ImportOptions{}))
	g.AddPass("w1", QueueGraphics, []Usage{UseBuffer(buf, StateCopyDst, 0)}, nop())
	g.AddPass("r", QueueGraphics, []Usage{UseBuffer(buf, StateUniformBuffer, 0)}, nop())
	g.AddPass("w2", QueueGraphics, []Usage{UseBuffer(buf, StateCopyDst, 0)}, nop())

	edges := g.dependencies(func(int) bool { return true })
	want := []edge{
		{from: 0, to: 1, kind: hazardRAW},
		{from: 0, to: 2, kind: hazardWAW},
		{from: 1, to: 2, kind: hazardWAR},
	}
	if !slices.Equal(edges, want) {
		t.Errorf("dependencies = %+v, want %+v", edges, want)
	}
	if got := (hazardRAW | hazardWAR).String(); got != "raw|war" {
		t.Errorf("hazard String() = %q", got)
	}
}

func TestDisjointSubresourcesAreIndependent(t *testing.T) {
	g, _ := newTestGraph(t)
	d := rgba("atlas", 16)
	d.ArrayLayers = 2
	img := g.CreateImage(d)
	layer := func(i uint32) ImageViewHandle {
		return g.CreateImageView(ImageViewDescription{Image: img, BaseArrayLayer: i, ArrayLayerCount: 1})
	}
	g.AddPass("layer0", QueueGraphics, []Usage{UseImage(layer(0), StateColorAttachment, 0)}, nop(), ForceExecution())
	g.AddPass("layer1", QueueGraphics, []Usage{UseImage(layer(1), StateColorAttachment, 0)}, nop(), ForceExecution())
	if edges := g.dependencies(func(int) bool { return true }); len(edges) != 0 {
		t.Errorf("dependencies = %+v, want none", edges)
	}
}

func TestAliasingOptions(t *testing.T) {
	tests := []struct {
		name      string
		aliasing  bool
		wantSlots int
	}{
		{"aliasing", true, 2},
		{"no aliasing", false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, dev := newTestGraph(t, WithAliasing(tt.aliasing))
			buildFrame(t, g, dev)
			p := mustCompile(t, g)
			if len(p.Memory) != tt.wantSlots {
				t.Errorf("len(Memory) = %d, want %d", len(p.Memory), tt.wantSlots)
			}
			if !tt.aliasing && p.PeakBytes != p.UnaliasedBytes {
				t.Errorf("peak %d != unaliased %d without aliasing", p.PeakBytes, p.UnaliasedBytes)
			}
			if !tt.aliasing {
				for _, b := range p.Barriers() {
					if b.Kind == BarrierAliasing {
						t.Errorf("aliasing barrier without aliasing: %v", b)
					}
				}
			}
		})
	}
}

func TestDedicatedResources(t *testing.T) {
	g, _ := newTestGraph(t)
	d := rgba("history", 32)
	d.NonAliasable = true
	a := g.FullImageView(g.CreateImage(d))
	b := g.FullImageView(g.CreateImage(rgba("b", 32)))
	staging := g.FullBufferView(g.CreateBuffer(BufferDescription{Label: "staging", Size: 256, HostVisible: true}))

	g.AddPass("one", QueueGraphics, []Usage{UseImage(a, StateColorAttachment, 0)}, nop(), ForceExecution())
	g.AddPass("two", QueueGraphics, []Usage{UseImage(b, StateColorAttachment, 0)}, nop(), ForceExecution())
	g.AddPass("three", QueueGraphics, []Usage{UseBuffer(staging, StateHostWrite, 0)}, nop(), ForceExecution())
	p := mustCompile(t, g)

	if len(p.Memory) != 3 {
		t.Fatalf("Memory = %+v, want 3 slots", p.Memory)
	}
	for _, m := range p.Memory {
		dedicated := m.Resources[0] != `image "b"`
		if m.Dedicated != dedicated || len(m.Resources) != 1 {
			t.Errorf("slot %+v", m)
		}
	}
	if p.Memory[2].Key != "host-buffer" {
		t.Errorf("staging key = %q", p.Memory[2].Key)
	}
}

func TestUnusedTransientGetsNoMemory(t *testing.T) {
	g, _ := newTestGraph(t)
	g.CreateImage(rgba("unused", 32))
	used := g.FullImageView(g.CreateImage(rgba("used", 32)))
	g.AddPass("p", QueueGraphics, []Usage{UseImage(used, StateColorAttachment, 0)}, nop(), ForceExecution())
	p := mustCompile(t, g)
	if len(p.Memory) != 1 || p.Memory[0].Resources[0] != `image "used"` {
		t.Errorf("Memory = %+v", p.Memory)
	}
}
