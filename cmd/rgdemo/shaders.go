// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/gogpu/naga"
	"github.com/gogpu/rendergraph"
)

// tonemapShaderWGSL draws a fullscreen triangle that combines the scene and
// bloom images and applies the exposure computed on the compute queue.
const tonemapShaderWGSL = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let x = f32((index << 1u) & 2u);
    let y = f32(index & 2u);
    var out: VertexOutput;
    out.position = vec4<f32>(x * 2.0 - 1.0, 1.0 - y * 2.0, 0.0, 1.0);
    out.uv = vec2<f32>(x, y);
    return out;
}

@group(0) @binding(0) var scene_color: texture_2d<f32>;
@group(0) @binding(1) var bloom: texture_2d<f32>;
@group(0) @binding(2) var color_sampler: sampler;
@group(0) @binding(3) var<storage, read> exposure: array<f32>;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let hdr = textureSample(scene_color, color_sampler, in.uv).rgb + textureSample(bloom, color_sampler, in.uv).rgb;
    let mapped = vec3<f32>(1.0) - exp(-hdr * exposure[0]);
    return vec4<f32>(mapped, 1.0);
}
`

// luminanceShaderWGSL bins the luminance of the scene image.
const luminanceShaderWGSL = `
@group(0) @binding(0) var scene_color: texture_2d<f32>;
@group(0) @binding(1) var<storage, read_write> histogram: array<u32>;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = textureDimensions(scene_color);
    if (id.x >= size.x || id.y >= size.y) {
        return;
    }
    let rgb = textureLoad(scene_color, vec2<i32>(id.xy), 0).rgb;
    let lum = dot(rgb, vec3<f32>(0.2126, 0.7152, 0.0722));
    let bin = u32(clamp(log2(lum + 1.0) * 32.0, 0.0, 255.0));
    histogram[bin] = histogram[bin] + 1u;
}
`

// shader is a compiled demo shader.
type shader struct {
	name  string
	spirv []uint32
}

// compileShaders compiles the demo shaders from WGSL to SPIR-V.
func compileShaders() ([]shader, error) {
	sources := []struct{ name, wgsl string }{
		{"tonemap", tonemapShaderWGSL},
		{"luminance", luminanceShaderWGSL},
	}
	out := make([]shader, 0, len(sources))
	for _, src := range sources {
		spirvBytes, err := naga.Compile(src.wgsl)
		if err != nil {
			return nil, fmt.Errorf("compile %s shader: %w", src.name, err)
		}
		out = append(out, shader{name: src.name, spirv: spirvWords(spirvBytes)})
	}
	return out, nil
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// moduleLoader turns compiled shaders into device shader modules. It
// reports false for devices it does not handle.
type moduleLoader func(dev rendergraph.Device, shaders []shader) (int, bool, error)

var moduleLoaders []moduleLoader

// loadShaders compiles the demo shaders and, when the backend supports
// shader modules, creates them on dev.
func loadShaders(dev rendergraph.Device, out io.Writer) error {
	shaders, err := compileShaders()
	if err != nil {
		return err
	}
	for _, s := range shaders {
		fmt.Fprintf(out, "shader %s: %d words\n", s.name, len(s.spirv))
	}
	for _, load := range moduleLoaders {
		n, ok, err := load(dev, shaders)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(out, "created %d shader modules\n", n)
			return nil
		}
	}
	return nil
}
