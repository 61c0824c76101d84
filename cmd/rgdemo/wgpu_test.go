// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunNoop(t *testing.T) {
	var out bytes.Buffer
	cfg := config{backend: nameNoop, frames: 2, width: 64, height: 32, events: true}
	if err := run(&cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"backend: noop", "8 passes (1 culled)", "only recorded by the null backend"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestOpenNoopClose(t *testing.T) {
	d, err := openNoop()
	if err != nil {
		t.Fatalf("openNoop() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
