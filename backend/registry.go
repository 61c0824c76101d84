// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rendergraph"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first device that opens wins).
	priority = []string{NameWGPU, NameNull}
)

// Register registers a device factory under name.
// This is typically called from init() functions in backend packages.
// A factory registered under an existing name replaces it.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get opens a device on the named backend.
func Get(name string) (rendergraph.Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return open(name, factory)
}

func open(name string, factory Factory) (rendergraph.Device, error) {
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("backend %s: %w", name, ErrNilDevice)
	}
	return dev, nil
}

// order returns the names Default tries: the priority list first, then
// the remaining registrations alphabetically.
func order() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for _, name := range priority {
		if _, ok := factories[name]; ok {
			names = append(names, name)
		}
	}
	rest := make([]string, 0, len(factories))
	for name := range factories {
		if !slices.Contains(priority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// Default opens the best available device. Priority order: wgpu > null,
// then any other registered backend. It returns the backend name with the
// device.
func Default() (rendergraph.Device, string, error) {
	log := rendergraph.Logger()
	for _, name := range order() {
		registryMu.RLock()
		factory, ok := factories[name]
		registryMu.RUnlock()
		if !ok {
			continue
		}
		dev, err := open(name, factory)
		if err != nil {
			log.Debug("backend: unavailable", "backend", name, "err", err)
			continue
		}
		log.Info("backend: device selected", "backend", name)
		return dev, name, nil
	}
	return nil, "", ErrBackendNotAvailable
}

// MustDefault returns the default device or panics.
func MustDefault() rendergraph.Device {
	dev, _, err := Default()
	if err != nil {
		panic(err)
	}
	return dev
}
