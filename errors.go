// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; they usually arrive
// wrapped in a *GraphError naming the pass and resource involved.
var (
	// ErrUnknownHandle is returned when a handle does not name a resource,
	// view or pass of the current frame.
	ErrUnknownHandle = errors.New("rendergraph: unknown handle")

	// ErrExpiredHandle is returned when a handle belongs to an earlier frame.
	ErrExpiredHandle = errors.New("rendergraph: handle from an earlier frame")

	// ErrInvalidDescription is returned for impossible resource or view
	// descriptions (zero size, unknown format, out-of-range subresources).
	ErrInvalidDescription = errors.New("rendergraph: invalid description")

	// ErrInvalidUsage is returned when a usage names a state that the
	// resource kind or pipeline stage cannot be in.
	ErrInvalidUsage = errors.New("rendergraph: invalid usage")

	// ErrCycle is returned when pass dependencies form a cycle.
	ErrCycle = errors.New("rendergraph: dependency cycle")

	// ErrDevice wraps failures reported by the Device.
	ErrDevice = errors.New("rendergraph: device failure")

	// ErrNotHostVisible is returned by Registry.Map for buffers that were
	// not created host visible.
	ErrNotHostVisible = errors.New("rendergraph: buffer is not host visible")

	// ErrUndeclared is returned when a pass resolves a resource it did not
	// declare a usage for.
	ErrUndeclared = errors.New("rendergraph: resource not declared by pass")

	// ErrRegistryExpired is returned when a Registry is used after its
	// recorder returned.
	ErrRegistryExpired = errors.New("rendergraph: registry used outside its pass")

	// ErrClosed is returned by a Graph after Close.
	ErrClosed = errors.New("rendergraph: graph closed")

	// ErrNilDevice is returned by New without a device.
	ErrNilDevice = errors.New("rendergraph: nil device")

	// ErrNilRecorder is returned by AddPass without a recorder.
	ErrNilRecorder = errors.New("rendergraph: nil recorder")
)

// ErrorKind classifies a GraphError.
type ErrorKind uint8

const (
	// KindConfiguration covers caller bugs: bad handles, descriptions and
	// usages.
	KindConfiguration ErrorKind = iota
	// KindScheduling covers unsatisfiable pass orderings.
	KindScheduling
	// KindDevice covers allocation and submission failures.
	KindDevice
	// KindRecord covers errors returned by pass recorders.
	KindRecord
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindScheduling:
		return "scheduling"
	case KindDevice:
		return "device"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// GraphError is the error type returned by Compile and Execute.
type GraphError struct {
	Kind ErrorKind
	// Pass is the name of the pass involved, if any.
	Pass string
	// Resource describes the handle involved, if any.
	Resource string
	Err      error
}

func (e *GraphError) Error() string {
	msg := "rendergraph: " + e.Kind.String() + " error"
	if e.Pass != "" {
		msg += " in pass " + fmt.Sprintf("%q", e.Pass)
	}
	if e.Resource != "" {
		msg += " on " + e.Resource
	}
	return msg + ": " + e.Err.Error()
}

func (e *GraphError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsScheduling reports whether err is a scheduling error.
func IsScheduling(err error) bool { return isKind(err, KindScheduling) }

// IsDevice reports whether err is a device error.
func IsDevice(err error) bool { return isKind(err, KindDevice) }

func isKind(err error, k ErrorKind) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.Kind == k
}

func configErr(pass, resource string, err error) error {
	return &GraphError{Kind: KindConfiguration, Pass: pass, Resource: resource, Err: err}
}

func configErrf(pass, resource string, sentinel error, format string, a ...any) error {
	return configErr(pass, resource, fmt.Errorf("%w: "+format, append([]any{sentinel}, a...)...))
}

func deviceErr(pass string, err error) error {
	if !errors.Is(err, ErrDevice) {
		err = fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return &GraphError{Kind: KindDevice, Pass: pass, Err: err}
}
