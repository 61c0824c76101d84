// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "fmt"

// QueueType selects the kind of hardware queue a pass runs on.
type QueueType uint8

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueTransfer

	queueTypeCount
)

func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("QueueType(%d)", uint8(q))
	}
}

// Recorder records the commands of one pass. Record is called at most once
// per frame, after the pass's barriers have been recorded into cmd. The
// Registry is only valid during the call.
type Recorder interface {
	Record(cmd CommandList, reg *Registry) error
}

// RecordFunc adapts a function to the Recorder interface.
type RecordFunc func(cmd CommandList, reg *Registry) error

// Record calls f(cmd, reg).
func (f RecordFunc) Record(cmd CommandList, reg *Registry) error { return f(cmd, reg) }

// PassOption configures a pass.
type PassOption func(*pass)

// ForceExecution keeps a pass even when nothing consumes its results, for
// passes whose effects the graph cannot see.
func ForceExecution() PassOption {
	return func(p *pass) {
		p.force = true
	}
}

// pass is one entry of the frame arena.
type pass struct {
	name     string
	queue    QueueType
	usages   []Usage
	recorder Recorder
	force    bool

	// resolved usages, filled by validation
	uses []resolvedUsage
}

// resolvedUsage is a usage with its handles checked and its range known.
type resolvedUsage struct {
	index int // position in pass.usages
	kind  ResourceType
	res   int // image or buffer arena index
	view  int // view arena index
	state State
	stage Stage
	chain bool
	exit  *ExitState
	// spans are key ranges in the resource's tracking space.
	spans []span
}

type span struct{ begin, end uint64 }
