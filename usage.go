// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "fmt"

// ExitState is the state a pass leaves a resource in.
type ExitState struct {
	State State
	Stage Stage
}

// Usage declares how a pass touches one resource view.
type Usage struct {
	View  ResourceView
	State State
	// Stage is the set of pipeline stages that access the view. Zero selects
	// the state's default stage.
	Stage Stage
	// Chain marks one step of a loop inside the pass that writes the
	// resource and reads it again in a later step (mip chain generation, for
	// example). Consecutive chain usages are separated by barriers the pass
	// emits with Registry.AdvanceChain.
	Chain bool
	// Exit, if set, is the state the view must be in once the pass is done
	// (Present for a swapchain image, for example). The graph records a
	// transition into it in the step's Post barriers; the pass's commands
	// still leave the view in State. Without it the resource stays in State
	// until the next usage decides.
	Exit *ExitState
}

// Use returns a usage of view in state at stage.
func Use(view ResourceView, state State, stage Stage) Usage {
	return Usage{View: view, State: state, Stage: stage}
}

// UseImage returns a usage of an image view.
func UseImage(v ImageViewHandle, state State, stage Stage) Usage {
	return Use(ImageResource(v), state, stage)
}

// UseBuffer returns a usage of a buffer view.
func UseBuffer(v BufferViewHandle, state State, stage Stage) Usage {
	return Use(BufferResource(v), state, stage)
}

// InChain returns u marked as a chain step.
func (u Usage) InChain() Usage {
	u.Chain = true
	return u
}

// LeaveIn returns u with an explicit exit state.
func (u Usage) LeaveIn(state State, stage Stage) Usage {
	u.Exit = &ExitState{State: state, Stage: stage}
	return u
}

func (u Usage) String() string {
	s := fmt.Sprintf("%v %v@%v", u.View, u.State, u.Stage)
	if u.Chain {
		s += " chain"
	}
	if u.Exit != nil {
		s += fmt.Sprintf(" exit %v@%v", u.Exit.State, u.Exit.Stage)
	}
	return s
}
