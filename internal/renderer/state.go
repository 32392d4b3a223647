// Package renderer implements the Connector Renderer (§4.1): the per-output
// state machine, render thread and lifecycle operations that tie together
// internal/kms, internal/strategy, internal/swapchain, internal/cursor and
// internal/pageflip.
package renderer

import "fmt"

// State is the Connector Renderer's lifecycle state (§4.1).
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateChangingMode
	StateRevertingMode
	StateSuspending
	StateSuspended
	StateResuming
	StateUninitializing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateChangingMode:
		return "changing_mode"
	case StateRevertingMode:
		return "reverting_mode"
	case StateSuspending:
		return "suspending"
	case StateSuspended:
		return "suspended"
	case StateResuming:
		return "resuming"
	case StateUninitializing:
		return "uninitializing"
	default:
		return "unknown"
	}
}

// validTransitions enumerates every edge the state machine permits (§4.1).
var validTransitions = map[State][]State{
	StateUninitialized:  {StateInitializing},
	StateInitializing:   {StateInitialized, StateUninitialized}, // failure unwinds to Uninitialized
	StateInitialized:    {StateChangingMode, StateSuspending, StateUninitializing},
	StateChangingMode:   {StateInitialized, StateRevertingMode},
	StateRevertingMode:  {StateInitialized, StateUninitialized},
	StateSuspending:     {StateSuspended},
	StateSuspended:      {StateResuming, StateUninitializing},
	StateResuming:       {StateInitialized, StateRevertingMode},
	StateUninitializing: {StateUninitialized},
}

func (s State) canTransitionTo(next State) bool {
	for _, v := range validTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when an operation would move the
// Connector out of its current state illegally.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("renderer: invalid state transition %s -> %s", e.From, e.To)
}
