package snapshot

import (
	"fmt"

	"github.com/gtixt/integrity-beacon/constants"
)

// State is a point-in-time view of the verification state machine.
// Step is set only while Phase is loading.
type State struct {
	Phase constants.Phase `json:"phase"`
	Step  constants.Stage `json:"step,omitempty"`
}

// Idle is the state before any run and at the start of each run.
var Idle = State{Phase: constants.PhaseIdle}

// Abandoned is the state of a run cancelled by its caller.
var Abandoned = State{Phase: constants.PhaseAbandoned}

// Loading returns the state for an in-progress step.
func Loading(step constants.Stage) State {
	return State{Phase: constants.PhaseLoading, Step: step}
}

// IsLoading returns true while a run is in progress.
func (s State) IsLoading() bool {
	return s.Phase == constants.PhaseLoading
}

// IsTerminal returns true for verified, mismatch and failed.
// Abandoned runs are not terminal outcomes.
func (s State) IsTerminal() bool {
	switch s.Phase {
	case constants.PhaseVerified, constants.PhaseMismatch, constants.PhaseFailed:
		return true
	}
	return false
}

func (s State) String() string {
	if s.IsLoading() {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Step)
	}
	return string(s.Phase)
}
