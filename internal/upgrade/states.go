package upgrade

import "fmt"

// ConvergenceState identifies one stage of the migration state machine.
type ConvergenceState string

// States of a convergence run. Unsupported and Done are terminal.
const (
	StateUnsupported ConvergenceState = "unsupported"
	StateAtSource    ConvergenceState = "at_source"
	StateMigrating   ConvergenceState = "migrating"
	StateAtTarget    ConvergenceState = "at_target"
	StatePostInstall ConvergenceState = "post_install"
	StateDone        ConvergenceState = "done"
)

const invalidTransitionMessageTemplateConstant = "invalid state transition from %s to %s"

// InvalidTransitionError reports a state change outside the allowed graph.
type InvalidTransitionError struct {
	FromState ConvergenceState
	ToState   ConvergenceState
}

// Error describes the rejected transition.
func (transitionError InvalidTransitionError) Error() string {
	return fmt.Sprintf(invalidTransitionMessageTemplateConstant, transitionError.FromState, transitionError.ToState)
}

var allowedStateTransitions = map[ConvergenceState][]ConvergenceState{
	StateAtSource:    {StateMigrating},
	StateMigrating:   {StatePostInstall},
	StateAtTarget:    {StatePostInstall},
	StatePostInstall: {StateDone},
}

type convergenceStateMachine struct {
	currentState ConvergenceState
}

func newConvergenceStateMachine(initialState ConvergenceState) *convergenceStateMachine {
	return &convergenceStateMachine{currentState: initialState}
}

func (machine *convergenceStateMachine) Current() ConvergenceState {
	return machine.currentState
}

func (machine *convergenceStateMachine) Transition(nextState ConvergenceState) error {
	for _, allowedState := range allowedStateTransitions[machine.currentState] {
		if allowedState == nextState {
			machine.currentState = nextState
			return nil
		}
	}
	return InvalidTransitionError{FromState: machine.currentState, ToState: nextState}
}
