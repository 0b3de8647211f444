package upgrade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvergenceStateMachineAllowsDeclaredTransitions(testInstance *testing.T) {
	testCases := []struct {
		name         string
		initialState ConvergenceState
		nextState    ConvergenceState
	}{
		{name: "source_to_migrating", initialState: StateAtSource, nextState: StateMigrating},
		{name: "migrating_to_post_install", initialState: StateMigrating, nextState: StatePostInstall},
		{name: "target_to_post_install", initialState: StateAtTarget, nextState: StatePostInstall},
		{name: "post_install_to_done", initialState: StatePostInstall, nextState: StateDone},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			machine := newConvergenceStateMachine(testCase.initialState)

			transitionError := machine.Transition(testCase.nextState)

			require.NoError(subtestInstance, transitionError)
			require.Equal(subtestInstance, testCase.nextState, machine.Current())
		})
	}
}

func TestConvergenceStateMachineRejectsUndeclaredTransitions(testInstance *testing.T) {
	testCases := []struct {
		name         string
		initialState ConvergenceState
		nextState    ConvergenceState
	}{
		{name: "source_skips_migration", initialState: StateAtSource, nextState: StatePostInstall},
		{name: "target_cannot_start_migration", initialState: StateAtTarget, nextState: StateMigrating},
		{name: "migration_cannot_reverse", initialState: StateMigrating, nextState: StateAtSource},
		{name: "done_is_terminal", initialState: StateDone, nextState: StateMigrating},
		{name: "unsupported_is_terminal", initialState: StateUnsupported, nextState: StateMigrating},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			machine := newConvergenceStateMachine(testCase.initialState)

			transitionError := machine.Transition(testCase.nextState)

			var invalidTransition InvalidTransitionError
			require.ErrorAs(subtestInstance, transitionError, &invalidTransition)
			require.Equal(subtestInstance, testCase.initialState, invalidTransition.FromState)
			require.Equal(subtestInstance, testCase.nextState, invalidTransition.ToState)
			require.Equal(subtestInstance, testCase.initialState, machine.Current())
		})
	}
}
