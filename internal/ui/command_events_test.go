package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/pveup/internal/execshell"
	"github.com/temirov/pveup/internal/ui"
)

const (
	testUpgradeStandardErrorConstant    = "E: unable to fetch archives"
	testExecutionFailureReasonConstant  = "executable file not found"
	testUpgradeStartMessageConstant     = "Starting distribution upgrade"
	testUpgradeCompletedMessageConstant = "Distribution upgrade completed"
	testUpgradeFailureMessageConstant   = "Distribution upgrade failed with exit code 100: " + testUpgradeStandardErrorConstant
	testProbeExecutionFailureMessage    = "Status query for chrony failed: " + testExecutionFailureReasonConstant
)

func distributionUpgradeCommand() execshell.ShellCommand {
	return execshell.ShellCommand{
		Name:    execshell.CommandAptGet,
		Details: execshell.CommandDetails{Arguments: []string{"-y", "dist-upgrade"}},
	}
}

func packageStatusProbeCommand() execshell.ShellCommand {
	return execshell.ShellCommand{
		Name:    execshell.CommandDpkgQuery,
		Details: execshell.CommandDetails{Arguments: []string{"-W", "chrony"}},
	}
}

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: "upgrade_started",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(distributionUpgradeCommand())
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testUpgradeStartMessageConstant,
		},
		{
			name: "upgrade_completed_success",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(distributionUpgradeCommand(), execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testUpgradeCompletedMessageConstant,
		},
		{
			name: "upgrade_completed_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(distributionUpgradeCommand(), execshell.ExecutionResult{ExitCode: 100, StandardError: testUpgradeStandardErrorConstant})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testUpgradeFailureMessageConstant,
		},
		{
			name: "probe_execution_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(packageStatusProbeCommand(), errors.New(testExecutionFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testProbeExecutionFailureMessage,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			consoleLogger := zap.New(observerCore)
			eventLogger := ui.NewConsoleCommandEventLogger(consoleLogger)

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
		})
	}
}

func TestConsoleCommandEventLoggerKeepsProbesQuiet(testInstance *testing.T) {
	testCases := []struct {
		name   string
		invoke func(logger *ui.ConsoleCommandEventLogger)
	}{
		{
			name: "probe_started",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(packageStatusProbeCommand())
			},
		},
		{
			name: "probe_completed",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(packageStatusProbeCommand(), execshell.ExecutionResult{ExitCode: 0})
			},
		},
		{
			name: "probe_negative_result",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(packageStatusProbeCommand(), execshell.ExecutionResult{ExitCode: 1})
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			eventLogger := ui.NewConsoleCommandEventLogger(zap.New(observerCore))

			testCase.invoke(eventLogger)

			require.Empty(testInstance, observedLogs.All())
		})
	}
}
