package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/pveup/internal/execshell"
)

// ConsoleCommandEventLogger narrates command lifecycle events through a zap logger
// configured for human-readable output. Quick probes stay silent so the console
// only reports commands that change the system; failures to launch any command
// are always surfaced.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver by announcing commands about to run.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	if !eventLogger.formatter.ShouldAnnounceStart(command) {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver by reporting command outcomes.
// Probe outcomes are treated as data for their callers rather than console events.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if !eventLogger.formatter.ShouldAnnounceStart(command) {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildCompletionMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver by reporting commands
// that never launched.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionErrorMessage(command, failure))
}
