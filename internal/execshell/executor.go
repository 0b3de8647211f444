package execshell

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const (
	aptGetToolNameConstant     = "apt-get"
	dpkgQueryToolNameConstant  = "dpkg-query"
	systemctlToolNameConstant  = "systemctl"
	pveVersionToolNameConstant = "pveversion"

	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"

	commandStartedLogMessageConstant   = "command started"
	commandCompletedLogMessageConstant = "command completed"
	commandFailedLogMessageConstant    = "command failed"
	commandErroredLogMessageConstant   = "command execution failed"

	commandLogFieldNameConstant          = "command"
	argumentsLogFieldNameConstant        = "arguments"
	workingDirectoryLogFieldNameConstant = "working_directory"
	exitCodeLogFieldNameConstant         = "exit_code"
	standardErrorLogFieldNameConstant    = "stderr"
)

// CommandName identifies an external tool the executor knows how to run.
type CommandName string

// Tool names invoked during an upgrade run.
const (
	CommandAptGet     CommandName = CommandName(aptGetToolNameConstant)
	CommandDpkgQuery  CommandName = CommandName(dpkgQueryToolNameConstant)
	CommandSystemctl  CommandName = CommandName(systemctlToolNameConstant)
	CommandPveVersion CommandName = CommandName(pveVersionToolNameConstant)
)

// Configuration errors reported by NewShellExecutor.
var (
	ErrLoggerNotConfigured        = errors.New(loggerNotConfiguredMessageConstant)
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandDetails captures the invocation parameters of a shell command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples a tool name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult describes the observable outcome of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner abstracts operating system process execution.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error renders a human-readable description of the failure.
func (failure CommandFailedError) Error() string {
	formatter := CommandMessageFormatter{}
	return formatter.BuildFailureMessage(failure.Command, failure.Result)
}

// CommandExecutionError reports a command that could not be executed at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error renders a human-readable description of the execution failure.
func (failure CommandExecutionError) Error() string {
	formatter := CommandMessageFormatter{}
	return formatter.BuildExecutionErrorMessage(failure.Command, failure.Cause)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As checks.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutor runs external tools while recording their lifecycle in the logger
// and notifying an optional observer about command events.
type ShellExecutor struct {
	logger               *zap.Logger
	commandRunner        CommandRunner
	messageFormatter     CommandMessageFormatter
	eventObserver        CommandEventObserver
	humanReadableLogging bool
}

// NewShellExecutor validates the supplied dependencies and assembles a ShellExecutor.
// When humanReadableLogging is enabled the executor keeps its own records at debug
// verbosity so an attached console observer can narrate command progress instead.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	return &ShellExecutor{
		logger:               logger,
		commandRunner:        commandRunner,
		messageFormatter:     CommandMessageFormatter{},
		eventObserver:        noopCommandEventObserver{},
		humanReadableLogging: humanReadableLogging,
	}, nil
}

// SetCommandEventObserver registers the observer notified about command lifecycle events.
func (executor *ShellExecutor) SetCommandEventObserver(observer CommandEventObserver) {
	if observer == nil {
		executor.eventObserver = noopCommandEventObserver{}
		return
	}
	executor.eventObserver = observer
}

// ExecuteAptGet runs apt-get with the provided details.
func (executor *ShellExecutor) ExecuteAptGet(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandAptGet, Details: details})
}

// ExecuteDpkgQuery runs dpkg-query with the provided details.
func (executor *ShellExecutor) ExecuteDpkgQuery(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandDpkgQuery, Details: details})
}

// ExecuteSystemctl runs systemctl with the provided details.
func (executor *ShellExecutor) ExecuteSystemctl(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandSystemctl, Details: details})
}

// ExecutePveVersion runs pveversion with the provided details.
func (executor *ShellExecutor) ExecutePveVersion(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandPveVersion, Details: details})
}

// ExecuteTool runs an arbitrary tool, such as a release-specific checklist binary
// whose name is only known at runtime.
func (executor *ShellExecutor) ExecuteTool(executionContext context.Context, toolName CommandName, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: toolName, Details: details})
}

// Execute runs the command, records start and outcome entries in the logger, and
// converts failures into typed errors callers can inspect.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logCommandStart(command)
	executor.eventObserver.CommandStarted(command)

	executionResult, runError := executor.commandRunner.Run(executionContext, command)
	if runError != nil {
		executor.logExecutionError(command, runError)
		executor.eventObserver.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.logCommandOutcome(command, executionResult)
	executor.eventObserver.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		return executionResult, CommandFailedError{Command: command, Result: executionResult}
	}

	return executionResult, nil
}

func (executor *ShellExecutor) logCommandStart(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.messageFormatter.BuildStartMessage(command))
		return
	}

	executor.logger.Debug(commandStartedLogMessageConstant, commandLogFields(command)...)
}

func (executor *ShellExecutor) logCommandOutcome(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		if result.ExitCode == 0 {
			executor.logger.Debug(executor.messageFormatter.BuildCompletionMessage(command))
			return
		}
		executor.logger.Debug(executor.messageFormatter.BuildFailureMessage(command, result))
		return
	}

	if result.ExitCode == 0 {
		executor.logger.Info(commandCompletedLogMessageConstant, commandLogFields(command)...)
		return
	}

	outcomeFields := append(commandLogFields(command),
		zap.Int(exitCodeLogFieldNameConstant, result.ExitCode),
		zap.String(standardErrorLogFieldNameConstant, result.StandardError),
	)
	executor.logger.Warn(commandFailedLogMessageConstant, outcomeFields...)
}

func (executor *ShellExecutor) logExecutionError(command ShellCommand, runError error) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.messageFormatter.BuildExecutionErrorMessage(command, runError))
		return
	}

	executor.logger.Error(commandErroredLogMessageConstant, append(commandLogFields(command), zap.Error(runError))...)
}

func commandLogFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(commandLogFieldNameConstant, string(command.Name)),
		zap.Strings(argumentsLogFieldNameConstant, command.Details.Arguments),
		zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
	}
}
