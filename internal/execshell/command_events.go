package execshell

// CommandEventObserver receives lifecycle notifications while shell commands run.
type CommandEventObserver interface {
	// CommandStarted announces that command execution is about to begin.
	CommandStarted(command ShellCommand)
	// CommandCompleted delivers the result of a command that ran to completion.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports commands that never produced a result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver discards every command event.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
