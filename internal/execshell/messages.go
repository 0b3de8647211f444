package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageCompletion
	messageStageFailure
	messageStageExecutionError
)

const (
	aptGetUpdateSubcommandConstant      = "update"
	aptGetDistUpgradeSubcommandConstant = "dist-upgrade"
	aptGetInstallSubcommandConstant     = "install"
	aptGetReinstallFlagConstant         = "--reinstall"
	aptGetOptionFlagConstant            = "-o"

	systemctlIsActiveSubcommandConstant = "is-active"
	systemctlDisableSubcommandConstant  = "disable"

	flagArgumentPrefixConstant = "-"

	packageIndexRefreshStartTemplateConstant     = "Refreshing package indexes%s"
	packageIndexRefreshCompletedTemplateConstant = "Package indexes refreshed"
	packageIndexRefreshFailureTemplateConstant   = "Package index refresh failed with exit code %d%s"
	packageIndexRefreshErrorTemplateConstant     = "Package index refresh failed: %s"
	distributionUpgradeStartTemplateConstant     = "Starting distribution upgrade%s"
	distributionUpgradeCompletedTemplateConstant = "Distribution upgrade completed"
	distributionUpgradeFailureTemplateConstant   = "Distribution upgrade failed with exit code %d%s"
	distributionUpgradeErrorTemplateConstant     = "Distribution upgrade failed: %s"
	packageReinstallStartTemplateConstant        = "Reinstalling %s"
	packageReinstallCompletedTemplateConstant    = "Reinstalled %s"
	packageReinstallFailureTemplateConstant      = "Reinstallation of %s failed with exit code %d%s"
	packageReinstallErrorTemplateConstant        = "Reinstallation of %s failed: %s"
	packageInstallStartTemplateConstant          = "Installing %s"
	packageInstallCompletedTemplateConstant      = "Installed %s"
	packageInstallFailureTemplateConstant        = "Installation of %s failed with exit code %d%s"
	packageInstallErrorTemplateConstant          = "Installation of %s failed: %s"
	packageStatusQueryStartTemplateConstant      = "Checking installation status of %s"
	packageStatusQueryCompletedTemplateConstant  = "Checked installation status of %s"
	packageStatusQueryFailureTemplateConstant    = "Status query for %s failed with exit code %d%s"
	packageStatusQueryErrorTemplateConstant      = "Status query for %s failed: %s"
	unitActivityCheckStartTemplateConstant       = "Checking whether %s is active"
	unitActivityCheckCompletedTemplateConstant   = "Checked whether %s is active"
	unitActivityCheckFailureTemplateConstant     = "Activity check for %s failed with exit code %d%s"
	unitActivityCheckErrorTemplateConstant       = "Activity check for %s failed: %s"
	unitShutdownStartTemplateConstant            = "Disabling and stopping %s"
	unitShutdownCompletedTemplateConstant        = "Disabled and stopped %s"
	unitShutdownFailureTemplateConstant          = "Disabling %s failed with exit code %d%s"
	unitShutdownErrorTemplateConstant            = "Disabling %s failed: %s"
	releaseProbeStartTemplateConstant            = "Probing installed release"
	releaseProbeCompletedTemplateConstant        = "Probed installed release"
	releaseProbeFailureTemplateConstant          = "Release probe failed with exit code %d%s"
	releaseProbeErrorTemplateConstant            = "Release probe failed: %s"
	genericCommandStartTemplateConstant          = "Running %s%s"
	genericCommandCompletedTemplateConstant      = "Completed %s"
	genericCommandFailureTemplateConstant        = "%s failed with exit code %d%s"
	genericCommandExecutionErrorTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant       = " (in %s)"
	standardErrorSuffixTemplateConstant          = ": %s"
	commandLabelSeparatorConstant                = " "
	packageListSeparatorConstant                 = ", "
	unknownValuePlaceholderConstant              = "unknown"
	unknownExecutionFailurePlaceholderConstant   = "unknown error"
)

// CommandMessageFormatter renders human-readable descriptions of command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartMessage(command ShellCommand) string {
	return formatter.buildMessage(messageStageStart, command, ExecutionResult{}, nil)
}

// BuildCompletionMessage describes a command that finished with a zero exit code.
func (formatter CommandMessageFormatter) BuildCompletionMessage(command ShellCommand) string {
	return formatter.buildMessage(messageStageCompletion, command, ExecutionResult{}, nil)
}

// BuildFailureMessage describes a command that finished with a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(messageStageFailure, command, result, nil)
}

// BuildExecutionErrorMessage describes a command that could not be executed.
func (formatter CommandMessageFormatter) BuildExecutionErrorMessage(command ShellCommand, cause error) string {
	return formatter.buildMessage(messageStageExecutionError, command, ExecutionResult{}, cause)
}

// ShouldAnnounceStart reports whether a start message adds value for the command.
// Quick probes finish fast enough that announcing them only produces noise.
func (formatter CommandMessageFormatter) ShouldAnnounceStart(command ShellCommand) bool {
	switch command.Name {
	case CommandDpkgQuery, CommandPveVersion:
		return false
	case CommandSystemctl:
		return !containsArgument(command.Details.Arguments, systemctlIsActiveSubcommandConstant)
	default:
		return true
	}
}

func (formatter CommandMessageFormatter) buildMessage(stage messageStage, command ShellCommand, result ExecutionResult, cause error) string {
	switch command.Name {
	case CommandAptGet:
		return formatter.describeAptGet(stage, command, result, cause)
	case CommandDpkgQuery:
		return formatter.describeDpkgQuery(stage, command, result, cause)
	case CommandSystemctl:
		return formatter.describeSystemctl(stage, command, result, cause)
	case CommandPveVersion:
		return formatter.describePveVersion(stage, result, cause)
	default:
		return formatter.describeGenericCommand(stage, command, result, cause)
	}
}

func (formatter CommandMessageFormatter) describeAptGet(stage messageStage, command ShellCommand, result ExecutionResult, cause error) string {
	switch firstPositionalArgument(command.Details.Arguments) {
	case aptGetUpdateSubcommandConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(packageIndexRefreshStartTemplateConstant, formatWorkingDirectorySuffix(command))
		case messageStageCompletion:
			return packageIndexRefreshCompletedTemplateConstant
		case messageStageFailure:
			return fmt.Sprintf(packageIndexRefreshFailureTemplateConstant, result.ExitCode, formatStandardErrorSuffix(result))
		default:
			return fmt.Sprintf(packageIndexRefreshErrorTemplateConstant, describeFailureCause(cause))
		}
	case aptGetDistUpgradeSubcommandConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(distributionUpgradeStartTemplateConstant, formatWorkingDirectorySuffix(command))
		case messageStageCompletion:
			return distributionUpgradeCompletedTemplateConstant
		case messageStageFailure:
			return fmt.Sprintf(distributionUpgradeFailureTemplateConstant, result.ExitCode, formatStandardErrorSuffix(result))
		default:
			return fmt.Sprintf(distributionUpgradeErrorTemplateConstant, describeFailureCause(cause))
		}
	case aptGetInstallSubcommandConstant:
		packageList := formatPackageList(command.Details.Arguments)
		if containsArgument(command.Details.Arguments, aptGetReinstallFlagConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(packageReinstallStartTemplateConstant, packageList)
			case messageStageCompletion:
				return fmt.Sprintf(packageReinstallCompletedTemplateConstant, packageList)
			case messageStageFailure:
				return fmt.Sprintf(packageReinstallFailureTemplateConstant, packageList, result.ExitCode, formatStandardErrorSuffix(result))
			default:
				return fmt.Sprintf(packageReinstallErrorTemplateConstant, packageList, describeFailureCause(cause))
			}
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(packageInstallStartTemplateConstant, packageList)
		case messageStageCompletion:
			return fmt.Sprintf(packageInstallCompletedTemplateConstant, packageList)
		case messageStageFailure:
			return fmt.Sprintf(packageInstallFailureTemplateConstant, packageList, result.ExitCode, formatStandardErrorSuffix(result))
		default:
			return fmt.Sprintf(packageInstallErrorTemplateConstant, packageList, describeFailureCause(cause))
		}
	default:
		return formatter.describeGenericCommand(stage, command, result, cause)
	}
}

func (formatter CommandMessageFormatter) describeDpkgQuery(stage messageStage, command ShellCommand, result ExecutionResult, cause error) string {
	packageName := ensureValue(lastPositionalArgument(command.Details.Arguments))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(packageStatusQueryStartTemplateConstant, packageName)
	case messageStageCompletion:
		return fmt.Sprintf(packageStatusQueryCompletedTemplateConstant, packageName)
	case messageStageFailure:
		return fmt.Sprintf(packageStatusQueryFailureTemplateConstant, packageName, result.ExitCode, formatStandardErrorSuffix(result))
	default:
		return fmt.Sprintf(packageStatusQueryErrorTemplateConstant, packageName, describeFailureCause(cause))
	}
}

func (formatter CommandMessageFormatter) describeSystemctl(stage messageStage, command ShellCommand, result ExecutionResult, cause error) string {
	unitName := ensureValue(lastPositionalArgument(command.Details.Arguments))
	if containsArgument(command.Details.Arguments, systemctlIsActiveSubcommandConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(unitActivityCheckStartTemplateConstant, unitName)
		case messageStageCompletion:
			return fmt.Sprintf(unitActivityCheckCompletedTemplateConstant, unitName)
		case messageStageFailure:
			return fmt.Sprintf(unitActivityCheckFailureTemplateConstant, unitName, result.ExitCode, formatStandardErrorSuffix(result))
		default:
			return fmt.Sprintf(unitActivityCheckErrorTemplateConstant, unitName, describeFailureCause(cause))
		}
	}
	if containsArgument(command.Details.Arguments, systemctlDisableSubcommandConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(unitShutdownStartTemplateConstant, unitName)
		case messageStageCompletion:
			return fmt.Sprintf(unitShutdownCompletedTemplateConstant, unitName)
		case messageStageFailure:
			return fmt.Sprintf(unitShutdownFailureTemplateConstant, unitName, result.ExitCode, formatStandardErrorSuffix(result))
		default:
			return fmt.Sprintf(unitShutdownErrorTemplateConstant, unitName, describeFailureCause(cause))
		}
	}
	return formatter.describeGenericCommand(stage, command, result, cause)
}

func (formatter CommandMessageFormatter) describePveVersion(stage messageStage, result ExecutionResult, cause error) string {
	switch stage {
	case messageStageStart:
		return releaseProbeStartTemplateConstant
	case messageStageCompletion:
		return releaseProbeCompletedTemplateConstant
	case messageStageFailure:
		return fmt.Sprintf(releaseProbeFailureTemplateConstant, result.ExitCode, formatStandardErrorSuffix(result))
	default:
		return fmt.Sprintf(releaseProbeErrorTemplateConstant, describeFailureCause(cause))
	}
}

func (formatter CommandMessageFormatter) describeGenericCommand(stage messageStage, command ShellCommand, result ExecutionResult, cause error) string {
	commandLabel := formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericCommandStartTemplateConstant, commandLabel, formatWorkingDirectorySuffix(command))
	case messageStageCompletion:
		return fmt.Sprintf(genericCommandCompletedTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericCommandFailureTemplateConstant, commandLabel, result.ExitCode, formatStandardErrorSuffix(result))
	default:
		return fmt.Sprintf(genericCommandExecutionErrorTemplateConstant, commandLabel, describeFailureCause(cause))
	}
}

func formatCommandLabel(command ShellCommand) string {
	labelParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(labelParts, commandLabelSeparatorConstant)
}

func formatWorkingDirectorySuffix(command ShellCommand) string {
	if len(command.Details.WorkingDirectory) == 0 {
		return ""
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
}

func formatStandardErrorSuffix(result ExecutionResult) string {
	trimmedStandardError := strings.TrimSpace(result.StandardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func describeFailureCause(cause error) string {
	if cause == nil {
		return unknownExecutionFailurePlaceholderConstant
	}
	return cause.Error()
}

func ensureValue(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return unknownValuePlaceholderConstant
	}
	return value
}

func containsArgument(arguments []string, candidate string) bool {
	for _, argument := range arguments {
		if argument == candidate {
			return true
		}
	}
	return false
}

// firstPositionalArgument finds the subcommand operand, skipping flags and the
// values consumed by -o options.
func firstPositionalArgument(arguments []string) string {
	skipNextArgument := false
	for _, argument := range arguments {
		if skipNextArgument {
			skipNextArgument = false
			continue
		}
		if argument == aptGetOptionFlagConstant {
			skipNextArgument = true
			continue
		}
		if !strings.HasPrefix(argument, flagArgumentPrefixConstant) {
			return argument
		}
	}
	return ""
}

func lastPositionalArgument(arguments []string) string {
	lastPositional := ""
	for _, argument := range arguments {
		if !strings.HasPrefix(argument, flagArgumentPrefixConstant) {
			lastPositional = argument
		}
	}
	return lastPositional
}

// formatPackageList joins the package operands of an install invocation, skipping
// the subcommand, flags, and the values consumed by -o options.
func formatPackageList(arguments []string) string {
	packageNames := []string{}
	subcommandSeen := false
	skipNextArgument := false
	for _, argument := range arguments {
		if skipNextArgument {
			skipNextArgument = false
			continue
		}
		if argument == aptGetOptionFlagConstant {
			skipNextArgument = true
			continue
		}
		if strings.HasPrefix(argument, flagArgumentPrefixConstant) {
			continue
		}
		if !subcommandSeen {
			subcommandSeen = true
			continue
		}
		packageNames = append(packageNames, argument)
	}
	if len(packageNames) == 0 {
		return unknownValuePlaceholderConstant
	}
	return strings.Join(packageNames, packageListSeparatorConstant)
}
