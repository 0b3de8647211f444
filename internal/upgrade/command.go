package upgrade

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/pveup/internal/aptcli"
	"github.com/temirov/pveup/internal/aptsources"
	"github.com/temirov/pveup/internal/backup"
	"github.com/temirov/pveup/internal/execshell"
	"github.com/temirov/pveup/internal/patch"
	"github.com/temirov/pveup/internal/platform"
	"github.com/temirov/pveup/internal/pvecli"
	"github.com/temirov/pveup/internal/systemdcli"
	"github.com/temirov/pveup/internal/ui"
	"github.com/temirov/pveup/internal/utils"
	flagutils "github.com/temirov/pveup/internal/utils/flags"
)

const (
	commandUseConstant              = "pveup"
	commandShortDescriptionConstant = "Converge the host onto the target release"
	commandLongDescriptionConstant  = "pveup probes the installed release, migrates repository declarations to the structured format, runs the distribution upgrade, and normalizes post-install state. Re-running an interrupted upgrade converges instead of repeating work."

	unattendedFlagNameConstant  = "unattended"
	unattendedFlagUsageConstant = "Run without the interactive confirmation prompt"
	assumeYesFlagNameConstant   = "assume-yes"
	assumeYesFlagUsageConstant  = "Answer the confirmation prompt affirmatively"

	clusterConfigurationPathConstant = "/etc/pve/corosync.conf"
	backupComponentPathConstant      = "/usr/sbin/proxmox-backup-manager"

	versionOracleCreationErrorTemplateConstant     = "unable to construct version oracle: %w"
	clusterMembershipCreationErrorTemplateConstant = "unable to construct cluster membership: %w"
	stateProbeCreationErrorTemplateConstant        = "unable to construct state probe: %w"
	preflightCreationErrorTemplateConstant         = "unable to construct preflight checker: %w"
	packageManagerCreationErrorTemplateConstant    = "unable to construct package manager: %w"
	serviceControllerCreationErrorTemplateConstant = "unable to construct service controller: %w"
	snapshotManagerCreationErrorTemplateConstant   = "unable to construct snapshot manager: %w"
	migratorCreationErrorTemplateConstant          = "unable to construct repository migrator: %w"
	convergenceFailedErrorTemplateConstant         = "convergence failed: %w"
)

// CommandExecutor runs the external tools the convergence run shells out to.
type CommandExecutor interface {
	ExecutePveVersion(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteTool(executionContext context.Context, toolName execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteAptGet(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteDpkgQuery(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteSystemctl(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ConvergenceExecutor abstracts the convergence service for command wiring.
type ConvergenceExecutor interface {
	Converge(executionContext context.Context, configuration Configuration) (Result, error)
}

// ServiceProvider constructs a convergence executor from dependencies.
type ServiceProvider func(dependencies Dependencies) (ConvergenceExecutor, error)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the pveup Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
}

// Build constructs the convergence command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runConvergence,
	}

	flagutils.AddToggleFlag(command.Flags(), nil, unattendedFlagNameConstant, "", false, unattendedFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), nil, assumeYesFlagNameConstant, "", false, assumeYesFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runConvergence(command *cobra.Command, _ []string) error {
	configuration := builder.parseOptions(command)

	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	service, serviceError := builder.resolveService(command, logger, executor, configuration)
	if serviceError != nil {
		return serviceError
	}

	_, convergenceError := service.Converge(command.Context(), configuration)
	if convergenceError != nil {
		return fmt.Errorf(convergenceFailedErrorTemplateConstant, convergenceError)
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) Configuration {
	configuration := builder.resolveConfiguration()

	if command != nil {
		if command.Flags().Changed(unattendedFlagNameConstant) {
			flagValue, _ := command.Flags().GetBool(unattendedFlagNameConstant)
			configuration.Unattended = flagValue
		}
		if command.Flags().Changed(assumeYesFlagNameConstant) {
			flagValue, _ := command.Flags().GetBool(assumeYesFlagNameConstant)
			configuration.AssumeYes = flagValue
		}
	}

	return configuration
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	if humanReadableLogging {
		shellExecutor.SetCommandEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveService(command *cobra.Command, logger *zap.Logger, executor CommandExecutor, configuration Configuration) (ConvergenceExecutor, error) {
	sourceGeneration, sourceError := configuration.SourceGeneration()
	if sourceError != nil {
		return nil, sourceError
	}
	targetGeneration, targetError := configuration.TargetGeneration()
	if targetError != nil {
		return nil, targetError
	}

	versionOracle, oracleError := pvecli.NewVersionOracle(executor)
	if oracleError != nil {
		return nil, fmt.Errorf(versionOracleCreationErrorTemplateConstant, oracleError)
	}

	clusterMembership, membershipError := pvecli.NewClusterMembership(clusterConfigurationPathConstant)
	if membershipError != nil {
		return nil, fmt.Errorf(clusterMembershipCreationErrorTemplateConstant, membershipError)
	}

	stateProbe, probeError := platform.NewStateProbe(platform.StateProbeDependencies{
		VersionOracle:       versionOracle,
		ClusterMembership:   clusterMembership,
		BackupComponentPath: backupComponentPathConstant,
	})
	if probeError != nil {
		return nil, fmt.Errorf(stateProbeCreationErrorTemplateConstant, probeError)
	}

	preflightChecker, preflightError := pvecli.NewPreflightChecker(executor, platform.ChecklistToolName(sourceGeneration, targetGeneration))
	if preflightError != nil {
		return nil, fmt.Errorf(preflightCreationErrorTemplateConstant, preflightError)
	}

	packageManager, packagesError := aptcli.NewPackageManager(executor)
	if packagesError != nil {
		return nil, fmt.Errorf(packageManagerCreationErrorTemplateConstant, packagesError)
	}

	serviceController, servicesError := systemdcli.NewServiceController(executor)
	if servicesError != nil {
		return nil, fmt.Errorf(serviceControllerCreationErrorTemplateConstant, servicesError)
	}

	snapshotManager, snapshotsError := backup.NewManager(configuration.BackupRootPath, nil)
	if snapshotsError != nil {
		return nil, fmt.Errorf(snapshotManagerCreationErrorTemplateConstant, snapshotsError)
	}

	migrator, migratorError := aptsources.NewMigrator(aptsources.MigratorOptions{
		SourceCodename: sourceGeneration.Codename(),
		Policy:         configuration.ChannelPolicy,
	})
	if migratorError != nil {
		return nil, fmt.Errorf(migratorCreationErrorTemplateConstant, migratorError)
	}

	prompter := ui.NewIOConfirmationPrompter(command.InOrStdin(), utils.NewFlushingWriter(command.OutOrStdout()))

	dependencies := Dependencies{
		Logger:           logger,
		Prober:           stateProbe,
		Preflight:        preflightChecker,
		Packages:         packageManager,
		Services:         serviceController,
		Migrator:         migrator,
		LoadDeclarations: aptsources.LoadDeclarations,
		Snapshots:        snapshotManager,
		Patcher:          patch.FilesystemPatcher{},
		Prompter:         prompter,
	}

	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}
