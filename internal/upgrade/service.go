package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/pveup/internal/aptcli"
	"github.com/temirov/pveup/internal/aptsources"
	"github.com/temirov/pveup/internal/backup"
	"github.com/temirov/pveup/internal/platform"
)

const (
	proberMissingMessageConstant    = "system prober not configured"
	preflightMissingMessageConstant = "preflight checker not configured"
	packagesMissingMessageConstant  = "package manager not configured"
	servicesMissingMessageConstant  = "service controller not configured"
	migratorMissingMessageConstant  = "repository migrator not configured"
	loaderMissingMessageConstant    = "declaration loader not configured"
	snapshotsMissingMessageConstant = "snapshot manager not configured"
	patcherMissingMessageConstant   = "artifact patcher not configured"
	prompterMissingMessageConstant  = "confirmation prompter not configured"

	unsupportedReasonTemplateConstant       = "installed release %d is neither the configured source nor the target"
	unsupportedRemediationConstant          = "upgrade manually or adjust the source/target release configuration"
	probeFailedReasonConstant               = "system state could not be probed"
	probeFailedRemediationConstant          = "verify the platform tooling is installed and the host is readable"
	configurationReasonConstant             = "release configuration invalid"
	configurationRemediationConstant        = "set source and target to supported release numbers"
	preflightFailuresReasonTemplateConstant = "preflight checklist reported %d blocking finding(s)"
	preflightFailuresRemediationConstant    = "resolve the reported blockers and re-run"
	preflightRunReasonConstant              = "preflight checklist could not run"
	preflightRunRemediationConstant         = "install the checklist tool shipped with the current release"
	promptFailedReasonConstant              = "confirmation prompt unavailable"
	promptFailedRemediationConstant         = "re-run with --assume-yes or --unattended"

	rebootAdviceConstant                = "reboot into the upgraded kernel before relying on the new release"
	mixedChannelsAdviceConstant         = "paid and free channels are both enabled"
	storageActiveAdviceTemplateConstant = "storage service %s is active; verify storage health after convergence"

	logMessageProbedSystemConstant         = "Probed system state"
	logMessageAlreadyAtTargetConstant      = "Host already runs the target release"
	logMessagePreflightWarningConstant     = "Preflight reported a warning"
	logMessageUpgradeDeclinedConstant      = "Upgrade declined; nothing changed"
	logMessageBackupCapturedConstant       = "Captured repository backup"
	logMessageTokenRewrittenConstant       = "Rewrote release token"
	logMessageDeclarationsMigratedConstant = "Converged repository declarations"
	logMessageLegacyRenamedConstant        = "Renamed legacy declaration aside"
	logMessageHelperCreatedConstant        = "Created helper artifacts"
	logMessagePatchAppliedConstant         = "Applied subscription notice patch"
	logMessagePatchNotNeededConstant       = "Subscription notice patch not applicable"
	logMessageUtilityInstalledConstant     = "Installed utility package"
	logMessageClusterServiceKeptConstant   = "Cluster detected; leaving high-availability service untouched"
	logMessageServiceDisabledConstant      = "Disabled high-availability service"
	logMessageConvergenceDoneConstant      = "Convergence finished"

	logFieldGenerationConstant    = "generation"
	logFieldMinorVersionConstant  = "minor_version"
	logFieldClusteredConstant     = "clustered"
	logFieldSnapshotPathConstant  = "snapshot_path"
	logFieldCapturedFilesConstant = "captured_files"
	logFieldFileConstant          = "file"
	logFieldRenamedToConstant     = "renamed_to"
	logFieldFindingConstant       = "finding"
	logFieldScriptCreatedConstant = "script_created"
	logFieldHookCreatedConstant   = "hook_created"
	logFieldPackageConstant       = "package"
	logFieldUnitConstant          = "unit"
	logFieldActiveConstant        = "active"
	logFieldInitialStateConstant  = "initial_state"
	logFieldFinalStateConstant    = "final_state"
	logFieldWarningCountConstant  = "warning_count"
	logFieldChangedPathsConstant  = "changed_paths"
)

// Dependency validation errors.
var (
	ErrProberNotConfigured    = errors.New(proberMissingMessageConstant)
	ErrPreflightNotConfigured = errors.New(preflightMissingMessageConstant)
	ErrPackagesNotConfigured  = errors.New(packagesMissingMessageConstant)
	ErrServicesNotConfigured  = errors.New(servicesMissingMessageConstant)
	ErrMigratorNotConfigured  = errors.New(migratorMissingMessageConstant)
	ErrLoaderNotConfigured    = errors.New(loaderMissingMessageConstant)
	ErrSnapshotsNotConfigured = errors.New(snapshotsMissingMessageConstant)
	ErrPatcherNotConfigured   = errors.New(patcherMissingMessageConstant)
	ErrPrompterNotConfigured  = errors.New(prompterMissingMessageConstant)
)

// Dependencies carries every collaborator the convergence service needs.
type Dependencies struct {
	Logger           *zap.Logger
	Prober           SystemProber
	Preflight        PreflightChecker
	Packages         PackageManager
	Services         ServiceController
	Migrator         RepositoryMigrator
	LoadDeclarations DeclarationLoader
	Snapshots        SnapshotManager
	Patcher          ArtifactPatcher
	Prompter         ConfirmationPrompter
}

// Result reports a finished convergence run.
type Result struct {
	InitialState     ConvergenceState
	FinalState       ConvergenceState
	Facts            platform.SystemFactSet
	BackupTaken      bool
	Snapshot         backup.Snapshot
	ChangedPaths     []string
	RenamedPaths     map[string]string
	DisabledServices []string
	Warnings         []string
	Declined         bool
}

// Service drives the convergence state machine.
type Service struct {
	logger       *zap.Logger
	dependencies Dependencies
}

// NewService validates the dependencies and builds a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Prober == nil {
		return nil, ErrProberNotConfigured
	}
	if dependencies.Preflight == nil {
		return nil, ErrPreflightNotConfigured
	}
	if dependencies.Packages == nil {
		return nil, ErrPackagesNotConfigured
	}
	if dependencies.Services == nil {
		return nil, ErrServicesNotConfigured
	}
	if dependencies.Migrator == nil {
		return nil, ErrMigratorNotConfigured
	}
	if dependencies.LoadDeclarations == nil {
		return nil, ErrLoaderNotConfigured
	}
	if dependencies.Snapshots == nil {
		return nil, ErrSnapshotsNotConfigured
	}
	if dependencies.Patcher == nil {
		return nil, ErrPatcherNotConfigured
	}
	if dependencies.Prompter == nil {
		return nil, ErrPrompterNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{logger: logger, dependencies: dependencies}, nil
}

// Converge drives the host toward the configured target release. Fatal
// conditions before the Migrating state abort with zero mutation; later step
// failures become tagged warnings and the remaining sequence continues.
func (service *Service) Converge(executionContext context.Context, configuration Configuration) (Result, error) {
	runConfiguration := configuration.Sanitize()

	sourceGeneration, sourceError := runConfiguration.SourceGeneration()
	if sourceError != nil {
		return Result{}, FatalPreflightError{Reason: configurationReasonConstant, Remediation: configurationRemediationConstant, Cause: sourceError}
	}
	targetGeneration, targetError := runConfiguration.TargetGeneration()
	if targetError != nil {
		return Result{}, FatalPreflightError{Reason: configurationReasonConstant, Remediation: configurationRemediationConstant, Cause: targetError}
	}

	systemFacts, probeError := service.dependencies.Prober.Probe(executionContext)
	if probeError != nil {
		var unsupportedError platform.UnsupportedGenerationError
		if errors.As(probeError, &unsupportedError) {
			return Result{InitialState: StateUnsupported, FinalState: StateUnsupported}, FatalPreflightError{
				Reason:      fmt.Sprintf(unsupportedReasonTemplateConstant, unsupportedError.ProbedMajorVersion),
				Remediation: unsupportedRemediationConstant,
				Cause:       probeError,
			}
		}
		return Result{}, FatalPreflightError{Reason: probeFailedReasonConstant, Remediation: probeFailedRemediationConstant, Cause: probeError}
	}

	service.logger.Info(logMessageProbedSystemConstant,
		zap.Int(logFieldGenerationConstant, systemFacts.InstalledGeneration.MajorVersion()),
		zap.Int(logFieldMinorVersionConstant, systemFacts.MinorVersion),
		zap.Bool(logFieldClusteredConstant, systemFacts.Clustered),
	)

	initialState := StateUnsupported
	switch systemFacts.InstalledGeneration {
	case sourceGeneration:
		initialState = StateAtSource
	case targetGeneration:
		initialState = StateAtTarget
	}

	result := Result{
		InitialState: initialState,
		FinalState:   initialState,
		Facts:        systemFacts,
		RenamedPaths: map[string]string{},
	}

	if initialState == StateUnsupported {
		return result, FatalPreflightError{
			Reason:      fmt.Sprintf(unsupportedReasonTemplateConstant, systemFacts.InstalledGeneration.MajorVersion()),
			Remediation: unsupportedRemediationConstant,
		}
	}

	stateMachine := newConvergenceStateMachine(initialState)

	if initialState == StateAtSource {
		if gateError := service.runPreflightGate(executionContext, runConfiguration, &result); gateError != nil {
			return result, gateError
		}
		if result.Declined {
			return result, nil
		}
		if transitionError := stateMachine.Transition(StateMigrating); transitionError != nil {
			return result, transitionError
		}
		result.FinalState = stateMachine.Current()
		service.convergeDeclarations(executionContext, runConfiguration, sourceGeneration, targetGeneration, &result)
		service.runPackageMigration(executionContext, runConfiguration, &result)
	} else {
		service.logger.Info(logMessageAlreadyAtTargetConstant, zap.Int(logFieldGenerationConstant, targetGeneration.MajorVersion()))
		service.convergeDeclarations(executionContext, runConfiguration, sourceGeneration, targetGeneration, &result)
	}

	if transitionError := stateMachine.Transition(StatePostInstall); transitionError != nil {
		return result, transitionError
	}
	result.FinalState = stateMachine.Current()
	service.runPostInstall(executionContext, runConfiguration, &result)

	if transitionError := stateMachine.Transition(StateDone); transitionError != nil {
		return result, transitionError
	}
	result.FinalState = stateMachine.Current()

	service.logger.Info(logMessageConvergenceDoneConstant,
		zap.String(logFieldInitialStateConstant, string(result.InitialState)),
		zap.String(logFieldFinalStateConstant, string(result.FinalState)),
		zap.Int(logFieldWarningCountConstant, len(result.Warnings)),
		zap.Strings(logFieldChangedPathsConstant, result.ChangedPaths),
	)
	return result, nil
}

func (service *Service) runPreflightGate(executionContext context.Context, configuration Configuration, result *Result) error {
	preflightReport, preflightError := service.dependencies.Preflight.RunFull(executionContext)
	if preflightError != nil {
		return FatalPreflightError{Reason: preflightRunReasonConstant, Remediation: preflightRunRemediationConstant, Cause: preflightError}
	}
	if preflightReport.HasFailures() {
		return FatalPreflightError{
			Reason:      fmt.Sprintf(preflightFailuresReasonTemplateConstant, preflightReport.FailureCount),
			Remediation: preflightFailuresRemediationConstant,
			Cause:       errors.New(strings.Join(preflightReport.FailureMessages(), "; ")),
		}
	}
	for _, warningMessage := range preflightReport.WarningMessages() {
		result.Warnings = append(result.Warnings, taggedWarning(WarningTagPreflight, "%s", warningMessage))
		service.logger.Warn(logMessagePreflightWarningConstant, zap.String(logFieldFindingConstant, warningMessage))
	}

	if configuration.Unattended || configuration.AssumeYes {
		return nil
	}
	confirmed, promptError := service.dependencies.Prompter.Confirm(configuration.ConfirmationPrompt)
	if promptError != nil {
		return FatalPreflightError{Reason: promptFailedReasonConstant, Remediation: promptFailedRemediationConstant, Cause: promptError}
	}
	if !confirmed {
		result.Declined = true
		service.logger.Info(logMessageUpgradeDeclinedConstant)
	}
	return nil
}

// convergeDeclarations runs on both migration paths so the final repository
// layout does not depend on the starting generation.
func (service *Service) convergeDeclarations(executionContext context.Context, configuration Configuration, sourceGeneration platform.Generation, targetGeneration platform.Generation, result *Result) {
	snapshot, backupError := service.dependencies.Snapshots.EnsureBackup(executionContext, configuration.BackupSources())
	if backupError != nil {
		service.recordWarning(result, WarningTagBackupSkip, "repository backup failed: %v", backupError)
	} else {
		result.BackupTaken = true
		result.Snapshot = snapshot
		service.logger.Info(logMessageBackupCapturedConstant,
			zap.String(logFieldSnapshotPathConstant, snapshot.RootPath),
			zap.Int(logFieldCapturedFilesConstant, len(snapshot.CapturedFiles)),
		)
	}

	sourceCodename := sourceGeneration.Codename()
	targetCodename := targetGeneration.Codename()

	tokenChanged, tokenError := service.dependencies.Migrator.MigrateToken(configuration.ListFilePath, sourceCodename, targetCodename)
	if tokenError != nil {
		service.recordWarning(result, WarningTagRewriteSkip, "token rewrite of %s failed: %v", configuration.ListFilePath, tokenError)
	} else if tokenChanged {
		result.ChangedPaths = append(result.ChangedPaths, configuration.ListFilePath)
		service.logger.Info(logMessageTokenRewrittenConstant, zap.String(logFieldFileConstant, configuration.ListFilePath))
	}

	declarations, loadError := service.dependencies.LoadDeclarations(configuration.ListFilePath, configuration.PartsDirectoryPath)
	if loadError != nil {
		service.recordWarning(result, WarningTagRewriteSkip, "repository declarations unreadable: %v", loadError)
		return
	}
	partsDeclarations := excludeDeclarationPath(declarations, configuration.ListFilePath)
	migrationOutcome, structuredError := service.dependencies.Migrator.MigrateToStructuredFormat(partsDeclarations, targetCodename)
	if structuredError != nil {
		service.recordWarning(result, WarningTagRewriteSkip, "structured migration failed: %v", structuredError)
		return
	}
	result.ChangedPaths = append(result.ChangedPaths, migrationOutcome.ChangedPaths...)
	for originalPath, renamedPath := range migrationOutcome.RenamedPaths {
		result.RenamedPaths[originalPath] = renamedPath
		service.logger.Info(logMessageLegacyRenamedConstant,
			zap.String(logFieldFileConstant, originalPath),
			zap.String(logFieldRenamedToConstant, renamedPath),
		)
	}
	for _, migrationWarning := range migrationOutcome.Warnings {
		service.recordWarning(result, WarningTagRewriteSkip, "%s", migrationWarning)
	}
	service.logger.Info(logMessageDeclarationsMigratedConstant, zap.Strings(logFieldChangedPathsConstant, migrationOutcome.ChangedPaths))
}

func (service *Service) runPackageMigration(executionContext context.Context, configuration Configuration, result *Result) {
	if updateError := service.dependencies.Packages.Update(executionContext); updateError != nil {
		service.recordWarning(result, WarningTagAptUpdate, "package index refresh failed: %v", updateError)
	}
	distUpgradeOptions := aptcli.DistUpgradeOptions{KeepExistingConfiguration: configuration.KeepExistingConfiguration}
	if distUpgradeError := service.dependencies.Packages.DistUpgrade(executionContext, distUpgradeOptions); distUpgradeError != nil {
		service.recordWarning(result, WarningTagDistUpgrade, "distribution upgrade failed: %v", distUpgradeError)
		return
	}
	service.recordWarning(result, WarningTagRebootNeeded, "%s", rebootAdviceConstant)
}

func (service *Service) runPostInstall(executionContext context.Context, configuration Configuration, result *Result) {
	scriptCreated, scriptError := service.dependencies.Patcher.EnsureExecutable(configuration.HelperScriptPath, configuration.HelperScriptContent())
	if scriptError != nil {
		service.recordWarning(result, WarningTagPatchSkip, "helper script %s: %v", configuration.HelperScriptPath, scriptError)
	}
	hookCreated, hookError := service.dependencies.Patcher.EnsureFile(configuration.HookFilePath, configuration.HookFileContent(), hookFileModeConstant)
	if hookError != nil {
		service.recordWarning(result, WarningTagPatchSkip, "package manager hook %s: %v", configuration.HookFilePath, hookError)
	}
	if scriptCreated || hookCreated {
		service.logger.Info(logMessageHelperCreatedConstant,
			zap.Bool(logFieldScriptCreatedConstant, scriptCreated),
			zap.Bool(logFieldHookCreatedConstant, hookCreated),
		)
		if reinstallError := service.dependencies.Packages.Reinstall(executionContext, configuration.ToolkitPackageName); reinstallError != nil {
			service.recordWarning(result, WarningTagReinstallFail, "reinstall of %s failed: %v", configuration.ToolkitPackageName, reinstallError)
		}
	}

	patchApplied, patchError := service.dependencies.Patcher.ApplyPatch(configuration.PatchTargetPath, configuration.PatchMarker(), configuration.PatchBody())
	switch {
	case patchError != nil:
		service.recordWarning(result, WarningTagPatchSkip, "subscription notice patch: %v", patchError)
	case patchApplied:
		result.ChangedPaths = append(result.ChangedPaths, configuration.PatchTargetPath)
		service.logger.Info(logMessagePatchAppliedConstant, zap.String(logFieldFileConstant, configuration.PatchTargetPath))
	default:
		service.logger.Debug(logMessagePatchNotNeededConstant, zap.String(logFieldFileConstant, configuration.PatchTargetPath))
	}

	for _, utilityPackage := range configuration.UtilityPackages {
		installed, installError := service.dependencies.Packages.InstallIfMissing(executionContext, utilityPackage)
		if installError != nil {
			service.recordWarning(result, WarningTagInstallFail, "install of %s failed: %v", utilityPackage, installError)
			continue
		}
		if installed {
			service.logger.Info(logMessageUtilityInstalledConstant, zap.String(logFieldPackageConstant, utilityPackage))
		}
	}

	service.normalizeHighAvailabilityServices(executionContext, configuration, result)
	service.reportActiveStorageServices(executionContext, configuration, result)
	service.scanChannelMix(configuration, result)
}

func (service *Service) normalizeHighAvailabilityServices(executionContext context.Context, configuration Configuration, result *Result) {
	if result.Facts.Clustered {
		for _, unitName := range configuration.HighAvailabilityServices {
			unitActive, activityError := service.dependencies.Services.IsActive(executionContext, unitName)
			if activityError != nil {
				service.recordWarning(result, WarningTagServiceSkip, "activity of %s unknown: %v", unitName, activityError)
				continue
			}
			service.logger.Info(logMessageClusterServiceKeptConstant,
				zap.String(logFieldUnitConstant, unitName),
				zap.Bool(logFieldActiveConstant, unitActive),
			)
		}
		return
	}
	for _, unitName := range configuration.HighAvailabilityServices {
		if disableError := service.dependencies.Services.DisableAndStop(executionContext, unitName); disableError != nil {
			service.recordWarning(result, WarningTagServiceSkip, "normalization of %s failed: %v", unitName, disableError)
			continue
		}
		result.DisabledServices = append(result.DisabledServices, unitName)
		service.logger.Info(logMessageServiceDisabledConstant, zap.String(logFieldUnitConstant, unitName))
	}
}

func (service *Service) reportActiveStorageServices(executionContext context.Context, configuration Configuration, result *Result) {
	for _, unitName := range configuration.StorageServices {
		unitActive, activityError := service.dependencies.Services.IsActive(executionContext, unitName)
		if activityError != nil || !unitActive {
			continue
		}
		service.recordWarning(result, WarningTagStorageActive, storageActiveAdviceTemplateConstant, unitName)
	}
}

func (service *Service) scanChannelMix(configuration Configuration, result *Result) {
	declarations, loadError := service.dependencies.LoadDeclarations(configuration.ListFilePath, configuration.PartsDirectoryPath)
	if loadError != nil {
		return
	}
	paidEnabled := false
	freeEnabled := false
	for _, declaration := range declarations {
		if !declaration.Enabled {
			continue
		}
		if configuration.ChannelPolicy.AppliesTo(declaration) {
			paidEnabled = true
		}
		if configuration.ChannelPolicy.MatchesFree(declaration) {
			freeEnabled = true
		}
	}
	if paidEnabled && freeEnabled {
		service.recordWarning(result, WarningTagMixedChannels, "%s", mixedChannelsAdviceConstant)
	}
}

func (service *Service) recordWarning(result *Result, warningTag string, messageFormat string, formatArguments ...any) {
	warningMessage := taggedWarning(warningTag, messageFormat, formatArguments...)
	result.Warnings = append(result.Warnings, warningMessage)
	service.logger.Warn(warningMessage)
}

func excludeDeclarationPath(declarations []aptsources.RepositoryDeclaration, excludedPath string) []aptsources.RepositoryDeclaration {
	filteredDeclarations := make([]aptsources.RepositoryDeclaration, 0, len(declarations))
	for _, declaration := range declarations {
		if declaration.Path == excludedPath {
			continue
		}
		filteredDeclarations = append(filteredDeclarations, declaration)
	}
	return filteredDeclarations
}
