package upgrade_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pveup/internal/aptcli"
	"github.com/temirov/pveup/internal/aptsources"
	"github.com/temirov/pveup/internal/backup"
	"github.com/temirov/pveup/internal/platform"
	"github.com/temirov/pveup/internal/pvecli"
	"github.com/temirov/pveup/internal/upgrade"
)

const (
	snapshotDateConstant          = "2025-08-20"
	snapshotRootConstant          = "/var/backups/pveup/2025-08-20"
	enterprisePartsPathConstant   = "/etc/apt/sources.list.d/pve-enterprise.list"
	enterpriseSourcesPathConstant = "/etc/apt/sources.list.d/pve-enterprise.sources"
)

type stubProber struct {
	facts      platform.SystemFactSet
	probeError error
	probeCalls int
}

func (prober *stubProber) Probe(executionContext context.Context) (platform.SystemFactSet, error) {
	prober.probeCalls++
	if prober.probeError != nil {
		return platform.SystemFactSet{}, prober.probeError
	}
	return prober.facts, nil
}

type stubPreflight struct {
	report   pvecli.PreflightReport
	runError error
	runCalls int
}

func (checker *stubPreflight) RunFull(executionContext context.Context) (pvecli.PreflightReport, error) {
	checker.runCalls++
	return checker.report, checker.runError
}

type stubPackages struct {
	updateError        error
	distUpgradeError   error
	reinstallError     error
	installError       error
	installResults     map[string]bool
	updateCalls        int
	distUpgradeCalls   int
	distUpgradeOptions []aptcli.DistUpgradeOptions
	reinstalled        []string
	installRequests    []string
}

func (packages *stubPackages) Update(executionContext context.Context) error {
	packages.updateCalls++
	return packages.updateError
}

func (packages *stubPackages) DistUpgrade(executionContext context.Context, options aptcli.DistUpgradeOptions) error {
	packages.distUpgradeCalls++
	packages.distUpgradeOptions = append(packages.distUpgradeOptions, options)
	return packages.distUpgradeError
}

func (packages *stubPackages) Reinstall(executionContext context.Context, packageName string) error {
	packages.reinstalled = append(packages.reinstalled, packageName)
	return packages.reinstallError
}

func (packages *stubPackages) InstallIfMissing(executionContext context.Context, packageName string) (bool, error) {
	packages.installRequests = append(packages.installRequests, packageName)
	if packages.installError != nil {
		return false, packages.installError
	}
	return packages.installResults[packageName], nil
}

type stubServices struct {
	activeUnits    map[string]bool
	activityError  error
	disableError   error
	activityChecks []string
	disabledUnits  []string
}

func (services *stubServices) IsActive(executionContext context.Context, unitName string) (bool, error) {
	services.activityChecks = append(services.activityChecks, unitName)
	if services.activityError != nil {
		return false, services.activityError
	}
	return services.activeUnits[unitName], nil
}

func (services *stubServices) DisableAndStop(executionContext context.Context, unitName string) error {
	services.disabledUnits = append(services.disabledUnits, unitName)
	return services.disableError
}

type tokenCall struct {
	filePath  string
	fromToken string
	toToken   string
}

type stubMigrator struct {
	tokenChanged     bool
	tokenError       error
	tokenCalls       []tokenCall
	structuredResult aptsources.StructuredMigrationResult
	structuredError  error
	structuredCalls  int
	receivedTargets  []string
	receivedCounts   []int
}

func (migrator *stubMigrator) MigrateToken(filePath string, fromToken string, toToken string) (bool, error) {
	migrator.tokenCalls = append(migrator.tokenCalls, tokenCall{filePath: filePath, fromToken: fromToken, toToken: toToken})
	if migrator.tokenError != nil {
		return false, migrator.tokenError
	}
	return migrator.tokenChanged, nil
}

func (migrator *stubMigrator) MigrateToStructuredFormat(declarations []aptsources.RepositoryDeclaration, targetCodename string) (aptsources.StructuredMigrationResult, error) {
	migrator.structuredCalls++
	migrator.receivedTargets = append(migrator.receivedTargets, targetCodename)
	migrator.receivedCounts = append(migrator.receivedCounts, len(declarations))
	if migrator.structuredError != nil {
		return aptsources.StructuredMigrationResult{}, migrator.structuredError
	}
	return migrator.structuredResult, nil
}

type stubSnapshots struct {
	snapshot        backup.Snapshot
	ensureError     error
	capturedSources [][]string
}

func (snapshots *stubSnapshots) EnsureBackup(executionContext context.Context, sources []string) (backup.Snapshot, error) {
	snapshots.capturedSources = append(snapshots.capturedSources, sources)
	if snapshots.ensureError != nil {
		return backup.Snapshot{}, snapshots.ensureError
	}
	return snapshots.snapshot, nil
}

type stubPatcher struct {
	scriptCreated bool
	scriptError   error
	scriptPaths   []string
	hookCreated   bool
	hookError     error
	hookPaths     []string
	patchApplied  bool
	patchError    error
	patchTargets  []string
	patchMarkers  []string
	patchBodies   []string
}

func (patcher *stubPatcher) ApplyPatch(targetPath string, marker string, patchBody string) (bool, error) {
	patcher.patchTargets = append(patcher.patchTargets, targetPath)
	patcher.patchMarkers = append(patcher.patchMarkers, marker)
	patcher.patchBodies = append(patcher.patchBodies, patchBody)
	if patcher.patchError != nil {
		return false, patcher.patchError
	}
	return patcher.patchApplied, nil
}

func (patcher *stubPatcher) EnsureExecutable(filePath string, content string) (bool, error) {
	patcher.scriptPaths = append(patcher.scriptPaths, filePath)
	if patcher.scriptError != nil {
		return false, patcher.scriptError
	}
	return patcher.scriptCreated, nil
}

func (patcher *stubPatcher) EnsureFile(filePath string, content string, fileMode fs.FileMode) (bool, error) {
	patcher.hookPaths = append(patcher.hookPaths, filePath)
	if patcher.hookError != nil {
		return false, patcher.hookError
	}
	return patcher.hookCreated, nil
}

type stubPrompter struct {
	confirmed   bool
	promptError error
	prompts     []string
}

func (prompter *stubPrompter) Confirm(prompt string) (bool, error) {
	prompter.prompts = append(prompter.prompts, prompt)
	return prompter.confirmed, prompter.promptError
}

type convergenceHarness struct {
	prober       *stubProber
	preflight    *stubPreflight
	packages     *stubPackages
	services     *stubServices
	migrator     *stubMigrator
	snapshots    *stubSnapshots
	patcher      *stubPatcher
	prompter     *stubPrompter
	declarations []aptsources.RepositoryDeclaration
	loadError    error
	service      *upgrade.Service
}

func newConvergenceHarness(testInstance *testing.T, facts platform.SystemFactSet) *convergenceHarness {
	harness := &convergenceHarness{
		prober:    &stubProber{facts: facts},
		preflight: &stubPreflight{},
		packages:  &stubPackages{installResults: map[string]bool{}},
		services:  &stubServices{activeUnits: map[string]bool{}},
		migrator:  &stubMigrator{structuredResult: aptsources.StructuredMigrationResult{RenamedPaths: map[string]string{}}},
		snapshots: &stubSnapshots{snapshot: backup.Snapshot{Date: snapshotDateConstant, RootPath: snapshotRootConstant}},
		patcher:   &stubPatcher{},
		prompter:  &stubPrompter{confirmed: true},
	}

	service, creationError := upgrade.NewService(upgrade.Dependencies{
		Prober:    harness.prober,
		Preflight: harness.preflight,
		Packages:  harness.packages,
		Services:  harness.services,
		Migrator:  harness.migrator,
		LoadDeclarations: func(listFilePath string, partsDirectoryPath string) ([]aptsources.RepositoryDeclaration, error) {
			return harness.declarations, harness.loadError
		},
		Snapshots: harness.snapshots,
		Patcher:   harness.patcher,
		Prompter:  harness.prompter,
	})
	require.NoError(testInstance, creationError)
	harness.service = service
	return harness
}

func (harness *convergenceHarness) requireNoMutations(testInstance *testing.T) {
	require.Empty(testInstance, harness.snapshots.capturedSources)
	require.Empty(testInstance, harness.migrator.tokenCalls)
	require.Zero(testInstance, harness.migrator.structuredCalls)
	require.Zero(testInstance, harness.packages.updateCalls)
	require.Zero(testInstance, harness.packages.distUpgradeCalls)
	require.Empty(testInstance, harness.patcher.scriptPaths)
	require.Empty(testInstance, harness.patcher.patchTargets)
	require.Empty(testInstance, harness.services.disabledUnits)
}

func sourceFacts() platform.SystemFactSet {
	return platform.SystemFactSet{InstalledGeneration: platform.GenerationBookworm, MinorVersion: 4}
}

func targetFacts() platform.SystemFactSet {
	return platform.SystemFactSet{InstalledGeneration: platform.GenerationTrixie}
}

func unattendedConfiguration() upgrade.Configuration {
	configuration := upgrade.DefaultConfiguration()
	configuration.Unattended = true
	return configuration
}

func warningTags(warnings []string) []string {
	tags := []string{}
	for _, warningMessage := range warnings {
		separatorIndex := strings.Index(warningMessage, ":")
		if separatorIndex < 0 {
			continue
		}
		tags = append(tags, warningMessage[:separatorIndex])
	}
	return tags
}

func TestConvergeFromSourceRunsFullSequence(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	configuration := unattendedConfiguration()
	harness.migrator.tokenChanged = true
	harness.migrator.structuredResult = aptsources.StructuredMigrationResult{
		ChangedPaths: []string{enterpriseSourcesPathConstant},
		RenamedPaths: map[string]string{enterprisePartsPathConstant: enterprisePartsPathConstant + ".bak"},
	}
	harness.patcher.patchApplied = true
	harness.declarations = []aptsources.RepositoryDeclaration{
		{Format: aptsources.FormatLegacy, Path: configuration.ListFilePath},
		{Format: aptsources.FormatLegacy, Path: enterprisePartsPathConstant},
	}

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	require.NoError(testInstance, convergenceError)
	require.Equal(testInstance, upgrade.StateAtSource, result.InitialState)
	require.Equal(testInstance, upgrade.StateDone, result.FinalState)
	require.Empty(testInstance, harness.prompter.prompts)
	require.Equal(testInstance, 1, harness.preflight.runCalls)

	require.True(testInstance, result.BackupTaken)
	require.Equal(testInstance, snapshotRootConstant, result.Snapshot.RootPath)
	require.Equal(testInstance, []string{configuration.ListFilePath, configuration.PartsDirectoryPath}, harness.snapshots.capturedSources[0])

	require.Equal(testInstance, []tokenCall{{filePath: configuration.ListFilePath, fromToken: "bookworm", toToken: "trixie"}}, harness.migrator.tokenCalls)
	require.Equal(testInstance, []string{"trixie"}, harness.migrator.receivedTargets)
	require.Equal(testInstance, []int{1}, harness.migrator.receivedCounts)
	require.Contains(testInstance, result.ChangedPaths, configuration.ListFilePath)
	require.Contains(testInstance, result.ChangedPaths, enterpriseSourcesPathConstant)
	require.Equal(testInstance, enterprisePartsPathConstant+".bak", result.RenamedPaths[enterprisePartsPathConstant])

	require.Equal(testInstance, 1, harness.packages.updateCalls)
	require.Equal(testInstance, 1, harness.packages.distUpgradeCalls)
	require.True(testInstance, harness.packages.distUpgradeOptions[0].KeepExistingConfiguration)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagRebootNeeded)

	require.Equal(testInstance, []string{configuration.HelperScriptPath}, harness.patcher.scriptPaths)
	require.Equal(testInstance, []string{configuration.HookFilePath}, harness.patcher.hookPaths)
	require.Equal(testInstance, []string{configuration.PatchTargetPath}, harness.patcher.patchTargets)
	require.Equal(testInstance, configuration.PatchMarker(), harness.patcher.patchMarkers[0])
	require.Contains(testInstance, result.ChangedPaths, configuration.PatchTargetPath)

	require.Equal(testInstance, []string{"chrony"}, harness.packages.installRequests)
	require.Equal(testInstance, []string{"pve-ha-lrm", "pve-ha-crm"}, harness.services.disabledUnits)
}

func TestConvergeSecondRunReportsNoNewChanges(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	configuration := unattendedConfiguration()

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	require.NoError(testInstance, convergenceError)
	require.Equal(testInstance, upgrade.StateDone, result.FinalState)
	require.Empty(testInstance, result.ChangedPaths)
	require.Empty(testInstance, harness.packages.reinstalled)
	require.True(testInstance, result.BackupTaken)
}

func TestConvergeFatalWhenProbeFails(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.prober.probeError = platform.ProbeError{Reason: "cluster membership unreadable", Cause: errors.New("permission denied")}

	_, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	var fatalError upgrade.FatalPreflightError
	require.ErrorAs(testInstance, convergenceError, &fatalError)
	harness.requireNoMutations(testInstance)
}

func TestConvergeFatalWhenGenerationUnsupported(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.prober.probeError = platform.ProbeError{
		Reason: "platform version unreadable",
		Cause:  platform.UnsupportedGenerationError{ProbedMajorVersion: 7},
	}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	var fatalError upgrade.FatalPreflightError
	require.ErrorAs(testInstance, convergenceError, &fatalError)
	require.Contains(testInstance, fatalError.Error(), "installed release 7")
	require.Equal(testInstance, upgrade.StateUnsupported, result.FinalState)
	harness.requireNoMutations(testInstance)
}

func TestConvergeRejectsGenerationOutsideConfiguredPair(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, targetFacts())
	configuration := unattendedConfiguration()
	configuration.SourceMajorVersion = 8
	configuration.TargetMajorVersion = 8

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	var fatalError upgrade.FatalPreflightError
	require.ErrorAs(testInstance, convergenceError, &fatalError)
	require.Equal(testInstance, upgrade.StateUnsupported, result.FinalState)
	harness.requireNoMutations(testInstance)
}

func TestConvergePreflightFailureBlocksMigration(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.preflight.report = pvecli.PreflightReport{
		Findings: []pvecli.PreflightFinding{
			{Severity: pvecli.FindingSeverityFailure, Message: "local storage almost full"},
		},
		FailureCount: 1,
	}

	_, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	var fatalError upgrade.FatalPreflightError
	require.ErrorAs(testInstance, convergenceError, &fatalError)
	require.Contains(testInstance, fatalError.Error(), "resolve the reported blockers")
	require.Contains(testInstance, errors.Unwrap(fatalError).Error(), "local storage almost full")
	harness.requireNoMutations(testInstance)
}

func TestConvergePreflightWarningsRecordedAndRunProceeds(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.preflight.report = pvecli.PreflightReport{
		Findings: []pvecli.PreflightFinding{
			{Severity: pvecli.FindingSeverityWarning, Message: "outdated subscription info"},
		},
		WarningCount: 1,
	}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagPreflight)
	require.Equal(testInstance, 1, harness.packages.updateCalls)
}

func TestConvergeDeclinedPromptStopsWithoutMutation(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.prompter.confirmed = false
	configuration := upgrade.DefaultConfiguration()

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	require.NoError(testInstance, convergenceError)
	require.True(testInstance, result.Declined)
	require.Equal(testInstance, upgrade.StateAtSource, result.FinalState)
	require.Equal(testInstance, []string{configuration.ConfirmationPrompt}, harness.prompter.prompts)
	harness.requireNoMutations(testInstance)
}

func TestConvergePromptSkippedWhenAssumeYes(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	configuration := upgrade.DefaultConfiguration()
	configuration.AssumeYes = true

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	require.NoError(testInstance, convergenceError)
	require.False(testInstance, result.Declined)
	require.Empty(testInstance, harness.prompter.prompts)
	require.Equal(testInstance, 1, harness.packages.updateCalls)
}

func TestConvergeFatalWhenPromptUnavailable(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.prompter.promptError = errors.New("stdin closed")

	_, convergenceError := harness.service.Converge(context.Background(), upgrade.DefaultConfiguration())

	var fatalError upgrade.FatalPreflightError
	require.ErrorAs(testInstance, convergenceError, &fatalError)
	harness.requireNoMutations(testInstance)
}

func TestConvergeAtTargetConvergesLayoutWithoutPackageMigration(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, targetFacts())
	configuration := upgrade.DefaultConfiguration()

	result, convergenceError := harness.service.Converge(context.Background(), configuration)

	require.NoError(testInstance, convergenceError)
	require.Equal(testInstance, upgrade.StateAtTarget, result.InitialState)
	require.Equal(testInstance, upgrade.StateDone, result.FinalState)
	require.Zero(testInstance, harness.preflight.runCalls)
	require.Empty(testInstance, harness.prompter.prompts)
	require.Zero(testInstance, harness.packages.updateCalls)
	require.Zero(testInstance, harness.packages.distUpgradeCalls)
	require.True(testInstance, result.BackupTaken)
	require.Len(testInstance, harness.migrator.tokenCalls, 1)
	require.Equal(testInstance, 1, harness.migrator.structuredCalls)
	require.NotContains(testInstance, warningTags(result.Warnings), upgrade.WarningTagRebootNeeded)
}

func TestConvergeSoftFailuresDegradeToWarnings(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.snapshots.ensureError = errors.New("disk full")
	harness.migrator.tokenError = errors.New("read-only filesystem")
	harness.migrator.structuredError = errors.New("read-only filesystem")
	harness.packages.updateError = errors.New("mirror unreachable")
	harness.packages.distUpgradeError = errors.New("dpkg interrupted")
	harness.patcher.scriptError = errors.New("permission denied")
	harness.patcher.hookError = errors.New("permission denied")
	harness.patcher.patchError = errors.New("permission denied")
	harness.packages.installError = errors.New("package unavailable")
	harness.services.disableError = errors.New("unit is masked")

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Equal(testInstance, upgrade.StateDone, result.FinalState)
	recordedTags := warningTags(result.Warnings)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagBackupSkip)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagRewriteSkip)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagAptUpdate)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagDistUpgrade)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagPatchSkip)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagInstallFail)
	require.Contains(testInstance, recordedTags, upgrade.WarningTagServiceSkip)
	require.NotContains(testInstance, recordedTags, upgrade.WarningTagRebootNeeded)
	require.False(testInstance, result.BackupTaken)
	require.Empty(testInstance, harness.packages.reinstalled)
}

func TestConvergePropagatesMigrationWarnings(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.migrator.structuredResult = aptsources.StructuredMigrationResult{
		RenamedPaths: map[string]string{},
		Warnings:     []string{"legacy file " + enterprisePartsPathConstant + " left in place: rename exhausted"},
	}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagRewriteSkip)
}

func TestConvergeReinstallsToolkitOnlyWhenArtifactsCreated(testInstance *testing.T) {
	testCases := []struct {
		name            string
		scriptCreated   bool
		hookCreated     bool
		expectReinstall bool
	}{
		{name: "script_created", scriptCreated: true, hookCreated: false, expectReinstall: true},
		{name: "hook_created", scriptCreated: false, hookCreated: true, expectReinstall: true},
		{name: "artifacts_existing", scriptCreated: false, hookCreated: false, expectReinstall: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			harness := newConvergenceHarness(subtestInstance, sourceFacts())
			harness.patcher.scriptCreated = testCase.scriptCreated
			harness.patcher.hookCreated = testCase.hookCreated

			_, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

			require.NoError(subtestInstance, convergenceError)
			if testCase.expectReinstall {
				require.Equal(subtestInstance, []string{"proxmox-widget-toolkit"}, harness.packages.reinstalled)
			} else {
				require.Empty(subtestInstance, harness.packages.reinstalled)
			}
		})
	}
}

func TestConvergeRecordsReinstallFailure(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.patcher.scriptCreated = true
	harness.packages.reinstallError = errors.New("package database locked")

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagReinstallFail)
}

func TestConvergeUnclusteredNormalizationDisablesServicesUnconditionally(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.services.activeUnits = map[string]bool{"pve-ha-lrm": false, "pve-ha-crm": false}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Equal(testInstance, []string{"pve-ha-lrm", "pve-ha-crm"}, harness.services.disabledUnits)
	require.Equal(testInstance, []string{"ceph.target"}, harness.services.activityChecks)
	require.Equal(testInstance, []string{"pve-ha-lrm", "pve-ha-crm"}, result.DisabledServices)
}

func TestConvergeClusteredRunLeavesHighAvailabilityServicesAlone(testInstance *testing.T) {
	clusteredFacts := sourceFacts()
	clusteredFacts.Clustered = true
	harness := newConvergenceHarness(testInstance, clusteredFacts)
	harness.services.activeUnits = map[string]bool{"pve-ha-lrm": true, "pve-ha-crm": true}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Empty(testInstance, harness.services.disabledUnits)
	require.Equal(testInstance, []string{"pve-ha-lrm", "pve-ha-crm", "ceph.target"}, harness.services.activityChecks)
	require.NotContains(testInstance, warningTags(result.Warnings), upgrade.WarningTagServiceSkip)
}

func TestConvergeWarnsWhenStorageServiceActive(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.services.activeUnits = map[string]bool{"ceph.target": true}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagStorageActive)
}

func TestConvergeWarnsOnMixedChannels(testInstance *testing.T) {
	harness := newConvergenceHarness(testInstance, sourceFacts())
	harness.declarations = []aptsources.RepositoryDeclaration{
		{
			Format:         aptsources.FormatStructured,
			Path:           enterpriseSourcesPathConstant,
			Enabled:        true,
			RepositoryType: "deb",
			URIs:           []string{"https://enterprise.proxmox.com/debian/pve"},
			Components:     []string{"pve-enterprise"},
		},
		{
			Format:         aptsources.FormatStructured,
			Path:           "/etc/apt/sources.list.d/proxmox.sources",
			Enabled:        true,
			RepositoryType: "deb",
			URIs:           []string{"http://download.proxmox.com/debian/pve"},
			Components:     []string{"pve-no-subscription"},
		},
	}

	result, convergenceError := harness.service.Converge(context.Background(), unattendedConfiguration())

	require.NoError(testInstance, convergenceError)
	require.Contains(testInstance, warningTags(result.Warnings), upgrade.WarningTagMixedChannels)
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(dependencies *upgrade.Dependencies)
		expectedError error
	}{
		{name: "missing_prober", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Prober = nil }, expectedError: upgrade.ErrProberNotConfigured},
		{name: "missing_preflight", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Preflight = nil }, expectedError: upgrade.ErrPreflightNotConfigured},
		{name: "missing_packages", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Packages = nil }, expectedError: upgrade.ErrPackagesNotConfigured},
		{name: "missing_services", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Services = nil }, expectedError: upgrade.ErrServicesNotConfigured},
		{name: "missing_migrator", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Migrator = nil }, expectedError: upgrade.ErrMigratorNotConfigured},
		{name: "missing_loader", mutate: func(dependencies *upgrade.Dependencies) { dependencies.LoadDeclarations = nil }, expectedError: upgrade.ErrLoaderNotConfigured},
		{name: "missing_snapshots", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Snapshots = nil }, expectedError: upgrade.ErrSnapshotsNotConfigured},
		{name: "missing_patcher", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Patcher = nil }, expectedError: upgrade.ErrPatcherNotConfigured},
		{name: "missing_prompter", mutate: func(dependencies *upgrade.Dependencies) { dependencies.Prompter = nil }, expectedError: upgrade.ErrPrompterNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			dependencies := upgrade.Dependencies{
				Prober:    &stubProber{},
				Preflight: &stubPreflight{},
				Packages:  &stubPackages{},
				Services:  &stubServices{},
				Migrator:  &stubMigrator{},
				LoadDeclarations: func(listFilePath string, partsDirectoryPath string) ([]aptsources.RepositoryDeclaration, error) {
					return nil, nil
				},
				Snapshots: &stubSnapshots{},
				Patcher:   &stubPatcher{},
				Prompter:  &stubPrompter{},
			}
			testCase.mutate(&dependencies)

			_, creationError := upgrade.NewService(dependencies)

			require.ErrorIs(subtestInstance, creationError, testCase.expectedError)
		})
	}
}
