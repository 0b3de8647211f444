package aptcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/pveup/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "shell executor not configured"
	packageNameMissingMessageConstant    = "package name not provided"

	updateSubcommandConstant        = "update"
	distUpgradeSubcommandConstant   = "dist-upgrade"
	installSubcommandConstant       = "install"
	assumeYesFlagConstant           = "-y"
	reinstallFlagConstant           = "--reinstall"
	aptOptionFlagConstant           = "-o"
	keepConfigDefaultOptionConstant = "Dpkg::Options::=--force-confdef"
	keepConfigOldOptionConstant     = "Dpkg::Options::=--force-confold"

	dpkgShowFlagConstant          = "-W"
	dpkgStatusFormatFlagConstant  = "-f=${db:Status-Status}"
	packageInstalledStateConstant = "installed"

	nonInteractiveFrontendKeyConstant   = "DEBIAN_FRONTEND"
	nonInteractiveFrontendValueConstant = "noninteractive"

	updateFailedTemplateConstant      = "package index refresh failed: %w"
	distUpgradeFailedTemplateConstant = "distribution upgrade failed: %w"
	reinstallFailedTemplateConstant   = "reinstall of %s failed: %w"
	installFailedTemplateConstant     = "install of %s failed: %w"
	statusQueryFailedTemplateConstant = "status query for %s failed: %w"
)

// Configuration errors reported by NewPackageManager and its operations.
var (
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	ErrPackageNameMissing    = errors.New(packageNameMissingMessageConstant)
)

// AptCommandExecutor is the narrow executor surface the package manager consumes.
type AptCommandExecutor interface {
	ExecuteAptGet(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteDpkgQuery(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// DistUpgradeOptions tunes the distribution upgrade invocation.
type DistUpgradeOptions struct {
	// KeepExistingConfiguration instructs dpkg to keep locally modified
	// configuration files instead of prompting.
	KeepExistingConfiguration bool
}

// PackageManager drives apt-get and dpkg-query. Every mutating invocation runs
// non-interactively; operator confirmation happens before the upgrade starts,
// not at individual package prompts.
type PackageManager struct {
	executor AptCommandExecutor
}

// NewPackageManager validates the executor and assembles a PackageManager.
func NewPackageManager(executor AptCommandExecutor) (*PackageManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &PackageManager{executor: executor}, nil
}

// Update refreshes the package indexes.
func (manager *PackageManager) Update(executionContext context.Context) error {
	_, executionError := manager.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{updateSubcommandConstant},
		EnvironmentVariables: nonInteractiveEnvironment(),
	})
	if executionError != nil {
		return fmt.Errorf(updateFailedTemplateConstant, executionError)
	}
	return nil
}

// DistUpgrade performs the full distribution upgrade.
func (manager *PackageManager) DistUpgrade(executionContext context.Context, options DistUpgradeOptions) error {
	arguments := []string{assumeYesFlagConstant}
	if options.KeepExistingConfiguration {
		arguments = append(arguments,
			aptOptionFlagConstant, keepConfigDefaultOptionConstant,
			aptOptionFlagConstant, keepConfigOldOptionConstant,
		)
	}
	arguments = append(arguments, distUpgradeSubcommandConstant)

	_, executionError := manager.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		EnvironmentVariables: nonInteractiveEnvironment(),
	})
	if executionError != nil {
		return fmt.Errorf(distUpgradeFailedTemplateConstant, executionError)
	}
	return nil
}

// Reinstall reinstalls an already-installed package.
func (manager *PackageManager) Reinstall(executionContext context.Context, packageName string) error {
	if len(strings.TrimSpace(packageName)) == 0 {
		return ErrPackageNameMissing
	}

	_, executionError := manager.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{installSubcommandConstant, reinstallFlagConstant, assumeYesFlagConstant, packageName},
		EnvironmentVariables: nonInteractiveEnvironment(),
	})
	if executionError != nil {
		return fmt.Errorf(reinstallFailedTemplateConstant, packageName, executionError)
	}
	return nil
}

// InstallIfMissing installs the package when it is not currently installed.
// The returned flag reports whether an installation was performed.
func (manager *PackageManager) InstallIfMissing(executionContext context.Context, packageName string) (bool, error) {
	if len(strings.TrimSpace(packageName)) == 0 {
		return false, ErrPackageNameMissing
	}

	installed, probeError := manager.packageInstalled(executionContext, packageName)
	if probeError != nil {
		return false, probeError
	}
	if installed {
		return false, nil
	}

	_, executionError := manager.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{installSubcommandConstant, assumeYesFlagConstant, packageName},
		EnvironmentVariables: nonInteractiveEnvironment(),
	})
	if executionError != nil {
		return false, fmt.Errorf(installFailedTemplateConstant, packageName, executionError)
	}
	return true, nil
}

// packageInstalled probes dpkg state. dpkg-query exits non-zero for unknown
// packages, so a CommandFailedError means not installed rather than trouble.
func (manager *PackageManager) packageInstalled(executionContext context.Context, packageName string) (bool, error) {
	executionResult, executionError := manager.executor.ExecuteDpkgQuery(executionContext, execshell.CommandDetails{
		Arguments: []string{dpkgShowFlagConstant, dpkgStatusFormatFlagConstant, packageName},
	})
	if executionError != nil {
		failedError := execshell.CommandFailedError{}
		if errors.As(executionError, &failedError) {
			return false, nil
		}
		return false, fmt.Errorf(statusQueryFailedTemplateConstant, packageName, executionError)
	}

	return strings.TrimSpace(executionResult.StandardOutput) == packageInstalledStateConstant, nil
}

func nonInteractiveEnvironment() map[string]string {
	return map[string]string{nonInteractiveFrontendKeyConstant: nonInteractiveFrontendValueConstant}
}
