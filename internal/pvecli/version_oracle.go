package pvecli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/pveup/internal/execshell"
	"github.com/temirov/pveup/internal/platform"
)

const (
	executorNotConfiguredMessageConstant = "shell executor not configured"

	versionCommandFailedTemplateConstant     = "pveversion failed: %w"
	versionOutputUnparseableTemplateConstant = "unparseable pveversion output %q"

	versionFieldSeparatorConstant = "/"
	versionOutputLineSeparator    = "\n"

	versionPackageFieldIndexConstant = 0
	versionValueFieldIndexConstant   = 1
	minimumVersionFieldCountConstant = 2

	expectedManagerPackagePrefixConstant = "pve-manager"
)

// ErrExecutorNotConfigured reports adapters constructed without a shell executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// VersionCommandExecutor is the narrow executor surface the oracle consumes.
type VersionCommandExecutor interface {
	ExecutePveVersion(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// VersionOracle reads the installed release line from the platform version tool.
type VersionOracle struct {
	executor VersionCommandExecutor
}

// NewVersionOracle validates the executor and assembles a VersionOracle.
func NewVersionOracle(executor VersionCommandExecutor) (*VersionOracle, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &VersionOracle{executor: executor}, nil
}

// CurrentGeneration probes the installed major version and classifies it into
// the supported generation set.
func (oracle *VersionOracle) CurrentGeneration(executionContext context.Context) (platform.Generation, error) {
	majorVersion, _, probeError := oracle.currentRelease(executionContext)
	if probeError != nil {
		return 0, probeError
	}
	return platform.ClassifyGeneration(majorVersion)
}

// CurrentMinor probes the installed minor version.
func (oracle *VersionOracle) CurrentMinor(executionContext context.Context) (int, error) {
	_, minorVersion, probeError := oracle.currentRelease(executionContext)
	if probeError != nil {
		return 0, probeError
	}
	return minorVersion, nil
}

func (oracle *VersionOracle) currentRelease(executionContext context.Context) (int, int, error) {
	executionResult, executionError := oracle.executor.ExecutePveVersion(executionContext, execshell.CommandDetails{})
	if executionError != nil {
		return 0, 0, fmt.Errorf(versionCommandFailedTemplateConstant, executionError)
	}
	return parseManagerVersion(executionResult.StandardOutput)
}

// parseManagerVersion extracts major and minor versions from output shaped like
// "pve-manager/8.4.1/abcdef0123456789".
func parseManagerVersion(output string) (int, int, error) {
	versionLine := firstOutputLine(output)
	versionFields := strings.Split(versionLine, versionFieldSeparatorConstant)
	if len(versionFields) < minimumVersionFieldCountConstant {
		return 0, 0, fmt.Errorf(versionOutputUnparseableTemplateConstant, versionLine)
	}
	if !strings.HasPrefix(versionFields[versionPackageFieldIndexConstant], expectedManagerPackagePrefixConstant) {
		return 0, 0, fmt.Errorf(versionOutputUnparseableTemplateConstant, versionLine)
	}

	// Release values appear both dotted (8.4.1) and hyphenated (7.4-3).
	versionSegments := strings.FieldsFunc(versionFields[versionValueFieldIndexConstant], isVersionSegmentSeparator)
	if len(versionSegments) == 0 {
		return 0, 0, fmt.Errorf(versionOutputUnparseableTemplateConstant, versionLine)
	}

	majorVersion, majorError := strconv.Atoi(versionSegments[0])
	if majorError != nil {
		return 0, 0, fmt.Errorf(versionOutputUnparseableTemplateConstant, versionLine)
	}

	minorVersion := 0
	if len(versionSegments) > 1 {
		parsedMinor, minorError := strconv.Atoi(versionSegments[1])
		if minorError != nil {
			return 0, 0, fmt.Errorf(versionOutputUnparseableTemplateConstant, versionLine)
		}
		minorVersion = parsedMinor
	}

	return majorVersion, minorVersion, nil
}

func isVersionSegmentSeparator(candidate rune) bool {
	return candidate == '.' || candidate == '-'
}

func firstOutputLine(output string) string {
	trimmedOutput := strings.TrimSpace(output)
	if separatorIndex := strings.Index(trimmedOutput, versionOutputLineSeparator); separatorIndex >= 0 {
		return strings.TrimSpace(trimmedOutput[:separatorIndex])
	}
	return trimmedOutput
}
