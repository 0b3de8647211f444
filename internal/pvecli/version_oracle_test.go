package pvecli_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pveup/internal/execshell"
	"github.com/temirov/pveup/internal/platform"
	"github.com/temirov/pveup/internal/pvecli"
)

const (
	testBookwormVersionOutputConstant   = "pve-manager/8.4.1/ec21252f6f5b3e40\n"
	testTrixieVersionOutputConstant     = "pve-manager/9.0.3/abcdef0123456789\n"
	testHyphenatedVersionOutputConstant = "pve-manager/7.4-3/9002ab8a\n"
	testVerboseVersionOutputConstant    = "pve-manager/8.4.1/ec21252f6f5b3e40\nrunning kernel: 6.8.12-4-pve\n"
)

type stubVersionCommandExecutor struct {
	executionResult execshell.ExecutionResult
	executionError  error
}

func (executor *stubVersionCommandExecutor) ExecutePveVersion(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.executionResult, executor.executionError
}

func TestNewVersionOracleRequiresExecutor(testInstance *testing.T) {
	oracle, creationError := pvecli.NewVersionOracle(nil)
	require.Nil(testInstance, oracle)
	require.ErrorIs(testInstance, creationError, pvecli.ErrExecutorNotConfigured)
}

func TestVersionOracleClassifiesGenerations(testInstance *testing.T) {
	testCases := []struct {
		name               string
		versionOutput      string
		expectedGeneration platform.Generation
		expectedMinor      int
		expectUnsupported  bool
	}{
		{
			name:               "bookworm_release",
			versionOutput:      testBookwormVersionOutputConstant,
			expectedGeneration: platform.GenerationBookworm,
			expectedMinor:      4,
		},
		{
			name:               "trixie_release",
			versionOutput:      testTrixieVersionOutputConstant,
			expectedGeneration: platform.GenerationTrixie,
			expectedMinor:      0,
		},
		{
			name:               "verbose_output_uses_first_line",
			versionOutput:      testVerboseVersionOutputConstant,
			expectedGeneration: platform.GenerationBookworm,
			expectedMinor:      4,
		},
		{
			name:              "hyphenated_predecessor_unsupported",
			versionOutput:     testHyphenatedVersionOutputConstant,
			expectUnsupported: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			oracle, creationError := pvecli.NewVersionOracle(&stubVersionCommandExecutor{
				executionResult: execshell.ExecutionResult{StandardOutput: testCase.versionOutput},
			})
			require.NoError(testInstance, creationError)

			generation, generationError := oracle.CurrentGeneration(context.Background())

			if testCase.expectUnsupported {
				require.Error(testInstance, generationError)
				unsupportedFailure := platform.UnsupportedGenerationError{}
				require.ErrorAs(testInstance, generationError, &unsupportedFailure)
				return
			}

			require.NoError(testInstance, generationError)
			require.Equal(testInstance, testCase.expectedGeneration, generation)

			minorVersion, minorError := oracle.CurrentMinor(context.Background())
			require.NoError(testInstance, minorError)
			require.Equal(testInstance, testCase.expectedMinor, minorVersion)
		})
	}
}

func TestVersionOracleRejectsUnparseableOutput(testInstance *testing.T) {
	testCases := []struct {
		name          string
		versionOutput string
	}{
		{name: "empty_output", versionOutput: ""},
		{name: "missing_version_field", versionOutput: "pve-manager\n"},
		{name: "wrong_package", versionOutput: "qemu-server/8.4.1/abc\n"},
		{name: "non_numeric_major", versionOutput: "pve-manager/x.4.1/abc\n"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			oracle, creationError := pvecli.NewVersionOracle(&stubVersionCommandExecutor{
				executionResult: execshell.ExecutionResult{StandardOutput: testCase.versionOutput},
			})
			require.NoError(testInstance, creationError)

			_, generationError := oracle.CurrentGeneration(context.Background())
			require.Error(testInstance, generationError)
			require.Contains(testInstance, generationError.Error(), "unparseable pveversion output")
		})
	}
}

func TestVersionOracleWrapsExecutionFailures(testInstance *testing.T) {
	toolFailure := errors.New("executable file not found")
	oracle, creationError := pvecli.NewVersionOracle(&stubVersionCommandExecutor{executionError: toolFailure})
	require.NoError(testInstance, creationError)

	_, generationError := oracle.CurrentGeneration(context.Background())
	require.Error(testInstance, generationError)
	require.ErrorIs(testInstance, generationError, toolFailure)
}
