package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "DefaultFirstChoice",
			defaultChoice:  "structured",
			choices:        []string{"structured", "console"},
			description:    "Log output format.",
			expectedOutput: "`<STRUCTURED|console>` Log output format.",
		},
		{
			name:           "DefaultSecondChoice",
			defaultChoice:  "console",
			choices:        []string{"structured", "console"},
			description:    "Log output format.",
			expectedOutput: "`<structured|CONSOLE>` Log output format.",
		},
		{
			name:           "EmptyDescription",
			defaultChoice:  "info",
			choices:        []string{"info", "debug"},
			description:    "",
			expectedOutput: "`<INFO|debug>`",
		},
		{
			name:           "DuplicateChoicesIgnored",
			defaultChoice:  "warn",
			choices:        []string{"warn", "warn", "error", "error"},
			description:    "Log verbosity.",
			expectedOutput: "`<WARN|error>` Log verbosity.",
		},
		{
			name:           "WhitespaceTrimmed",
			defaultChoice:  "debug",
			choices:        []string{" debug ", " info "},
			description:    "Log verbosity.",
			expectedOutput: "`<DEBUG|info>` Log verbosity.",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			actual := FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description)
			require.Equal(t, testCase.expectedOutput, actual)
		})
	}
}
