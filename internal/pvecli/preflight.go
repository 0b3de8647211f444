package pvecli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/pveup/internal/execshell"
)

const (
	checklistToolNotConfiguredMessageConstant = "checklist tool name not configured"

	checklistFullFlagConstant       = "--full"
	checklistCommandFailedTemplate  = "checklist tool %s failed: %w"
	checklistFailurePrefixConstant  = "FAIL:"
	checklistWarningPrefixConstant  = "WARN:"
	checklistFailureCounterConstant = "FAILURES:"
	checklistWarningCounterConstant = "WARNINGS:"
)

// ErrChecklistToolNotConfigured reports a preflight checker built without a tool name.
var ErrChecklistToolNotConfigured = errors.New(checklistToolNotConfiguredMessageConstant)

// FindingSeverity classifies a preflight finding.
type FindingSeverity string

// Severities reported by the checklist tool.
const (
	FindingSeverityFailure FindingSeverity = "failure"
	FindingSeverityWarning FindingSeverity = "warning"
)

// PreflightFinding is one issue reported by the checklist tool.
type PreflightFinding struct {
	Severity FindingSeverity
	Message  string
}

// PreflightReport aggregates checklist findings and summary counters.
type PreflightReport struct {
	Findings     []PreflightFinding
	FailureCount int
	WarningCount int
}

// HasFailures reports whether the checklist found conditions that block migration.
func (report PreflightReport) HasFailures() bool {
	return report.FailureCount > 0
}

// WarningMessages lists the warning finding texts in report order.
func (report PreflightReport) WarningMessages() []string {
	messages := []string{}
	for _, finding := range report.Findings {
		if finding.Severity == FindingSeverityWarning {
			messages = append(messages, finding.Message)
		}
	}
	return messages
}

// FailureMessages lists the failure finding texts in report order.
func (report PreflightReport) FailureMessages() []string {
	messages := []string{}
	for _, finding := range report.Findings {
		if finding.Severity == FindingSeverityFailure {
			messages = append(messages, finding.Message)
		}
	}
	return messages
}

// ChecklistCommandExecutor is the narrow executor surface the checker consumes.
type ChecklistCommandExecutor interface {
	ExecuteTool(executionContext context.Context, toolName execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// PreflightChecker runs the release checklist tool and parses its findings.
type PreflightChecker struct {
	executor          ChecklistCommandExecutor
	checklistToolName execshell.CommandName
}

// NewPreflightChecker validates dependencies and assembles a PreflightChecker.
func NewPreflightChecker(executor ChecklistCommandExecutor, checklistToolName string) (*PreflightChecker, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if len(strings.TrimSpace(checklistToolName)) == 0 {
		return nil, ErrChecklistToolNotConfigured
	}
	return &PreflightChecker{executor: executor, checklistToolName: execshell.CommandName(checklistToolName)}, nil
}

// RunFull executes the checklist tool in full mode and parses the report.
// A non-zero checklist exit code still yields the parsed report because the
// tool signals its verdict through summary counters rather than exit status.
func (checker *PreflightChecker) RunFull(executionContext context.Context) (PreflightReport, error) {
	executionResult, executionError := checker.executor.ExecuteTool(executionContext, checker.checklistToolName, execshell.CommandDetails{
		Arguments: []string{checklistFullFlagConstant},
	})
	if executionError != nil {
		failedError := execshell.CommandFailedError{}
		if !errors.As(executionError, &failedError) {
			return PreflightReport{}, fmt.Errorf(checklistCommandFailedTemplate, checker.checklistToolName, executionError)
		}
		executionResult = failedError.Result
	}

	return parseChecklistOutput(executionResult.StandardOutput), nil
}

// parseChecklistOutput extracts findings and summary counters from checklist
// output. Counter lines win over counted findings when both are present.
func parseChecklistOutput(output string) PreflightReport {
	report := PreflightReport{}
	counterFailures := -1
	counterWarnings := -1

	lineScanner := bufio.NewScanner(strings.NewReader(output))
	for lineScanner.Scan() {
		line := strings.TrimSpace(lineScanner.Text())
		switch {
		case strings.HasPrefix(line, checklistFailurePrefixConstant):
			report.Findings = append(report.Findings, PreflightFinding{
				Severity: FindingSeverityFailure,
				Message:  strings.TrimSpace(strings.TrimPrefix(line, checklistFailurePrefixConstant)),
			})
		case strings.HasPrefix(line, checklistWarningPrefixConstant):
			report.Findings = append(report.Findings, PreflightFinding{
				Severity: FindingSeverityWarning,
				Message:  strings.TrimSpace(strings.TrimPrefix(line, checklistWarningPrefixConstant)),
			})
		case strings.HasPrefix(line, checklistFailureCounterConstant):
			counterFailures = parseCounterValue(line, checklistFailureCounterConstant)
		case strings.HasPrefix(line, checklistWarningCounterConstant):
			counterWarnings = parseCounterValue(line, checklistWarningCounterConstant)
		}
	}

	report.FailureCount = len(report.FailureMessages())
	if counterFailures >= 0 {
		report.FailureCount = counterFailures
	}
	report.WarningCount = len(report.WarningMessages())
	if counterWarnings >= 0 {
		report.WarningCount = counterWarnings
	}

	return report
}

func parseCounterValue(line string, prefix string) int {
	counterText := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	counterValue, parseError := strconv.Atoi(counterText)
	if parseError != nil {
		return -1
	}
	return counterValue
}
