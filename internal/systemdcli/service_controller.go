package systemdcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/pveup/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "shell executor not configured"
	unitNameMissingMessageConstant       = "unit name not provided"

	isActiveSubcommandConstant = "is-active"
	disableSubcommandConstant  = "disable"
	quietFlagConstant          = "--quiet"
	nowFlagConstant            = "--now"

	activityCheckFailedTemplateConstant = "activity check for %s failed: %w"
	disableFailedTemplateConstant       = "disabling %s failed: %w"
)

// Configuration errors reported by NewServiceController and its operations.
var (
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	ErrUnitNameMissing       = errors.New(unitNameMissingMessageConstant)
)

// SystemctlCommandExecutor is the narrow executor surface the controller consumes.
type SystemctlCommandExecutor interface {
	ExecuteSystemctl(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ServiceController drives systemctl for cluster-dependent service normalization.
type ServiceController struct {
	executor SystemctlCommandExecutor
}

// NewServiceController validates the executor and assembles a ServiceController.
func NewServiceController(executor SystemctlCommandExecutor) (*ServiceController, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &ServiceController{executor: executor}, nil
}

// IsActive reports whether the unit is currently active. systemctl signals
// inactive, failed, and unknown units through non-zero exit codes, so every
// completed non-zero invocation means "not active" rather than an error.
func (controller *ServiceController) IsActive(executionContext context.Context, unitName string) (bool, error) {
	if len(strings.TrimSpace(unitName)) == 0 {
		return false, ErrUnitNameMissing
	}

	_, executionError := controller.executor.ExecuteSystemctl(executionContext, execshell.CommandDetails{
		Arguments: []string{isActiveSubcommandConstant, quietFlagConstant, unitName},
	})
	if executionError == nil {
		return true, nil
	}

	failedError := execshell.CommandFailedError{}
	if errors.As(executionError, &failedError) {
		return false, nil
	}
	return false, fmt.Errorf(activityCheckFailedTemplateConstant, unitName, executionError)
}

// DisableAndStop disables the unit and stops it in the same invocation.
// Disabling an already-disabled unit succeeds, keeping the call idempotent.
func (controller *ServiceController) DisableAndStop(executionContext context.Context, unitName string) error {
	if len(strings.TrimSpace(unitName)) == 0 {
		return ErrUnitNameMissing
	}

	_, executionError := controller.executor.ExecuteSystemctl(executionContext, execshell.CommandDetails{
		Arguments: []string{disableSubcommandConstant, nowFlagConstant, unitName},
	})
	if executionError != nil {
		return fmt.Errorf(disableFailedTemplateConstant, unitName, executionError)
	}
	return nil
}
