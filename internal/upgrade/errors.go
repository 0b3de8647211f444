package upgrade

import "fmt"

const (
	fatalPreflightMessageTemplateConstant = "upgrade blocked: %s (%s)"
	taggedWarningTemplateConstant         = "%s: %s"
)

// Warning tags prefixing Result.Warnings entries. Soft failures and
// advisories share the format "<TAG>: <detail>".
const (
	WarningTagPreflight     = "PREFLIGHT-WARN"
	WarningTagBackupSkip    = "BACKUP-SKIP"
	WarningTagRewriteSkip   = "REWRITE-SKIP"
	WarningTagAptUpdate     = "APT-UPDATE"
	WarningTagDistUpgrade   = "DIST-UPGRADE"
	WarningTagPatchSkip     = "PATCH-SKIP"
	WarningTagReinstallFail = "REINSTALL-FAIL"
	WarningTagInstallFail   = "INSTALL-FAIL"
	WarningTagServiceSkip   = "SERVICE-SKIP"
	WarningTagStorageActive = "CEPH-ACTIVE"
	WarningTagMixedChannels = "MIXED-CHANNELS"
	WarningTagRebootNeeded  = "REBOOT-REQUIRED"
)

// FatalPreflightError blocks a run before any mutation. Remediation carries
// operator-facing guidance.
type FatalPreflightError struct {
	Reason      string
	Remediation string
	Cause       error
}

// Error describes the blocked run with its remediation.
func (preflightError FatalPreflightError) Error() string {
	return fmt.Sprintf(fatalPreflightMessageTemplateConstant, preflightError.Reason, preflightError.Remediation)
}

// Unwrap exposes the underlying cause.
func (preflightError FatalPreflightError) Unwrap() error {
	return preflightError.Cause
}

func taggedWarning(warningTag string, messageFormat string, formatArguments ...any) string {
	return fmt.Sprintf(taggedWarningTemplateConstant, warningTag, fmt.Sprintf(messageFormat, formatArguments...))
}
