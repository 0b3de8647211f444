package upgrade

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/temirov/pveup/internal/aptsources"
	"github.com/temirov/pveup/internal/platform"
	pathutils "github.com/temirov/pveup/internal/utils/path"
)

var upgradeConfigurationHomeExpander = pathutils.NewHomeExpander()

const (
	defaultSourceMajorVersionConstant = 8
	defaultTargetMajorVersionConstant = 9
	defaultListFilePathConstant       = "/etc/apt/sources.list"
	defaultPartsDirectoryPathConstant = "/etc/apt/sources.list.d"
	defaultBackupRootPathConstant     = "/var/backups/pveup"
	defaultHelperScriptPathConstant   = "/usr/local/bin/pveup-refresh-ui-patch"
	defaultHookFilePathConstant       = "/etc/apt/apt.conf.d/99pveup-ui-patch"
	defaultPatchTargetPathConstant    = "/usr/share/javascript/proxmox-widget-toolkit/proxmoxlib.js"
	defaultToolkitPackageNameConstant = "proxmox-widget-toolkit"
	defaultConfirmationPromptConstant = "Proceed with the release upgrade? [y/N]: "

	patchMarkerConstant = "// pveup: subscription notice silenced"
	patchBodyConstant   = patchMarkerConstant + `
Ext.define('PVEUP.SubscriptionNoticeSilencer', {
    override: 'Proxmox.Utils',
    checked_command: function(command) {
        command();
    },
});
`

	helperScriptTemplateConstant = `#!/bin/sh
# Reapplies the subscription notice patch after the widget toolkit changes.
set -eu
PATCH_TARGET=%q
PATCH_MARKER=%q
[ -f "$PATCH_TARGET" ] || exit 0
grep -qF "$PATCH_MARKER" "$PATCH_TARGET" && exit 0
cat >>"$PATCH_TARGET" <<'PVEUP_PATCH'
%sPVEUP_PATCH
`

	hookFileContentTemplateConstant = "DPkg::Post-Invoke { %q; };\n"

	hookFileModeConstant = fs.FileMode(0o644)

	configurationKeySeparatorConstant              = "."
	configurationSourceMajorVersionKeyConstant     = "source_major_version"
	configurationTargetMajorVersionKeyConstant     = "target_major_version"
	configurationListFilePathKeyConstant           = "list_file_path"
	configurationPartsDirectoryPathKeyConstant     = "parts_directory_path"
	configurationBackupRootPathKeyConstant         = "backup_root_path"
	configurationExtraBackupSourcesKeyConstant     = "extra_backup_sources"
	configurationHelperScriptPathKeyConstant       = "helper_script_path"
	configurationHookFilePathKeyConstant           = "hook_file_path"
	configurationPatchTargetPathKeyConstant        = "patch_target_path"
	configurationToolkitPackageNameKeyConstant     = "toolkit_package_name"
	configurationUtilityPackagesKeyConstant        = "utility_packages"
	configurationHighAvailabilityUnitsKeyConstant  = "high_availability_services"
	configurationStorageServicesKeyConstant        = "storage_services"
	configurationChannelPolicyKeyConstant          = "channel_policy"
	configurationPaidComponentKeyConstant          = "paid_component"
	configurationPaidHostKeyConstant               = "paid_host"
	configurationFreeComponentKeyConstant          = "free_component"
	configurationFreeURIKeyConstant                = "free_uri"
	configurationFreeDeclarationNameKeyConstant    = "free_declaration_name"
	configurationSignedByKeyConstant               = "signed_by"
	configurationConfirmationPromptKeyConstant     = "confirmation_prompt"
	configurationUnattendedKeyConstant             = "unattended"
	configurationAssumeYesKeyConstant              = "assume_yes"
	configurationKeepExistingConfigurationConstant = "keep_existing_configuration"
)

var (
	defaultUtilityPackages          = []string{"chrony"}
	defaultHighAvailabilityServices = []string{"pve-ha-lrm", "pve-ha-crm"}
	defaultStorageServices          = []string{"ceph.target"}
)

// Configuration captures the persisted settings of a convergence run. One
// sanitized value is threaded through every component call.
type Configuration struct {
	SourceMajorVersion        int                      `mapstructure:"source_major_version"`
	TargetMajorVersion        int                      `mapstructure:"target_major_version"`
	ListFilePath              string                   `mapstructure:"list_file_path"`
	PartsDirectoryPath        string                   `mapstructure:"parts_directory_path"`
	BackupRootPath            string                   `mapstructure:"backup_root_path"`
	ExtraBackupSources        []string                 `mapstructure:"extra_backup_sources"`
	HelperScriptPath          string                   `mapstructure:"helper_script_path"`
	HookFilePath              string                   `mapstructure:"hook_file_path"`
	PatchTargetPath           string                   `mapstructure:"patch_target_path"`
	ToolkitPackageName        string                   `mapstructure:"toolkit_package_name"`
	UtilityPackages           []string                 `mapstructure:"utility_packages"`
	HighAvailabilityServices  []string                 `mapstructure:"high_availability_services"`
	StorageServices           []string                 `mapstructure:"storage_services"`
	ChannelPolicy             aptsources.ChannelPolicy `mapstructure:"channel_policy"`
	ConfirmationPrompt        string                   `mapstructure:"confirmation_prompt"`
	Unattended                bool                     `mapstructure:"unattended"`
	AssumeYes                 bool                     `mapstructure:"assume_yes"`
	KeepExistingConfiguration bool                     `mapstructure:"keep_existing_configuration"`
}

// DefaultConfiguration returns the baseline convergence settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		SourceMajorVersion:        defaultSourceMajorVersionConstant,
		TargetMajorVersion:        defaultTargetMajorVersionConstant,
		ListFilePath:              defaultListFilePathConstant,
		PartsDirectoryPath:        defaultPartsDirectoryPathConstant,
		BackupRootPath:            defaultBackupRootPathConstant,
		HelperScriptPath:          defaultHelperScriptPathConstant,
		HookFilePath:              defaultHookFilePathConstant,
		PatchTargetPath:           defaultPatchTargetPathConstant,
		ToolkitPackageName:        defaultToolkitPackageNameConstant,
		UtilityPackages:           append([]string{}, defaultUtilityPackages...),
		HighAvailabilityServices:  append([]string{}, defaultHighAvailabilityServices...),
		StorageServices:           append([]string{}, defaultStorageServices...),
		ChannelPolicy:             aptsources.DefaultChannelPolicy(),
		ConfirmationPrompt:        defaultConfirmationPromptConstant,
		KeepExistingConfiguration: true,
	}
}

// DefaultConfigurationValues produces Viper defaults for the convergence
// command nested under the provided root key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	prefix := rootKey + configurationKeySeparatorConstant
	policyPrefix := prefix + configurationChannelPolicyKeyConstant + configurationKeySeparatorConstant
	return map[string]any{
		prefix + configurationSourceMajorVersionKeyConstant:        defaults.SourceMajorVersion,
		prefix + configurationTargetMajorVersionKeyConstant:        defaults.TargetMajorVersion,
		prefix + configurationListFilePathKeyConstant:              defaults.ListFilePath,
		prefix + configurationPartsDirectoryPathKeyConstant:        defaults.PartsDirectoryPath,
		prefix + configurationBackupRootPathKeyConstant:            defaults.BackupRootPath,
		prefix + configurationExtraBackupSourcesKeyConstant:        defaults.ExtraBackupSources,
		prefix + configurationHelperScriptPathKeyConstant:          defaults.HelperScriptPath,
		prefix + configurationHookFilePathKeyConstant:              defaults.HookFilePath,
		prefix + configurationPatchTargetPathKeyConstant:           defaults.PatchTargetPath,
		prefix + configurationToolkitPackageNameKeyConstant:        defaults.ToolkitPackageName,
		prefix + configurationUtilityPackagesKeyConstant:           defaults.UtilityPackages,
		prefix + configurationHighAvailabilityUnitsKeyConstant:     defaults.HighAvailabilityServices,
		prefix + configurationStorageServicesKeyConstant:           defaults.StorageServices,
		policyPrefix + configurationPaidComponentKeyConstant:       defaults.ChannelPolicy.PaidComponent,
		policyPrefix + configurationPaidHostKeyConstant:            defaults.ChannelPolicy.PaidHost,
		policyPrefix + configurationFreeComponentKeyConstant:       defaults.ChannelPolicy.FreeComponent,
		policyPrefix + configurationFreeURIKeyConstant:             defaults.ChannelPolicy.FreeURI,
		policyPrefix + configurationFreeDeclarationNameKeyConstant: defaults.ChannelPolicy.FreeDeclarationName,
		policyPrefix + configurationSignedByKeyConstant:            defaults.ChannelPolicy.SignedBy,
		prefix + configurationConfirmationPromptKeyConstant:        defaults.ConfirmationPrompt,
		prefix + configurationUnattendedKeyConstant:                defaults.Unattended,
		prefix + configurationAssumeYesKeyConstant:                 defaults.AssumeYes,
		prefix + configurationKeepExistingConfigurationConstant:    defaults.KeepExistingConfiguration,
	}
}

// Sanitize trims configured values and substitutes defaults for gaps.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	if sanitized.SourceMajorVersion == 0 {
		sanitized.SourceMajorVersion = defaultSourceMajorVersionConstant
	}
	if sanitized.TargetMajorVersion == 0 {
		sanitized.TargetMajorVersion = defaultTargetMajorVersionConstant
	}
	sanitized.ListFilePath = sanitizeStringValue(configuration.ListFilePath, defaultListFilePathConstant)
	sanitized.PartsDirectoryPath = sanitizeStringValue(configuration.PartsDirectoryPath, defaultPartsDirectoryPathConstant)
	sanitized.BackupRootPath = upgradeConfigurationHomeExpander.Expand(sanitizeStringValue(configuration.BackupRootPath, defaultBackupRootPathConstant))
	sanitized.ExtraBackupSources = sanitizeStringListValue(configuration.ExtraBackupSources, nil)
	sanitized.HelperScriptPath = sanitizeStringValue(configuration.HelperScriptPath, defaultHelperScriptPathConstant)
	sanitized.HookFilePath = sanitizeStringValue(configuration.HookFilePath, defaultHookFilePathConstant)
	sanitized.PatchTargetPath = sanitizeStringValue(configuration.PatchTargetPath, defaultPatchTargetPathConstant)
	sanitized.ToolkitPackageName = sanitizeStringValue(configuration.ToolkitPackageName, defaultToolkitPackageNameConstant)
	sanitized.UtilityPackages = sanitizeStringListValue(configuration.UtilityPackages, defaultUtilityPackages)
	sanitized.HighAvailabilityServices = sanitizeStringListValue(configuration.HighAvailabilityServices, defaultHighAvailabilityServices)
	sanitized.StorageServices = sanitizeStringListValue(configuration.StorageServices, defaultStorageServices)
	if sanitized.ChannelPolicy == (aptsources.ChannelPolicy{}) {
		sanitized.ChannelPolicy = aptsources.DefaultChannelPolicy()
	}
	sanitized.ConfirmationPrompt = sanitizePromptValue(configuration.ConfirmationPrompt, defaultConfirmationPromptConstant)
	return sanitized
}

// SourceGeneration classifies the configured source release.
func (configuration Configuration) SourceGeneration() (platform.Generation, error) {
	return platform.ClassifyGeneration(configuration.SourceMajorVersion)
}

// TargetGeneration classifies the configured target release.
func (configuration Configuration) TargetGeneration() (platform.Generation, error) {
	return platform.ClassifyGeneration(configuration.TargetMajorVersion)
}

// BackupSources lists every path captured before migration.
func (configuration Configuration) BackupSources() []string {
	backupSources := []string{configuration.ListFilePath, configuration.PartsDirectoryPath}
	return append(backupSources, configuration.ExtraBackupSources...)
}

// PatchMarker returns the marker token identifying an applied patch.
func (configuration Configuration) PatchMarker() string {
	return patchMarkerConstant
}

// PatchBody returns the patch content appended to the patch target. The body
// embeds the marker.
func (configuration Configuration) PatchBody() string {
	return patchBodyConstant
}

// HelperScriptContent renders the persistent helper script that re-applies
// the patch after package updates.
func (configuration Configuration) HelperScriptContent() string {
	return fmt.Sprintf(helperScriptTemplateConstant, configuration.PatchTargetPath, patchMarkerConstant, patchBodyConstant)
}

// HookFileContent renders the package-manager post-invoke hook pointing at
// the helper script.
func (configuration Configuration) HookFileContent() string {
	return fmt.Sprintf(hookFileContentTemplateConstant, configuration.HelperScriptPath)
}

func sanitizeStringValue(rawValue string, fallbackValue string) string {
	trimmedValue := strings.TrimSpace(rawValue)
	if len(trimmedValue) == 0 {
		return fallbackValue
	}
	return trimmedValue
}

// sanitizePromptValue substitutes the fallback for blank prompts but keeps
// whitespace intact; the trailing space separates the prompt from the typed
// response.
func sanitizePromptValue(rawValue string, fallbackValue string) string {
	if len(strings.TrimSpace(rawValue)) == 0 {
		return fallbackValue
	}
	return rawValue
}

func sanitizeStringListValue(rawValues []string, fallbackValues []string) []string {
	sanitizedValues := []string{}
	for _, rawValue := range rawValues {
		trimmedValue := strings.TrimSpace(rawValue)
		if len(trimmedValue) == 0 {
			continue
		}
		sanitizedValues = append(sanitizedValues, trimmedValue)
	}
	if len(sanitizedValues) == 0 && fallbackValues != nil {
		return append([]string{}, fallbackValues...)
	}
	return sanitizedValues
}
