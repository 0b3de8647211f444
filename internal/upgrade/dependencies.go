package upgrade

import (
	"context"
	"io/fs"

	"github.com/temirov/pveup/internal/aptcli"
	"github.com/temirov/pveup/internal/aptsources"
	"github.com/temirov/pveup/internal/backup"
	"github.com/temirov/pveup/internal/platform"
	"github.com/temirov/pveup/internal/pvecli"
)

// SystemProber gathers the read-only fact set describing the host.
type SystemProber interface {
	Probe(executionContext context.Context) (platform.SystemFactSet, error)
}

// PreflightChecker runs the release checklist tool and reports its findings.
type PreflightChecker interface {
	RunFull(executionContext context.Context) (pvecli.PreflightReport, error)
}

// PackageManager exposes the package operations used during convergence.
type PackageManager interface {
	Update(executionContext context.Context) error
	DistUpgrade(executionContext context.Context, options aptcli.DistUpgradeOptions) error
	Reinstall(executionContext context.Context, packageName string) error
	InstallIfMissing(executionContext context.Context, packageName string) (bool, error)
}

// ServiceController inspects and normalizes systemd units.
type ServiceController interface {
	IsActive(executionContext context.Context, unitName string) (bool, error)
	DisableAndStop(executionContext context.Context, unitName string) error
}

// RepositoryMigrator rewrites repository declarations toward the target
// release.
type RepositoryMigrator interface {
	MigrateToken(filePath string, fromToken string, toToken string) (bool, error)
	MigrateToStructuredFormat(declarations []aptsources.RepositoryDeclaration, targetCodename string) (aptsources.StructuredMigrationResult, error)
}

// SnapshotManager captures pre-migration backups.
type SnapshotManager interface {
	EnsureBackup(executionContext context.Context, sources []string) (backup.Snapshot, error)
}

// ArtifactPatcher applies marker-keyed patches and materializes persistent
// helper artifacts.
type ArtifactPatcher interface {
	ApplyPatch(targetPath string, marker string, patchBody string) (bool, error)
	EnsureExecutable(filePath string, content string) (bool, error)
	EnsureFile(filePath string, content string, fileMode fs.FileMode) (bool, error)
}

// ConfirmationPrompter asks the operator to confirm before mutating.
type ConfirmationPrompter interface {
	Confirm(prompt string) (bool, error)
}

// DeclarationLoader reads repository declarations from disk.
type DeclarationLoader func(listFilePath string, partsDirectoryPath string) ([]aptsources.RepositoryDeclaration, error)
