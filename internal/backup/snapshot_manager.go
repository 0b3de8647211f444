package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	backupRootNotConfiguredMessageConstant = "backup root not configured"

	snapshotDateLayoutConstant = "2006-01-02"

	snapshotDirectoryPermissionsConstant = 0o755

	createSnapshotDirectoryFailedTemplateConstant = "creating snapshot directory %s failed: %w"
	captureSourceFailedTemplateConstant           = "capturing %s failed: %w"
	enumerateSnapshotFailedTemplateConstant       = "enumerating snapshot %s failed: %w"
)

// ErrBackupRootNotConfigured reports managers constructed without a backup root.
var ErrBackupRootNotConfigured = errors.New(backupRootNotConfiguredMessageConstant)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// CapturedFile pairs a backed-up file with its copy inside the snapshot.
type CapturedFile struct {
	OriginalPath string
	CopiedPath   string
}

// Snapshot describes one dated backup directory.
type Snapshot struct {
	Date          string
	RootPath      string
	CapturedFiles []CapturedFile
}

// Manager creates at most one snapshot per calendar day under the backup root.
type Manager struct {
	backupRoot string
	clock      Clock
}

// NewManager validates the backup root and assembles a Manager. A nil clock
// defaults to the system time source.
func NewManager(backupRoot string, clock Clock) (*Manager, error) {
	if len(strings.TrimSpace(backupRoot)) == 0 {
		return nil, ErrBackupRootNotConfigured
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{backupRoot: backupRoot, clock: clock}, nil
}

// EnsureBackup captures the sources into today's snapshot directory. When the
// directory already exists the existing snapshot is returned unchanged: one
// backup attempt per day, however many times the tool runs. Missing sources
// are skipped. Nothing is ever deleted by this component.
func (manager *Manager) EnsureBackup(executionContext context.Context, sources []string) (Snapshot, error) {
	snapshotDate := manager.clock.Now().Format(snapshotDateLayoutConstant)
	snapshotRoot := filepath.Join(manager.backupRoot, snapshotDate)

	if _, statError := os.Stat(snapshotRoot); statError == nil {
		return manager.existingSnapshot(snapshotDate, snapshotRoot)
	}

	if mkdirError := os.MkdirAll(snapshotRoot, snapshotDirectoryPermissionsConstant); mkdirError != nil {
		return Snapshot{}, fmt.Errorf(createSnapshotDirectoryFailedTemplateConstant, snapshotRoot, mkdirError)
	}

	snapshot := Snapshot{Date: snapshotDate, RootPath: snapshotRoot, CapturedFiles: []CapturedFile{}}
	for _, sourcePath := range sources {
		capturedFiles, captureError := manager.captureSource(snapshotRoot, sourcePath)
		if captureError != nil {
			return Snapshot{}, fmt.Errorf(captureSourceFailedTemplateConstant, sourcePath, captureError)
		}
		snapshot.CapturedFiles = append(snapshot.CapturedFiles, capturedFiles...)
	}

	return snapshot, nil
}

// captureSource copies one source into the snapshot, preserving the absolute
// layout below the snapshot root. Directory sources are captured recursively.
// A missing source is skipped, not fatal.
func (manager *Manager) captureSource(snapshotRoot string, sourcePath string) ([]CapturedFile, error) {
	sourceInfo, statError := os.Stat(sourcePath)
	if errors.Is(statError, os.ErrNotExist) {
		return nil, nil
	}
	if statError != nil {
		return nil, statError
	}

	if !sourceInfo.IsDir() {
		capturedFile, copyError := manager.copyFile(snapshotRoot, sourcePath, sourceInfo.Mode())
		if copyError != nil {
			return nil, copyError
		}
		return []CapturedFile{capturedFile}, nil
	}

	capturedFiles := []CapturedFile{}
	walkError := filepath.WalkDir(sourcePath, func(walkedPath string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if entry.IsDir() {
			return nil
		}
		entryInfo, infoError := entry.Info()
		if infoError != nil {
			return infoError
		}
		capturedFile, copyError := manager.copyFile(snapshotRoot, walkedPath, entryInfo.Mode())
		if copyError != nil {
			return copyError
		}
		capturedFiles = append(capturedFiles, capturedFile)
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	return capturedFiles, nil
}

func (manager *Manager) copyFile(snapshotRoot string, sourcePath string, sourceMode fs.FileMode) (CapturedFile, error) {
	destinationPath := filepath.Join(snapshotRoot, relativeSnapshotPath(sourcePath))
	if mkdirError := os.MkdirAll(filepath.Dir(destinationPath), snapshotDirectoryPermissionsConstant); mkdirError != nil {
		return CapturedFile{}, mkdirError
	}

	sourceContent, readError := os.ReadFile(sourcePath)
	if readError != nil {
		return CapturedFile{}, readError
	}
	if writeError := os.WriteFile(destinationPath, sourceContent, sourceMode.Perm()); writeError != nil {
		return CapturedFile{}, writeError
	}

	return CapturedFile{OriginalPath: sourcePath, CopiedPath: destinationPath}, nil
}

// existingSnapshot reconstructs the snapshot view from a directory created by
// an earlier run on the same day. Captured files only ever grow within a day,
// so the enumeration covers everything earlier calls copied.
func (manager *Manager) existingSnapshot(snapshotDate string, snapshotRoot string) (Snapshot, error) {
	snapshot := Snapshot{Date: snapshotDate, RootPath: snapshotRoot, CapturedFiles: []CapturedFile{}}

	walkError := filepath.WalkDir(snapshotRoot, func(walkedPath string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if entry.IsDir() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(snapshotRoot, walkedPath)
		if relativeError != nil {
			return relativeError
		}
		snapshot.CapturedFiles = append(snapshot.CapturedFiles, CapturedFile{
			OriginalPath: absoluteOriginalPath(relativePath),
			CopiedPath:   walkedPath,
		})
		return nil
	})
	if walkError != nil {
		return Snapshot{}, fmt.Errorf(enumerateSnapshotFailedTemplateConstant, snapshotRoot, walkError)
	}

	return snapshot, nil
}

func relativeSnapshotPath(sourcePath string) string {
	return strings.TrimPrefix(filepath.Clean(sourcePath), string(filepath.Separator))
}

func absoluteOriginalPath(relativePath string) string {
	return string(filepath.Separator) + relativePath
}
