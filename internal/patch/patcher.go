package patch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	markerNotProvidedMessageConstant = "patch marker not provided"

	markerNotEmbeddedTemplateConstant = "patch body does not embed marker %q"

	readTargetFailedTemplateConstant    = "reading patch target %s failed: %w"
	writeTargetFailedTemplateConstant   = "writing patch target %s failed: %w"
	writeArtifactFailedTemplateConstant = "writing artifact %s failed: %w"

	executableArtifactPermissionsConstant = 0o755
	artifactDirectoryPermissionsConstant  = 0o755

	newlineConstant = "\n"
)

// ErrMarkerNotProvided reports ApplyPatch calls without a marker.
var ErrMarkerNotProvided = errors.New(markerNotProvidedMessageConstant)

// MarkerNotEmbeddedError reports a patch body that does not contain its own
// marker, which would make the patch impossible to detect on the next run.
type MarkerNotEmbeddedError struct {
	Marker string
}

// Error describes the missing marker.
func (invalid MarkerNotEmbeddedError) Error() string {
	return fmt.Sprintf(markerNotEmbeddedTemplateConstant, invalid.Marker)
}

// FilesystemPatcher applies marker-guarded patches and writes persistent
// artifacts keyed by file presence.
type FilesystemPatcher struct{}

// ApplyPatch appends patchBody to targetPath exactly once. A missing target is
// an opportunistic no-op (the optional software is not installed). The marker's
// presence in the file is the sole truth source for "already applied".
func (FilesystemPatcher) ApplyPatch(targetPath string, marker string, patchBody string) (bool, error) {
	if len(strings.TrimSpace(marker)) == 0 {
		return false, ErrMarkerNotProvided
	}
	if !strings.Contains(patchBody, marker) {
		return false, MarkerNotEmbeddedError{Marker: marker}
	}

	targetInfo, statError := os.Stat(targetPath)
	if errors.Is(statError, os.ErrNotExist) {
		return false, nil
	}
	if statError != nil {
		return false, fmt.Errorf(readTargetFailedTemplateConstant, targetPath, statError)
	}

	targetContent, readError := os.ReadFile(targetPath)
	if readError != nil {
		return false, fmt.Errorf(readTargetFailedTemplateConstant, targetPath, readError)
	}

	if bytes.Contains(targetContent, []byte(marker)) {
		return false, nil
	}

	patchedContent := appendWithSeparator(targetContent, patchBody)
	if writeError := os.WriteFile(targetPath, patchedContent, targetInfo.Mode().Perm()); writeError != nil {
		return false, fmt.Errorf(writeTargetFailedTemplateConstant, targetPath, writeError)
	}

	return true, nil
}

// EnsureExecutable writes an executable artifact when it does not exist yet.
// The returned flag reports whether the file was created by this call.
func (patcher FilesystemPatcher) EnsureExecutable(artifactPath string, content string) (bool, error) {
	return patcher.EnsureFile(artifactPath, content, executableArtifactPermissionsConstant)
}

// EnsureFile writes an artifact when it does not exist yet; an existing file is
// left untouched regardless of its content. Presence is the only creation key.
func (FilesystemPatcher) EnsureFile(artifactPath string, content string, mode fs.FileMode) (bool, error) {
	if _, statError := os.Stat(artifactPath); statError == nil {
		return false, nil
	} else if !errors.Is(statError, os.ErrNotExist) {
		return false, fmt.Errorf(writeArtifactFailedTemplateConstant, artifactPath, statError)
	}

	if mkdirError := os.MkdirAll(filepath.Dir(artifactPath), artifactDirectoryPermissionsConstant); mkdirError != nil {
		return false, fmt.Errorf(writeArtifactFailedTemplateConstant, artifactPath, mkdirError)
	}
	if writeError := os.WriteFile(artifactPath, []byte(content), mode); writeError != nil {
		return false, fmt.Errorf(writeArtifactFailedTemplateConstant, artifactPath, writeError)
	}

	return true, nil
}

func appendWithSeparator(existingContent []byte, patchBody string) []byte {
	patchedContent := append([]byte{}, existingContent...)
	if len(patchedContent) > 0 && !bytes.HasSuffix(patchedContent, []byte(newlineConstant)) {
		patchedContent = append(patchedContent, []byte(newlineConstant)...)
	}
	return append(patchedContent, []byte(patchBody)...)
}
