package aptsources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	renameAsideSuffixConstant              = ".bak"
	renameAsideFallbackLimitConstant       = 9
	renameAsideFallbackTemplateConstant    = "%s%s.%d"
	defaultDeclarationFileModeConstant     = fs.FileMode(0o644)
	renameExhaustedMessageTemplateConstant = "no free rename-aside name for %s after %d candidates"
	tokenReadErrorTemplateConstant         = "reading %s for token migration failed: %w"
	tokenWriteErrorTemplateConstant        = "writing %s after token migration failed: %w"
	declarationReadErrorTemplateConstant   = "reading declaration file %s failed: %w"
	declarationWriteErrorTemplateConstant  = "writing declaration file %s failed: %w"
	rewriteSkippedWarningTemplateConstant  = "repository file %s left unchanged: %v"
	renameSkippedWarningTemplateConstant   = "legacy file %s left in place: %v"
	restoreFailedWarningTemplateConstant   = "legacy file %s renamed to %s but replacement write failed: %v"
)

// Configuration errors reported by the migrator.
var (
	ErrSourceCodenameNotConfigured = errors.New("source codename is not configured")
	ErrTargetCodenameMissing       = errors.New("target codename is required")
	ErrTokenMissing                = errors.New("migration tokens are required")
)

// RenameAsideExhaustedError signals that every rename-aside candidate name for
// a legacy file is already taken. Existing renamed copies are never
// overwritten.
type RenameAsideExhaustedError struct {
	OriginalPath   string
	CandidateCount int
}

// Error describes the exhausted rename attempt.
func (renameError RenameAsideExhaustedError) Error() string {
	return fmt.Sprintf(renameExhaustedMessageTemplateConstant, renameError.OriginalPath, renameError.CandidateCount)
}

// MigratorOptions configures a Migrator.
type MigratorOptions struct {
	SourceCodename string
	Policy         ChannelPolicy
}

// Migrator rewrites repository declarations from the source release to a
// target release, converting legacy files to the structured format along the
// way.
type Migrator struct {
	sourceCodename string
	policy         ChannelPolicy
}

// NewMigrator validates the options and builds a Migrator.
func NewMigrator(options MigratorOptions) (*Migrator, error) {
	if len(strings.TrimSpace(options.SourceCodename)) == 0 {
		return nil, ErrSourceCodenameNotConfigured
	}
	return &Migrator{sourceCodename: options.SourceCodename, policy: options.Policy}, nil
}

// MigrateToken replaces every occurrence of fromToken with toToken in the
// file, preserving permissions. A missing file or a file without occurrences
// reports Changed=false without writing.
func (migrator *Migrator) MigrateToken(filePath string, fromToken string, toToken string) (bool, error) {
	if len(strings.TrimSpace(fromToken)) == 0 || len(strings.TrimSpace(toToken)) == 0 {
		return false, ErrTokenMissing
	}
	fileInformation, statError := os.Stat(filePath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf(tokenReadErrorTemplateConstant, filePath, statError)
	}
	fileContent, readError := os.ReadFile(filePath)
	if readError != nil {
		return false, fmt.Errorf(tokenReadErrorTemplateConstant, filePath, readError)
	}
	rewrittenContent := strings.ReplaceAll(string(fileContent), fromToken, toToken)
	if rewrittenContent == string(fileContent) {
		return false, nil
	}
	writeError := os.WriteFile(filePath, []byte(rewrittenContent), fileInformation.Mode().Perm())
	if writeError != nil {
		return false, fmt.Errorf(tokenWriteErrorTemplateConstant, filePath, writeError)
	}
	return true, nil
}

// StructuredMigrationResult reports the outcome of a structured migration
// pass. Warnings carry per-file soft failures; the run continues past them.
type StructuredMigrationResult struct {
	Declarations []RepositoryDeclaration
	ChangedPaths []string
	RenamedPaths map[string]string
	Warnings     []string
}

// MigrateToStructuredFormat converges the declarations on the target
// codename. Legacy files mentioning the source or target codename are renamed
// aside and replaced by structured equivalents; structured files are
// retargeted in place. Rewrites compare content first so a converged system
// sees no writes. Channel policy is applied throughout: paid-channel
// declarations end disabled before the free channel is enabled or
// synthesized.
func (migrator *Migrator) MigrateToStructuredFormat(declarations []RepositoryDeclaration, targetCodename string) (StructuredMigrationResult, error) {
	migrationResult := StructuredMigrationResult{RenamedPaths: map[string]string{}}
	if len(strings.TrimSpace(targetCodename)) == 0 {
		return migrationResult, ErrTargetCodenameMissing
	}

	structuredRepositoryKeys := map[string]bool{}
	paidChannelSeen := false
	paidPartsDirectory := ""
	for _, declaration := range declarations {
		if declaration.Format == FormatStructured {
			structuredRepositoryKeys[declaration.LogicalRepositoryKey()] = true
		}
		if migrator.policy.AppliesTo(declaration) {
			paidChannelSeen = true
			paidPartsDirectory = filepath.Dir(declaration.Path)
		}
	}

	for _, group := range orderGroupsPaidFirst(migrator.policy, groupDeclarationsByPath(declarations)) {
		if group.format == FormatStructured {
			migrator.rewriteStructuredGroup(group, targetCodename, &migrationResult)
			continue
		}
		migrator.supersedeLegacyGroup(group, targetCodename, structuredRepositoryKeys, &migrationResult)
	}

	if paidChannelSeen && !freeChannelActive(migrator.policy, migrationResult.Declarations) {
		migrator.synthesizeFreeChannel(paidPartsDirectory, targetCodename, &migrationResult)
	}
	return migrationResult, nil
}

func (migrator *Migrator) desiredStructuredDeclaration(declaration RepositoryDeclaration, targetCodename string) RepositoryDeclaration {
	desiredDeclaration := declaration
	desiredDeclaration.Format = FormatStructured
	if declaration.MentionsCodename(migrator.sourceCodename) {
		desiredDeclaration.Suites = RetargetSuites(declaration.Suites, migrator.sourceCodename, targetCodename)
	}
	policyGoverned := false
	if migrator.policy.AppliesTo(desiredDeclaration) {
		desiredDeclaration.Enabled = false
		policyGoverned = true
	} else if migrator.policy.MatchesFree(desiredDeclaration) {
		desiredDeclaration.Enabled = true
		policyGoverned = true
	}
	if policyGoverned && len(desiredDeclaration.SignedBy) == 0 {
		desiredDeclaration.SignedBy = migrator.policy.SignedBy
	}
	desiredDeclaration.RawContent = RenderStructured(desiredDeclaration)
	return desiredDeclaration
}

func (migrator *Migrator) rewriteStructuredGroup(group declarationGroup, targetCodename string, migrationResult *StructuredMigrationResult) {
	desiredDeclarations := make([]RepositoryDeclaration, 0, len(group.declarations))
	for _, declaration := range group.declarations {
		desiredDeclarations = append(desiredDeclarations, migrator.desiredStructuredDeclaration(declaration, targetCodename))
	}
	changed, writeError := writeDeclarationFile(group.path, renderDeclarationFile(desiredDeclarations))
	if writeError != nil {
		migrationResult.Warnings = append(migrationResult.Warnings, fmt.Sprintf(rewriteSkippedWarningTemplateConstant, group.path, writeError))
		migrationResult.Declarations = append(migrationResult.Declarations, group.declarations...)
		return
	}
	if changed {
		migrationResult.ChangedPaths = append(migrationResult.ChangedPaths, group.path)
	}
	migrationResult.Declarations = append(migrationResult.Declarations, desiredDeclarations...)
}

func (migrator *Migrator) supersedeLegacyGroup(group declarationGroup, targetCodename string, structuredRepositoryKeys map[string]bool, migrationResult *StructuredMigrationResult) {
	mentionsMigratableCodename := false
	for _, declaration := range group.declarations {
		if declaration.MentionsCodename(migrator.sourceCodename) || declaration.MentionsCodename(targetCodename) {
			mentionsMigratableCodename = true
			break
		}
	}
	if !mentionsMigratableCodename {
		migrationResult.Declarations = append(migrationResult.Declarations, group.declarations...)
		return
	}

	replacementPath := structuredPathForLegacy(group.path)
	replacementDeclarations := []RepositoryDeclaration{}
	for _, declaration := range group.declarations {
		if structuredRepositoryKeys[declaration.LogicalRepositoryKey()] {
			continue
		}
		desiredDeclaration := migrator.desiredStructuredDeclaration(declaration, targetCodename)
		desiredDeclaration.Path = replacementPath
		replacementDeclarations = append(replacementDeclarations, desiredDeclaration)
	}

	renamedPath, renameError := renameAside(group.path)
	if renameError != nil {
		migrationResult.Warnings = append(migrationResult.Warnings, fmt.Sprintf(renameSkippedWarningTemplateConstant, group.path, renameError))
		migrationResult.Declarations = append(migrationResult.Declarations, group.declarations...)
		return
	}
	migrationResult.RenamedPaths[group.path] = renamedPath

	if len(replacementDeclarations) == 0 {
		return
	}
	changed, writeError := writeDeclarationFile(replacementPath, renderDeclarationFile(replacementDeclarations))
	if writeError != nil {
		migrationResult.Warnings = append(migrationResult.Warnings, fmt.Sprintf(restoreFailedWarningTemplateConstant, group.path, renamedPath, writeError))
		return
	}
	if changed {
		migrationResult.ChangedPaths = append(migrationResult.ChangedPaths, replacementPath)
	}
	migrationResult.Declarations = append(migrationResult.Declarations, replacementDeclarations...)
}

func (migrator *Migrator) synthesizeFreeChannel(partsDirectoryPath string, targetCodename string, migrationResult *StructuredMigrationResult) {
	freeDeclaration := migrator.policy.FreeDeclaration(partsDirectoryPath, targetCodename)
	freeDeclaration.RawContent = RenderStructured(freeDeclaration)
	changed, writeError := writeDeclarationFile(freeDeclaration.Path, renderDeclarationFile([]RepositoryDeclaration{freeDeclaration}))
	if writeError != nil {
		migrationResult.Warnings = append(migrationResult.Warnings, fmt.Sprintf(rewriteSkippedWarningTemplateConstant, freeDeclaration.Path, writeError))
		return
	}
	if changed {
		migrationResult.ChangedPaths = append(migrationResult.ChangedPaths, freeDeclaration.Path)
	}
	migrationResult.Declarations = append(migrationResult.Declarations, freeDeclaration)
}

type declarationGroup struct {
	path         string
	format       DeclarationFormat
	declarations []RepositoryDeclaration
}

func groupDeclarationsByPath(declarations []RepositoryDeclaration) []declarationGroup {
	groups := []declarationGroup{}
	groupIndexByPath := map[string]int{}
	for _, declaration := range declarations {
		groupIndex, known := groupIndexByPath[declaration.Path]
		if !known {
			groups = append(groups, declarationGroup{path: declaration.Path, format: declaration.Format})
			groupIndex = len(groups) - 1
			groupIndexByPath[declaration.Path] = groupIndex
		}
		groups[groupIndex].declarations = append(groups[groupIndex].declarations, declaration)
	}
	return groups
}

// orderGroupsPaidFirst keeps the paid channel ahead of everything else so its
// declarations are disabled on disk before any free-channel write.
func orderGroupsPaidFirst(policy ChannelPolicy, groups []declarationGroup) []declarationGroup {
	orderedGroups := make([]declarationGroup, 0, len(groups))
	deferredGroups := []declarationGroup{}
	for _, group := range groups {
		paidGroup := false
		for _, declaration := range group.declarations {
			if policy.AppliesTo(declaration) {
				paidGroup = true
				break
			}
		}
		if paidGroup {
			orderedGroups = append(orderedGroups, group)
			continue
		}
		deferredGroups = append(deferredGroups, group)
	}
	return append(orderedGroups, deferredGroups...)
}

func freeChannelActive(policy ChannelPolicy, declarations []RepositoryDeclaration) bool {
	for _, declaration := range declarations {
		if declaration.Enabled && policy.MatchesFree(declaration) {
			return true
		}
	}
	return false
}

func structuredPathForLegacy(legacyPath string) string {
	return strings.TrimSuffix(legacyPath, legacyFileExtensionConstant) + structuredFileExtensionConstant
}

func renderDeclarationFile(declarations []RepositoryDeclaration) string {
	stanzas := make([]string, 0, len(declarations))
	for _, declaration := range declarations {
		stanzas = append(stanzas, RenderStructured(declaration))
	}
	return strings.Join(stanzas, "\n")
}

func writeDeclarationFile(filePath string, content string) (bool, error) {
	fileMode := defaultDeclarationFileModeConstant
	existingContent, readError := os.ReadFile(filePath)
	switch {
	case readError == nil:
		if string(existingContent) == content {
			return false, nil
		}
		if fileInformation, statError := os.Stat(filePath); statError == nil {
			fileMode = fileInformation.Mode().Perm()
		}
	case !errors.Is(readError, fs.ErrNotExist):
		return false, fmt.Errorf(declarationReadErrorTemplateConstant, filePath, readError)
	}
	if writeError := os.WriteFile(filePath, []byte(content), fileMode); writeError != nil {
		return false, fmt.Errorf(declarationWriteErrorTemplateConstant, filePath, writeError)
	}
	return true, nil
}

func renameAside(originalPath string) (string, error) {
	candidatePaths := make([]string, 0, renameAsideFallbackLimitConstant+1)
	candidatePaths = append(candidatePaths, originalPath+renameAsideSuffixConstant)
	for fallbackIndex := 1; fallbackIndex <= renameAsideFallbackLimitConstant; fallbackIndex++ {
		candidatePaths = append(candidatePaths, fmt.Sprintf(renameAsideFallbackTemplateConstant, originalPath, renameAsideSuffixConstant, fallbackIndex))
	}
	for _, candidatePath := range candidatePaths {
		if _, statError := os.Lstat(candidatePath); statError == nil {
			continue
		}
		if renameError := os.Rename(originalPath, candidatePath); renameError != nil {
			return "", renameError
		}
		return candidatePath, nil
	}
	return "", RenameAsideExhaustedError{OriginalPath: originalPath, CandidateCount: len(candidatePaths)}
}
