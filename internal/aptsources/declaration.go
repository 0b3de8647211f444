package aptsources

import (
	"sort"
	"strings"
)

// DeclarationFormat tags the on-disk syntax of a repository declaration. The
// format is decided once at load time, never re-derived from filename patterns
// at use sites.
type DeclarationFormat string

// Supported declaration formats.
const (
	FormatLegacy     DeclarationFormat = "legacy"
	FormatStructured DeclarationFormat = "structured"
)

const (
	repositoryTypeDebConstant = "deb"

	logicalKeyFieldSeparatorConstant = "|"
	listValueSeparatorConstant       = " "
)

// RepositoryDeclaration is one configured package source. Files may carry
// several declarations; each keeps the path of the file it was loaded from.
type RepositoryDeclaration struct {
	Format         DeclarationFormat
	Path           string
	Enabled        bool
	RepositoryType string
	URIs           []string
	Suites         []string
	Components     []string
	SignedBy       string
	RawContent     string
}

// MentionsCodename reports whether any suite references the codename, either
// exactly or as a dashed derivative such as "bookworm-updates".
func (declaration RepositoryDeclaration) MentionsCodename(codename string) bool {
	if len(codename) == 0 {
		return false
	}
	for _, suite := range declaration.Suites {
		if suite == codename || strings.HasPrefix(suite, codename+"-") {
			return true
		}
	}
	return false
}

// HasComponent reports whether the declaration carries the component.
func (declaration RepositoryDeclaration) HasComponent(component string) bool {
	for _, candidate := range declaration.Components {
		if candidate == component {
			return true
		}
	}
	return false
}

// LogicalRepositoryKey identifies the logical repository independent of suite
// and format, so legacy and structured declarations of the same source can be
// matched for supersession.
func (declaration RepositoryDeclaration) LogicalRepositoryKey() string {
	normalizedURIs := normalizeKeyValues(declaration.URIs)
	normalizedComponents := normalizeKeyValues(declaration.Components)
	keyParts := []string{
		declaration.RepositoryType,
		strings.Join(normalizedURIs, listValueSeparatorConstant),
		strings.Join(normalizedComponents, listValueSeparatorConstant),
	}
	return strings.Join(keyParts, logicalKeyFieldSeparatorConstant)
}

// RetargetSuites returns the suite list with every reference to fromCodename
// rewritten to toCodename, covering dashed derivatives.
func RetargetSuites(suites []string, fromCodename string, toCodename string) []string {
	retargeted := make([]string, 0, len(suites))
	for _, suite := range suites {
		retargeted = append(retargeted, strings.ReplaceAll(suite, fromCodename, toCodename))
	}
	return retargeted
}

func normalizeKeyValues(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		normalized = append(normalized, strings.TrimRight(strings.TrimSpace(value), "/"))
	}
	sort.Strings(normalized)
	return normalized
}
