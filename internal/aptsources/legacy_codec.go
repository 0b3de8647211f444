package aptsources

import (
	"strings"
)

const (
	commentPrefixConstant          = "#"
	optionsOpenBracketConstant     = "["
	optionsCloseBracketConstant    = "]"
	signedByOptionPrefixConstant   = "signed-by="
	repositoryTypeDebSrcConstant   = "deb-src"
	minimumLegacyFieldCountChecked = 3
)

// ParseLegacyContent parses one-line-style repository content. Commented-out
// source lines are kept as disabled declarations; plain comments and blank
// lines are skipped.
func ParseLegacyContent(filePath string, content string) []RepositoryDeclaration {
	declarations := []RepositoryDeclaration{}
	for _, rawLine := range strings.Split(content, "\n") {
		trimmedLine := strings.TrimSpace(rawLine)
		if len(trimmedLine) == 0 {
			continue
		}
		lineEnabled := true
		if strings.HasPrefix(trimmedLine, commentPrefixConstant) {
			lineEnabled = false
			trimmedLine = strings.TrimSpace(strings.TrimLeft(trimmedLine, commentPrefixConstant))
		}
		declaration, parsed := parseLegacyLine(trimmedLine)
		if !parsed {
			continue
		}
		declaration.Format = FormatLegacy
		declaration.Path = filePath
		declaration.Enabled = lineEnabled
		declaration.RawContent = rawLine
		declarations = append(declarations, declaration)
	}
	return declarations
}

func parseLegacyLine(line string) (RepositoryDeclaration, bool) {
	fields := strings.Fields(line)
	if len(fields) < minimumLegacyFieldCountChecked {
		return RepositoryDeclaration{}, false
	}
	repositoryType := fields[0]
	if repositoryType != repositoryTypeDebConstant && repositoryType != repositoryTypeDebSrcConstant {
		return RepositoryDeclaration{}, false
	}
	remainingFields := fields[1:]

	signedByPath := ""
	if strings.HasPrefix(remainingFields[0], optionsOpenBracketConstant) {
		optionFields, fieldsAfterOptions, optionsClosed := splitOptionFields(remainingFields)
		if !optionsClosed {
			return RepositoryDeclaration{}, false
		}
		signedByPath = signedByFromOptions(optionFields)
		remainingFields = fieldsAfterOptions
	}
	if len(remainingFields) < 2 {
		return RepositoryDeclaration{}, false
	}

	declaration := RepositoryDeclaration{
		RepositoryType: repositoryType,
		URIs:           []string{remainingFields[0]},
		Suites:         []string{remainingFields[1]},
		Components:     append([]string{}, remainingFields[2:]...),
		SignedBy:       signedByPath,
	}
	return declaration, true
}

func splitOptionFields(fields []string) (optionFields []string, remainingFields []string, closed bool) {
	for fieldIndex, field := range fields {
		optionFields = append(optionFields, strings.Trim(field, optionsOpenBracketConstant+optionsCloseBracketConstant))
		if strings.HasSuffix(field, optionsCloseBracketConstant) {
			return optionFields, fields[fieldIndex+1:], true
		}
	}
	return nil, nil, false
}

func signedByFromOptions(optionFields []string) string {
	for _, optionField := range optionFields {
		if strings.HasPrefix(optionField, signedByOptionPrefixConstant) {
			return strings.TrimPrefix(optionField, signedByOptionPrefixConstant)
		}
	}
	return ""
}
