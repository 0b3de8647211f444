package aptsources

import (
	"fmt"
	"strings"
)

const (
	stanzaFieldTypesConstant      = "Types"
	stanzaFieldURIsConstant       = "URIs"
	stanzaFieldSuitesConstant     = "Suites"
	stanzaFieldComponentsConstant = "Components"
	stanzaFieldSignedByConstant   = "Signed-By"
	stanzaFieldEnabledConstant    = "Enabled"

	stanzaFieldSeparatorConstant  = ":"
	stanzaLineTemplateConstant    = "%s: %s\n"
	enabledFieldDisabledConstant  = "false"
	disabledFieldSpellingConstant = "no"
)

// ParseStructuredContent parses deb822 stanza content. Each blank-line
// separated stanza yields one declaration.
func ParseStructuredContent(filePath string, content string) []RepositoryDeclaration {
	declarations := []RepositoryDeclaration{}
	for _, stanzaContent := range splitStanzas(content) {
		declaration, parsed := parseStanza(stanzaContent)
		if !parsed {
			continue
		}
		declaration.Format = FormatStructured
		declaration.Path = filePath
		declaration.RawContent = stanzaContent
		declarations = append(declarations, declaration)
	}
	return declarations
}

// RenderStructured renders the declaration as a deb822 stanza. The Enabled
// field is emitted only when the declaration is disabled; enabled is the
// default reading of an absent field.
func RenderStructured(declaration RepositoryDeclaration) string {
	stanzaBuilder := strings.Builder{}
	writeStanzaLine(&stanzaBuilder, stanzaFieldTypesConstant, declaration.RepositoryType)
	writeStanzaLine(&stanzaBuilder, stanzaFieldURIsConstant, strings.Join(declaration.URIs, listValueSeparatorConstant))
	writeStanzaLine(&stanzaBuilder, stanzaFieldSuitesConstant, strings.Join(declaration.Suites, listValueSeparatorConstant))
	writeStanzaLine(&stanzaBuilder, stanzaFieldComponentsConstant, strings.Join(declaration.Components, listValueSeparatorConstant))
	if len(declaration.SignedBy) > 0 {
		writeStanzaLine(&stanzaBuilder, stanzaFieldSignedByConstant, declaration.SignedBy)
	}
	if !declaration.Enabled {
		writeStanzaLine(&stanzaBuilder, stanzaFieldEnabledConstant, enabledFieldDisabledConstant)
	}
	return stanzaBuilder.String()
}

func writeStanzaLine(stanzaBuilder *strings.Builder, fieldName string, fieldValue string) {
	fmt.Fprintf(stanzaBuilder, stanzaLineTemplateConstant, fieldName, fieldValue)
}

func splitStanzas(content string) []string {
	stanzas := []string{}
	currentLines := []string{}
	flushStanza := func() {
		if len(currentLines) > 0 {
			stanzas = append(stanzas, strings.Join(currentLines, "\n"))
			currentLines = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			flushStanza()
			continue
		}
		currentLines = append(currentLines, line)
	}
	flushStanza()
	return stanzas
}

func parseStanza(stanzaContent string) (RepositoryDeclaration, bool) {
	declaration := RepositoryDeclaration{Enabled: true}
	fieldSeen := false
	for _, line := range strings.Split(stanzaContent, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, commentPrefixConstant) {
			continue
		}
		fieldName, fieldValue, separatorFound := strings.Cut(trimmedLine, stanzaFieldSeparatorConstant)
		if !separatorFound {
			continue
		}
		fieldValue = strings.TrimSpace(fieldValue)
		switch strings.TrimSpace(fieldName) {
		case stanzaFieldTypesConstant:
			declaration.RepositoryType = fieldValue
			fieldSeen = true
		case stanzaFieldURIsConstant:
			declaration.URIs = strings.Fields(fieldValue)
			fieldSeen = true
		case stanzaFieldSuitesConstant:
			declaration.Suites = strings.Fields(fieldValue)
			fieldSeen = true
		case stanzaFieldComponentsConstant:
			declaration.Components = strings.Fields(fieldValue)
			fieldSeen = true
		case stanzaFieldSignedByConstant:
			declaration.SignedBy = fieldValue
		case stanzaFieldEnabledConstant:
			declaration.Enabled = parseEnabledField(fieldValue)
		}
	}
	if !fieldSeen || len(declaration.URIs) == 0 {
		return RepositoryDeclaration{}, false
	}
	return declaration, true
}

func parseEnabledField(fieldValue string) bool {
	normalizedValue := strings.ToLower(strings.TrimSpace(fieldValue))
	return normalizedValue != enabledFieldDisabledConstant && normalizedValue != disabledFieldSpellingConstant
}
