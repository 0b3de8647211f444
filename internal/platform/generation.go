package platform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	bookwormCodenameConstant = "bookworm"
	trixieCodenameConstant   = "trixie"

	checklistToolNameTemplateConstant        = "pve%dto%d"
	unsupportedGenerationMessageTemplate     = "unsupported platform generation %d (supported: %s)"
	supportedGenerationListSeparatorConstant = ", "
)

// Generation identifies a supported platform release line by its major version.
type Generation int

// Supported release lines. Classification of any other probed value is an
// unsupported-version condition, never a silent default.
const (
	GenerationBookworm Generation = 8
	GenerationTrixie   Generation = 9
)

var generationCodenames = map[Generation]string{
	GenerationBookworm: bookwormCodenameConstant,
	GenerationTrixie:   trixieCodenameConstant,
}

// UnsupportedGenerationError reports a probed major version outside the supported set.
type UnsupportedGenerationError struct {
	ProbedMajorVersion int
}

// Error describes the unsupported version and lists the supported generations.
func (unsupported UnsupportedGenerationError) Error() string {
	return fmt.Sprintf(unsupportedGenerationMessageTemplate, unsupported.ProbedMajorVersion, formatSupportedGenerations())
}

// ClassifyGeneration maps a probed major version onto the closed set of
// supported generations.
func ClassifyGeneration(majorVersion int) (Generation, error) {
	candidate := Generation(majorVersion)
	if _, supported := generationCodenames[candidate]; !supported {
		return 0, UnsupportedGenerationError{ProbedMajorVersion: majorVersion}
	}
	return candidate, nil
}

// SupportedGenerations lists the supported release lines in ascending order.
func SupportedGenerations() []Generation {
	generations := make([]Generation, 0, len(generationCodenames))
	for generation := range generationCodenames {
		generations = append(generations, generation)
	}
	sort.Slice(generations, func(firstIndex, secondIndex int) bool {
		return generations[firstIndex] < generations[secondIndex]
	})
	return generations
}

// MajorVersion exposes the numeric major version of the generation.
func (generation Generation) MajorVersion() int {
	return int(generation)
}

// Codename returns the release codename used in repository declarations.
func (generation Generation) Codename() string {
	return generationCodenames[generation]
}

// String renders the major version for logs and fact values.
func (generation Generation) String() string {
	return strconv.Itoa(int(generation))
}

// ChecklistToolName derives the name of the platform's preflight checklist
// binary for a source/target generation pair.
func ChecklistToolName(sourceGeneration Generation, targetGeneration Generation) string {
	return fmt.Sprintf(checklistToolNameTemplateConstant, sourceGeneration.MajorVersion(), targetGeneration.MajorVersion())
}

func formatSupportedGenerations() string {
	labels := []string{}
	for _, generation := range SupportedGenerations() {
		labels = append(labels, generation.String())
	}
	return strings.Join(labels, supportedGenerationListSeparatorConstant)
}
