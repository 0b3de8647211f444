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
	legacyFileExtensionConstant     = ".list"
	structuredFileExtensionConstant = ".sources"

	listFileReadErrorTemplateConstant   = "repository list %s unreadable: %w"
	partsDirectoryErrorTemplateConstant = "repository directory %s unreadable: %w"
)

// LoadDeclarations reads every repository declaration from the single legacy
// list file and the parts directory. Missing paths yield no declarations and
// no error; the format tag of each declaration is fixed here, at load time.
func LoadDeclarations(listFilePath string, partsDirectoryPath string) ([]RepositoryDeclaration, error) {
	declarations := []RepositoryDeclaration{}

	listDeclarations, listLoadError := loadDeclarationFile(listFilePath, FormatLegacy)
	if listLoadError != nil {
		return nil, listLoadError
	}
	declarations = append(declarations, listDeclarations...)

	directoryEntries, directoryReadError := os.ReadDir(partsDirectoryPath)
	if directoryReadError != nil {
		if errors.Is(directoryReadError, fs.ErrNotExist) {
			return declarations, nil
		}
		return nil, fmt.Errorf(partsDirectoryErrorTemplateConstant, partsDirectoryPath, directoryReadError)
	}
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() {
			continue
		}
		entryFormat, formatKnown := declarationFormatForName(directoryEntry.Name())
		if !formatKnown {
			continue
		}
		entryPath := filepath.Join(partsDirectoryPath, directoryEntry.Name())
		entryDeclarations, entryLoadError := loadDeclarationFile(entryPath, entryFormat)
		if entryLoadError != nil {
			return nil, entryLoadError
		}
		declarations = append(declarations, entryDeclarations...)
	}
	return declarations, nil
}

func declarationFormatForName(fileName string) (DeclarationFormat, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case legacyFileExtensionConstant:
		return FormatLegacy, true
	case structuredFileExtensionConstant:
		return FormatStructured, true
	default:
		return "", false
	}
}

func loadDeclarationFile(filePath string, fileFormat DeclarationFormat) ([]RepositoryDeclaration, error) {
	fileContent, readError := os.ReadFile(filePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(listFileReadErrorTemplateConstant, filePath, readError)
	}
	if fileFormat == FormatStructured {
		return ParseStructuredContent(filePath, string(fileContent)), nil
	}
	return ParseLegacyContent(filePath, string(fileContent)), nil
}
