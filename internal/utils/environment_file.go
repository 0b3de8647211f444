package utils

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const environmentFileLoadErrorTemplateConstant = "failed to load environment file %s: %w"

// LoadEnvironmentFileIfPresent loads variables from the given file into the process environment.
// A missing file is not an error; the boolean reports whether the file was loaded.
func LoadEnvironmentFileIfPresent(environmentFilePath string) (bool, error) {
	if len(environmentFilePath) == 0 {
		return false, nil
	}

	loadError := godotenv.Load(environmentFilePath)
	if loadError != nil {
		if errors.Is(loadError, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFilePath, loadError)
	}

	return true, nil
}
