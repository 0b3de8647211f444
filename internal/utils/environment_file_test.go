package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pveup/internal/utils"
)

const (
	testEnvironmentFileNameConstant     = "pveup.env"
	testEnvironmentFileContentConstant  = "TESTPVEUP_UPGRADE_UNATTENDED=yes\n"
	testEnvironmentFileVariableConstant = "TESTPVEUP_UPGRADE_UNATTENDED"
)

func TestLoadEnvironmentFileIfPresent(testInstance *testing.T) {
	tempDirectory := testInstance.TempDir()
	environmentFilePath := filepath.Join(tempDirectory, testEnvironmentFileNameConstant)

	writeError := os.WriteFile(environmentFilePath, []byte(testEnvironmentFileContentConstant), 0o600)
	require.NoError(testInstance, writeError)
	testInstance.Cleanup(func() {
		unsetError := os.Unsetenv(testEnvironmentFileVariableConstant)
		require.NoError(testInstance, unsetError)
	})

	loaded, loadError := utils.LoadEnvironmentFileIfPresent(environmentFilePath)
	require.NoError(testInstance, loadError)
	require.True(testInstance, loaded)
	require.Equal(testInstance, "yes", os.Getenv(testEnvironmentFileVariableConstant))
}

func TestLoadEnvironmentFileIfPresentToleratesMissingFile(testInstance *testing.T) {
	missingFilePath := filepath.Join(testInstance.TempDir(), testEnvironmentFileNameConstant)

	loaded, loadError := utils.LoadEnvironmentFileIfPresent(missingFilePath)
	require.NoError(testInstance, loadError)
	require.False(testInstance, loaded)
}

func TestLoadEnvironmentFileIfPresentSkipsEmptyPath(testInstance *testing.T) {
	loaded, loadError := utils.LoadEnvironmentFileIfPresent("")
	require.NoError(testInstance, loadError)
	require.False(testInstance, loaded)
}
