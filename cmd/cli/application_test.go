package cli_test

import (
	"bytes"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/pveup/cmd/cli"
	"github.com/temirov/pveup/internal/upgrade"
)

const (
	expectedDefaultLogLevelConstant  = "info"
	expectedDefaultLogFormatConstant = "structured"
	upgradeSectionKeyConstant        = "upgrade"
	mapstructureTagNameConstant      = "mapstructure"
)

func readEmbeddedConfiguration(testingInstance testing.TB) *viper.Viper {
	testingInstance.Helper()

	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)

	readError := viperInstance.ReadConfig(bytes.NewReader(configurationData))
	require.NoError(testingInstance, readError)

	return viperInstance
}

func decodeEmbeddedApplicationConfiguration(testingInstance testing.TB) cli.ApplicationConfiguration {
	testingInstance.Helper()

	viperInstance := readEmbeddedConfiguration(testingInstance)

	var configuration cli.ApplicationConfiguration
	unmarshalError := viperInstance.Unmarshal(&configuration)
	require.NoError(testingInstance, unmarshalError)

	return configuration
}

func decodeUpgradeSection(testingInstance testing.TB, sectionValues map[string]any) upgrade.Configuration {
	testingInstance.Helper()

	var configuration upgrade.Configuration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: mapstructureTagNameConstant, Result: &configuration})
	require.NoError(testingInstance, decoderError)

	decodeError := decoder.Decode(sectionValues)
	require.NoError(testingInstance, decodeError)

	return configuration
}

func TestEmbeddedDefaultsProvideLoggingConfiguration(testInstance *testing.T) {
	configuration := decodeEmbeddedApplicationConfiguration(testInstance)

	require.Equal(testInstance, expectedDefaultLogLevelConstant, configuration.Common.LogLevel)
	require.Equal(testInstance, expectedDefaultLogFormatConstant, configuration.Common.LogFormat)
}

func TestEmbeddedDefaultsMatchConvergenceDefaults(testInstance *testing.T) {
	viperInstance := readEmbeddedConfiguration(testInstance)

	upgradeSection, sectionIsMap := viperInstance.Get(upgradeSectionKeyConstant).(map[string]any)
	require.True(testInstance, sectionIsMap)

	decodedConfiguration := decodeUpgradeSection(testInstance, upgradeSection)
	require.Equal(testInstance, upgrade.DefaultConfiguration(), decodedConfiguration)
}

func TestEmbeddedDefaultsAreCopies(testInstance *testing.T) {
	firstCopy, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, firstCopy)

	firstCopy[0] = '#'

	secondCopy, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstCopy[0], secondCopy[0])
}
