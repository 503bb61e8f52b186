package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	embeddedConfigurationReadErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationFileReadErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplateConstant       = "unable to decode configuration: %w"
	configurationTargetMissingMessageConstant      = "configuration target not provided"
	environmentKeySeparatorConstant                = "."
	environmentKeyReplacementConstant              = "_"
)

// LoadedConfiguration describes where the effective configuration came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers embedded defaults, configuration files, and environment overrides.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	embeddedType          string
}

// NewConfigurationLoader constructs a ConfigurationLoader for the provided file name, type, environment prefix, and search paths.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	copiedSearchPaths := make([]string, 0, len(searchPaths))
	for _, searchPath := range searchPaths {
		trimmedSearchPath := strings.TrimSpace(searchPath)
		if len(trimmedSearchPath) == 0 {
			continue
		}
		copiedSearchPaths = append(copiedSearchPaths, trimmedSearchPath)
	}

	return &ConfigurationLoader{
		configurationName: strings.TrimSpace(configurationName),
		configurationType: strings.TrimSpace(configurationType),
		environmentPrefix: strings.TrimSpace(environmentPrefix),
		searchPaths:       copiedSearchPaths,
	}
}

// SetEmbeddedConfiguration installs configuration content that is applied before any file is merged.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte(nil), configurationData...)
	loader.embeddedType = strings.TrimSpace(configurationType)
}

// LoadConfiguration merges embedded content, defaults, the configuration file, and environment overrides into target.
// Decode hooks, when supplied, replace viper's default duration and comma-separated slice hooks.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any, decodeHooks ...mapstructure.DecodeHookFunc) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, errors.New(configurationTargetMissingMessageConstant)
	}

	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		viperInstance.SetConfigType(embeddedType)
		if readError := viperInstance.ReadConfig(bytes.NewReader(loader.embeddedConfiguration)); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplateConstant, readError)
		}
	}

	resolvedFilePath := strings.TrimSpace(configurationFilePath)
	if len(resolvedFilePath) == 0 {
		resolvedFilePath = loader.locateConfigurationFile()
	}

	if len(resolvedFilePath) > 0 {
		viperInstance.SetConfigFile(resolvedFilePath)
		viperInstance.SetConfigType(loader.resolveFileType(resolvedFilePath))
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplateConstant, resolvedFilePath, mergeError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		viperInstance.SetEnvPrefix(loader.environmentPrefix)
	}
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorConstant, environmentKeyReplacementConstant))
	viperInstance.AutomaticEnv()

	var decoderOptions []viper.DecoderConfigOption
	if len(decodeHooks) > 0 {
		decoderOptions = append(decoderOptions, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(decodeHooks...)))
	}
	if decodeError := viperInstance.Unmarshal(target, decoderOptions...); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: resolvedFilePath}, nil
}

func (loader *ConfigurationLoader) locateConfigurationFile() string {
	fileName := loader.configurationName
	if len(loader.configurationType) > 0 {
		fileName = fileName + "." + loader.configurationType
	}

	for _, searchPath := range loader.searchPaths {
		candidatePath := filepath.Join(searchPath, fileName)
		fileInfo, statError := os.Stat(candidatePath)
		if statError != nil || fileInfo.IsDir() {
			continue
		}
		return candidatePath
	}

	return ""
}

func (loader *ConfigurationLoader) resolveFileType(configurationFilePath string) string {
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(configurationFilePath)), ".")
	switch extension {
	case "yaml", "yml", "json", "toml":
		return extension
	default:
		return loader.configurationType
	}
}
