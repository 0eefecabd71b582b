package core

import (
	"fmt"
	"os"
	"path/filepath"

	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

// ConfigModule provides the layered YAML configuration into an Fx application.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

const (
	_configDirEnvVar  = "DOCS_LSP_CONFIG_DIR"
	_defaultConfigDir = "src/docslsp/config"
	_metaFileName     = "meta.yaml"
)

type Config struct {
	provider uber_config.Provider
}

func (c Config) Get(path string) uber_config.Value {
	return c.provider.Get(path)
}

func (c Config) Name() string {
	return "config"
}

// NewConfig loads the daemon configuration.
// meta.yaml lists the candidate files, later files override earlier ones,
// and files listed but absent on disk are skipped.
func NewConfig() (uber_config.Provider, error) {
	configDir := getConfigDir()

	metaProvider, err := uber_config.NewYAML(
		uber_config.File(filepath.Join(configDir, _metaFileName)),
		uber_config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var configFiles []string
	if err := metaProvider.Get("files").Populate(&configFiles); err != nil {
		return nil, fmt.Errorf("failed to read files list from meta.yaml: %w", err)
	}

	var options []uber_config.YAMLOption
	for _, file := range configFiles {
		fullPath := filepath.Join(configDir, file)
		if _, err := os.Stat(fullPath); err == nil {
			options = append(options, uber_config.File(fullPath))
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s", configDir)
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

// getConfigDir returns the configuration directory, which defaults to a path
// relative to the workspace root when the environment variable is unset.
func getConfigDir() string {
	if configDir := os.Getenv(_configDirEnvVar); configDir != "" {
		return configDir
	}
	return _defaultConfigDir
}
