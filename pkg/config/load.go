package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It starts from Default, applies the file on top, fills remaining zero
// values, and validates the result. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. An empty path skips the file so the relay
// can be configured from the environment alone.
//
// The loading sequence is:
// 1. Start from default values
// 2. Apply the YAML file, if any
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	envErrs := applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	err = Validate(cfg)
	if len(envErrs) > 0 {
		var verr ValidationError
		if errors.As(err, &verr) {
			envErrs = append(envErrs, verr.Errors...)
		}
		err = ValidationError{Errors: envErrs}
	}
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none are
// named) into the process environment. Variables already set are not
// overridden and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}

	return nil
}

func load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	return cfg, nil
}
