package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// fileConfig holds optional defaults loaded from the user's config file,
// so flags only need to override what differs from the usual setup.
type fileConfig struct {
	Server      string `toml:"server"`
	ModelSize   string `toml:"model_size"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	BeamSize    int    `toml:"beam_size"`
	Language    string `toml:"language"`
}

func configPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "asrctl", "config.toml"), nil
}

// loadFileConfig reads the config file when present; a missing file is not
// an error, the built-in defaults apply.
func loadFileConfig() (fileConfig, error) {
	var cfg fileConfig

	path, err := configPath()
	if err != nil {
		return cfg, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// apply fills unset flag values from the config file, then from the built-in
// defaults.
func (c fileConfig) apply(server, model, device, compute, language *string, beam *int) {
	if *server == "" {
		if c.Server != "" {
			*server = c.Server
		} else {
			*server = "http://localhost:8000"
		}
	}
	if *model == "" {
		if c.ModelSize != "" {
			*model = c.ModelSize
		} else {
			*model = "medium"
		}
	}
	if *device == "" {
		if c.Device != "" {
			*device = c.Device
		} else {
			*device = "cuda"
		}
	}
	if *compute == "" {
		if c.ComputeType != "" {
			*compute = c.ComputeType
		} else {
			*compute = "float16"
		}
	}
	if *language == "" {
		if c.Language != "" {
			*language = c.Language
		} else {
			*language = "zh"
		}
	}
	if *beam == 0 {
		if c.BeamSize != 0 {
			*beam = c.BeamSize
		} else {
			*beam = 5
		}
	}
}
