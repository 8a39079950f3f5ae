package config

import (
	"errors"
	"os"

	"github.com/defistate/defistate-amm-go/logging"
	"gopkg.in/yaml.v3"
)

const DefaultBufferSize = 100

type ClientConfig struct {
	StateStreamURL string         `yaml:"state_stream_url"`
	BufferSize     uint           `yaml:"buffer_size"`
	Log            logging.Config `yaml:"log"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a ClientConfig struct.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.StateStreamURL == "" {
		return nil, errors.New("config: state_stream_url is required")
	}

	return &cfg, nil
}
