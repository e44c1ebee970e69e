package otxfn

import (
	"github.com/arloliu/fuda"
)

// LoadConfig reads a YAML or JSON config file.
// Environment variables override file values; defaults and validation come
// from the struct tags.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := fuda.LoadFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseConfig is LoadConfig for in-memory YAML or JSON.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := fuda.LoadBytes(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
