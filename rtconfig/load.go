package rtconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func unmarshalByExt(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".json":
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("rtconfig: unsupported config extension for %q (want .yaml, .yml, or .json)", path)
	}
}

// LoadRuntimeConfig reads and parses a RuntimeConfig document, dispatching
// on the file extension.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rtconfig: read %q: %w", path, err)
	}
	var cfg RuntimeConfig
	if err := unmarshalByExt(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("rtconfig: parse %q: %w", path, err)
	}
	return &cfg, nil
}

// LoadJobConfig reads and parses a JobConfig document, dispatching on the
// file extension.
func LoadJobConfig(path string) (*JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rtconfig: read %q: %w", path, err)
	}
	var cfg JobConfig
	if err := unmarshalByExt(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("rtconfig: parse %q: %w", path, err)
	}
	return &cfg, nil
}
