package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ActionConfig declares an external command usable as a call action.
type ActionConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile is the layout of an actions file.
type ConfigFile struct {
	Actions []ActionConfig `yaml:"actions" json:"actions"`
}

// LoadActions reads an actions file (YAML, or JSON as a YAML subset) and
// returns the actions by name. A missing file yields no actions.
func LoadActions(path string) (map[string]ActionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]ActionConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse actions file %s: %w", path, err)
	}

	actions := make(map[string]ActionConfig, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if a.Name == "" || a.Command == "" {
			continue
		}
		actions[a.Name] = a
	}
	return actions, nil
}
