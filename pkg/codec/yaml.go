package codec

import (
	"bytes"
	"fmt"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"gopkg.in/yaml.v3"
)

// YAML is the human-readable definition format.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(def *domain.Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("failed to marshal definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush definition: %w", err)
	}
	return buf.Bytes(), nil
}

func (YAML) Decode(data []byte, h Handlers) (*Result, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return decodeMap(raw, h)
}
