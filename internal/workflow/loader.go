package workflow

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseDefinitionYAML decodes a task graph from YAML/JSON bytes and returns
// the normalized result.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("workflow: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized()
}

// MarshalYAML renders the definition for display (jobprep -graph).
func MarshalYAML(def Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("workflow: encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("workflow: encode definition: %w", err)
	}
	return buf.Bytes(), nil
}
