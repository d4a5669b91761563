// Package parser reads configuration documents.
package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YamlConfigParser decodes YAML configuration into a generic map.
type YamlConfigParser struct{}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser() *YamlConfigParser {
	return &YamlConfigParser{}
}

// Parse unmarshals YAML bytes into a map. An empty document yields an empty map.
func (p *YamlConfigParser) Parse(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return out, nil
}
