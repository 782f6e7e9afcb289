package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode renders a projection (or a slice of them) in the given wire format.
func Encode(v any, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(v)
	case FormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func ContentType(format string) string {
	if format == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
