package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document formats understood by Decode
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath derives the document format from a file extension
func FormatFromPath(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// Decode parses a service description. An empty format is sniffed from the
// content: documents starting with '{' are JSON, anything else YAML.
func Decode(data []byte, format string) (*ServiceDescription, error) {
	if format == "" {
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatJSON
		} else {
			format = FormatYAML
		}
	}

	var desc ServiceDescription
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, fmt.Errorf("failed to decode json metadata: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &desc); err != nil {
			return nil, fmt.Errorf("failed to decode yaml metadata: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported metadata format %q", format)
	}

	return &desc, nil
}

// Encode serializes a description as JSON
func Encode(desc *ServiceDescription) ([]byte, error) {
	data, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}
