package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"
)

// PayloadFormat is the encoding of a rule payload
type PayloadFormat string

const (
	FormatJSON PayloadFormat = "json"
	FormatYAML PayloadFormat = "yaml"
)

// FormatFromPath guesses the payload format from a file extension
func FormatFromPath(path string) PayloadFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeRuleDefinitions decodes an ordered rule payload
func DecodeRuleDefinitions(data []byte, format PayloadFormat) ([]RuleDefinition, error) {
	if format == FormatYAML {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse yaml payload: %w", err)
		}
		data = converted
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var defs []RuleDefinition
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("failed to parse rule payload: %w", err)
	}
	return defs, nil
}

// LoadRuleFile reads and decodes a rule payload file
func LoadRuleFile(path string) ([]RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeRuleDefinitions(data, FormatFromPath(path))
}

// EncodeRuleDefinitions writes defs as indented JSON
func EncodeRuleDefinitions(w io.Writer, defs []RuleDefinition) error {
	if defs == nil {
		defs = []RuleDefinition{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}

// RuleSchema returns the JSON schema of a rule payload
func RuleSchema() *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	schema := r.Reflect(&[]RuleDefinition{})

	schema.ID = "https://github.com/bnema/webview-content-blocker/rules.schema.json"
	schema.Title = "Content blocker rules"
	schema.Description = "Ordered list of trigger/action pairs evaluated for every intercepted request"
	return schema
}
