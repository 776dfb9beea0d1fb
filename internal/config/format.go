package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

// coerceToJSONBytes converts YAML/TOML config to JSON bytes so we can re-use the strict
// JSON decoder (DisallowUnknownFields) for every format.
//
// Returns (jsonBytes, format, err).
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	format := formatForPath(path)

	var v any
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, format, fmt.Errorf("yaml unmarshal: %w", err)
		}
	case formatTOML:
		m := map[string]any{}
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, format, fmt.Errorf("toml unmarshal: %w", err)
		}
		v = m
	default:
		return data, format, nil
	}

	v = normalizeTree(v)
	if v == nil {
		// Empty document; let the JSON decoder report it.
		v = map[string]any{}
	}

	j, err := json.Marshal(v)
	if err != nil {
		return nil, format, fmt.Errorf("%s->json marshal: %w", format, err)
	}
	return j, format, nil
}

// encodeForPath renders cfg in the format implied by path's extension.
func encodeForPath(path string, cfg *Config) ([]byte, error) {
	jb, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	format := formatForPath(path)
	if format == formatJSON {
		return append(jb, '\n'), nil
	}

	// Go through a generic tree so YAML/TOML keys match the JSON tags.
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	tree = normalizeTree(tree)

	switch format {
	case formatYAML:
		return yaml.Marshal(tree)
	case formatTOML:
		return toml.Marshal(tree)
	}
	return nil, fmt.Errorf("unsupported config format %q", format)
}

// normalizeTree ensures all map keys are strings and json.Number values become
// int64/float64 so the result can be marshaled by any of the codecs.
func normalizeTree(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeTree(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeTree(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeTree(x[i])
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return in
	}
}
