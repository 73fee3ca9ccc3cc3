package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// envOverrides maps environment variables to document paths
var envOverrides = []struct {
	env  string
	path string
}{
	{"SCENARIO_DOCKER_IMAGE", "sysconfig.docker_image"},
	{"SCENARIO_GPUS", "sysconfig.gpus"},
	{"SCENARIO_USE_GPU", "sysconfig.use_gpu"},
	{"SCENARIO_OUTPUT_DIR", "sysconfig.output_dir"},
	{"SCENARIO_OUTPUT_FILENAME", "sysconfig.output_filename"},
	{"SCENARIO_BATCH_SIZE", "dataset.batch_size"},
}

// WithOverrides applies dotted-path overrides (e.g. "attack.kwargs.eps") to a
// copy of the document and validates the result. The receiver is unchanged.
func (c *ScenarioConfig) WithOverrides(overrides map[string]interface{}) (*ScenarioConfig, error) {
	if len(overrides) == 0 {
		return c, nil
	}

	paths := make([]string, 0, len(overrides))
	for path := range overrides {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	root := c.raw
	for _, path := range paths {
		value, err := FromInterface(overrides[path])
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", path, err)
		}
		root, err = setPath(root, strings.Split(path, "."), value)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", path, err)
		}
	}

	cfg, err := Validate(root, c.opts)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}
	return cfg, nil
}

func setPath(node Value, parts []string, value Value) (Value, error) {
	if len(parts) == 0 {
		return value, nil
	}
	key := parts[0]
	if key == "" {
		return Value{}, errors.New("empty path segment")
	}
	if !node.IsNull() && node.Kind() != MapKind {
		return Value{}, fmt.Errorf("cannot set %s inside a %s", key, node.Kind())
	}
	child, _ := node.Get(key)
	updated, err := setPath(child, parts[1:], value)
	if err != nil {
		return Value{}, err
	}
	return node.With(key, updated), nil
}

// ParseOverride splits "path=value". The value is read as a YAML scalar or
// flow collection, so "0.3", "true", "null" and "[a, b]" keep their types.
func ParseOverride(s string) (string, Value, error) {
	path, raw, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", Value{}, fmt.Errorf("override %q must have the form path=value", s)
	}
	value, err := parseScalar(raw)
	if err != nil {
		return "", Value{}, fmt.Errorf("override %s: %w", path, err)
	}
	return path, value, nil
}

func parseScalar(raw string) (Value, error) {
	if strings.TrimSpace(raw) == "" {
		return String(""), nil
	}
	return Parse([]byte(raw), FormatYAML)
}

// EnvironmentOverrides collects overrides from SCENARIO_* environment variables
func EnvironmentOverrides() (map[string]interface{}, error) {
	overrides := make(map[string]interface{})
	for _, o := range envOverrides {
		raw := os.Getenv(o.env)
		if raw == "" {
			continue
		}
		value, err := parseScalar(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.env, err)
		}
		overrides[o.path] = value
	}
	return overrides, nil
}
