package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

// baseDocument holds the sections every scaffold starts from
func baseDocument() map[string]interface{} {
	return map[string]interface{}{
		"adhoc": nil,
		"attack": map[string]interface{}{
			"kwargs":    map[string]interface{}{},
			"use_label": false,
		},
		"dataset": map[string]interface{}{},
		"defense": nil,
		"metric": map[string]interface{}{
			"means":                    true,
			"record_metric_per_sample": false,
		},
		"model": map[string]interface{}{
			"fit":            false,
			"model_kwargs":   map[string]interface{}{},
			"weights_file":   nil,
			"wrapper_kwargs": map[string]interface{}{},
		},
		"scenario": map[string]interface{}{
			"kwargs": map[string]interface{}{},
		},
		"sysconfig": map[string]interface{}{
			"output_dir":      nil,
			"output_filename": nil,
		},
	}
}

// Skeleton assembles answers keyed by dotted path into a validated scenario
func Skeleton(answers map[string]interface{}, opts scenario.ValidateOptions) (*scenario.ScenarioConfig, error) {
	doc := baseDocument()

	paths := make([]string, 0, len(answers))
	for path := range answers {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := setIn(doc, strings.Split(path, "."), answers[path]); err != nil {
			return nil, fmt.Errorf("answer %s: %w", path, err)
		}
	}

	root, err := scenario.FromInterface(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario: %w", err)
	}
	cfg, err := scenario.Validate(root, opts)
	if err != nil {
		return nil, fmt.Errorf("scaffolded scenario is invalid: %w", err)
	}
	return cfg, nil
}

func setIn(doc map[string]interface{}, parts []string, value interface{}) error {
	for i, key := range parts {
		if key == "" {
			return fmt.Errorf("empty path segment")
		}
		if i == len(parts)-1 {
			doc[key] = value
			return nil
		}
		next, ok := doc[key].(map[string]interface{})
		if !ok {
			if doc[key] != nil {
				return fmt.Errorf("%s is not a mapping", key)
			}
			next = map[string]interface{}{}
			doc[key] = next
		}
		doc = next
	}
	return nil
}
