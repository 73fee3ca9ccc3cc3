package scenario

import (
	"errors"
	"os"
	"testing"

	"github.com/picogrid/scenario-config/pkg/logger"
)

const exampleJSON = "testdata/pgd_cifar10.json"
const exampleYAML = "testdata/asr_rir_defense.yaml"

// exampleDoc returns a fresh, mutable copy of the example document
func exampleDoc(t *testing.T) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to read example: %v", err)
	}
	root, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("Failed to parse example: %v", err)
	}
	doc, ok := root.Interface().(map[string]interface{})
	if !ok {
		t.Fatalf("Example root is not a mapping")
	}
	return doc
}

func sectionOf(doc map[string]interface{}, path ...string) map[string]interface{} {
	current := doc
	for _, key := range path {
		current = current[key].(map[string]interface{})
	}
	return current
}

// validateDoc validates doc and returns either the config or the validation error
func validateDoc(t *testing.T, doc map[string]interface{}, opts ValidateOptions) (*ScenarioConfig, *ValidationError) {
	t.Helper()
	root, err := FromInterface(doc)
	if err != nil {
		t.Fatalf("Failed to convert document: %v", err)
	}
	cfg, err := Validate(root, opts)
	if err == nil {
		return cfg, nil
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
	}
	return nil, verr
}

func hasIssue(issues []Issue, path string) bool {
	for _, issue := range issues {
		if issue.Path == path {
			return true
		}
	}
	return false
}

func quietLoader(opts ...Option) *Loader {
	return NewLoader(append([]Option{WithLogger(logger.Discard())}, opts...)...)
}
