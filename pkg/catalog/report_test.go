package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reportFixture(t *testing.T) *Report {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "mnist.json"), validJSON)
	writeFile(t, filepath.Join(root, "cifar.yaml"), validYAML)
	writeFile(t, filepath.Join(root, "broken.json"), `{"attack": `)
	writeFile(t, filepath.Join(root, "invalid.json"), strings.Replace(validJSON, `"knowledge": "white"`, `"knowledge": "purple"`, 1))

	entries, err := Discover(root, quietLoader())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return NewReport(root, entries)
}

func TestNewReport(t *testing.T) {
	r := reportFixture(t)

	if r.Metadata.ReportID == "" {
		t.Error("Expected a report ID")
	}
	if r.Summary.Total != 4 || r.Summary.Valid != 2 || r.Summary.Failed != 2 {
		t.Errorf("Expected 4 total, 2 valid, 2 failed, got %+v", r.Summary)
	}
	if r.Summary.ByAttack["art.attacks.evasion.FastGradientMethod"] != 1 {
		t.Errorf("Expected one FastGradientMethod scenario, got %v", r.Summary.ByAttack)
	}
	if r.Summary.ByTask["armory.scenarios.image_classification.ImageClassificationTask"] != 2 {
		t.Errorf("Expected two image classification scenarios, got %v", r.Summary.ByTask)
	}

	stages := make(map[string]string)
	for _, s := range r.Scenarios {
		stages[filepath.Base(s.Path)] = s.Stage
		switch filepath.Base(s.Path) {
		case "broken.json":
			if s.Message == "" {
				t.Error("Expected syntax error message for broken.json")
			}
		case "invalid.json":
			if len(s.Errors) != 1 || s.Errors[0].Path != "attack.knowledge" {
				t.Errorf("Expected attack.knowledge error, got %+v", s.Errors)
			}
		case "mnist.json":
			if s.Digest == "" || s.Name != "MNIST FGM" {
				t.Errorf("Expected digest and description, got %+v", s)
			}
		}
	}
	if stages["broken.json"] != "parsed" || stages["invalid.json"] != "validated" || stages["mnist.json"] != "ready" {
		t.Errorf("Unexpected stages: %v", stages)
	}
}

func TestReportSaveJSON(t *testing.T) {
	r := reportFixture(t)
	path := filepath.Join(t.TempDir(), "reports", "catalog.json")

	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if loaded.Metadata.ReportID != r.Metadata.ReportID || loaded.Summary.Failed != 2 {
		t.Errorf("Expected saved report to match, got %+v", loaded.Summary)
	}
}

func TestReportMarkdown(t *testing.T) {
	r := reportFixture(t)
	md := r.Markdown()

	for _, want := range []string{
		"# Scenario Catalog Report",
		"- **Failed:** 2",
		"failed at validated",
		"- **Error** `attack.knowledge`",
		"- art.attacks.evasion.HopSkipJump: 1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q", want)
		}
	}

	path := filepath.Join(t.TempDir(), "catalog.md")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Save(filepath.Join(t.TempDir(), "catalog.html")); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}
