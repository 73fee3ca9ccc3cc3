package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

var (
	cifarFile = filepath.Join("..", "..", "..", "pkg", "scenario", "testdata", "pgd_cifar10.json")
	asrFile   = filepath.Join("..", "..", "..", "pkg", "scenario", "testdata", "asr_rir_defense.yaml")
)

// execute runs the CLI with a clean HOME and returns stdout and stderr
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENARIO_SKIP_PROMPTS", "true")

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))

	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func brokenScenario(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(cifarFile)
	if err != nil {
		t.Fatal(err)
	}
	doc := strings.Replace(string(data), `"knowledge": "white"`, `"knowledge": "purple"`, 1)
	return doc
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "", "validate", cifarFile, asrFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Count(out, "✅") != 2 {
		t.Errorf("Expected two successes, got:\n%s", out)
	}
	if !strings.Contains(out, "adhoc.audio_channel") {
		t.Errorf("Expected the ASR identity warning, got:\n%s", out)
	}
}

func TestValidateCommandFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.json", brokenScenario(t))

	out, _, err := execute(t, "", "validate", cifarFile, path)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 scenarios failed validation") {
		t.Fatalf("Expected one failure, got %v", err)
	}
	if !strings.Contains(out, "attack.knowledge") || !strings.Contains(out, "(invalid)") {
		t.Errorf("Expected the knowledge issue, got:\n%s", out)
	}
}

func TestValidateCommandSyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", "{\n  \"attack\": \n}")

	out, _, err := execute(t, "", "validate", path)
	if err == nil {
		t.Fatal("Expected failure")
	}
	if !strings.Contains(out, "(syntax error)") || !strings.Contains(out, "line ") {
		t.Errorf("Expected a located syntax error, got:\n%s", out)
	}
}

func TestValidateCommandOverrides(t *testing.T) {
	if _, _, err := execute(t, "", "validate", "--set", "attack.knowledge=purple", cifarFile); err == nil {
		t.Error("Expected override to invalidate the scenario")
	}
	if _, _, err := execute(t, "", "validate", "--set", "sysconfig.gpus=2", cifarFile); err != nil {
		t.Errorf("Expected valid override, got %v", err)
	}
	if _, _, err := execute(t, "", "validate", "--set", "novalue", cifarFile); err == nil {
		t.Error("Expected malformed override to fail")
	}
}

func TestValidateCommandEnvOverrides(t *testing.T) {
	t.Setenv("SCENARIO_BATCH_SIZE", "0")

	if _, _, err := execute(t, "", "validate", cifarFile); err != nil {
		t.Errorf("Expected environment to be ignored without --env, got %v", err)
	}
	if _, _, err := execute(t, "", "validate", "--env", cifarFile); err == nil {
		t.Error("Expected batch_size 0 from the environment to fail")
	}
}

func TestValidateCommandStdin(t *testing.T) {
	data, err := os.ReadFile(asrFile)
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, string(data), "validate", "--format", "yaml", "-")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "✅ -") {
		t.Errorf("Expected stdin success, got:\n%s", out)
	}
}

func TestValidateCommandStrict(t *testing.T) {
	data, err := os.ReadFile(cifarFile)
	if err != nil {
		t.Fatal(err)
	}
	doc := strings.Replace(string(data), `"adhoc": null,`, `"adhoc": null, "extra": 1,`, 1)
	path := writeFile(t, t.TempDir(), "extra.json", doc)

	out, _, err := execute(t, "", "validate", path)
	if err != nil {
		t.Fatalf("Expected unknown field to be a warning, got %v", err)
	}
	if !strings.Contains(out, "warning extra") {
		t.Errorf("Expected unknown field warning, got:\n%s", out)
	}

	if _, _, err := execute(t, "", "--strict", "validate", path); err == nil {
		t.Error("Expected strict mode to reject the unknown field")
	}
}

func TestValidateRecordAndHistory(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	broken := writeFile(t, dir, "broken.json", brokenScenario(t))

	if _, _, err := execute(t, "", "--audit-db", db, "validate", cifarFile); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, err := execute(t, "", "--audit-db", db, "validate", broken); err == nil {
		t.Fatal("Expected failure")
	}

	out, _, err := execute(t, "", "--audit-db", db, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "pgd_cifar10.json") || !strings.Contains(out, "broken.json") {
		t.Errorf("Expected both loads, got:\n%s", out)
	}
	if strings.Index(out, "broken.json") > strings.Index(out, "pgd_cifar10.json") {
		t.Errorf("Expected newest load first, got:\n%s", out)
	}

	out, _, err = execute(t, "", "--audit-db", db, "history", "--failed")
	if err != nil {
		t.Fatalf("history --failed: %v", err)
	}
	if strings.Contains(out, "pgd_cifar10.json") || !strings.Contains(out, "validated") {
		t.Errorf("Expected only the failed load, got:\n%s", out)
	}

	if _, _, err := execute(t, "", "--audit-db", db, "history", "prune", "--keep", "1"); err != nil {
		t.Fatalf("history prune: %v", err)
	}

	out, _, err = execute(t, "", "--audit-db", db, "history", "--limit", "0")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Contains(out, "pgd_cifar10.json") {
		t.Errorf("Expected the older load to be pruned, got:\n%s", out)
	}
}

func TestHistoryEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	out, _, err := execute(t, "", "--audit-db", db, "history")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "No loads recorded") {
		t.Errorf("Expected empty history message, got:\n%s", out)
	}

	if _, _, err := execute(t, "", "--audit-db", db, "history", "show", "missing"); err == nil {
		t.Error("Expected error for unknown record")
	}
}

func TestShowCommand(t *testing.T) {
	cfg, err := scenario.NewLoader().LoadFile(cifarFile)
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "", "show", cifarFile)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "CIFAR-10 image classification") || !strings.Contains(out, cfg.Digest()) {
		t.Errorf("Expected summary with digest, got:\n%s", out)
	}

	out, _, err = execute(t, "", "show", "-o", "digest", cifarFile)
	if err != nil {
		t.Fatalf("show digest: %v", err)
	}
	if strings.TrimSpace(out) != cfg.Digest() {
		t.Errorf("Expected %s, got %s", cfg.Digest(), out)
	}

	out, _, err = execute(t, "", "show", "-o", "yaml", cifarFile)
	if err != nil {
		t.Fatalf("show yaml: %v", err)
	}
	again, err := scenario.LoadBytes([]byte(out), scenario.FormatYAML)
	if err != nil {
		t.Fatalf("Expected YAML output to load, got %v", err)
	}
	if !cfg.Equal(again) {
		t.Error("Expected YAML output to describe the same scenario")
	}

	out, _, err = execute(t, "", "show", "-o", "json", "--set", "dataset.batch_size=4", cifarFile)
	if err != nil {
		t.Fatalf("show json: %v", err)
	}
	over, err := scenario.LoadBytes([]byte(out), scenario.FormatJSON)
	if err != nil {
		t.Fatalf("Expected JSON output to load, got %v", err)
	}
	if over.Dataset().BatchSize != 4 {
		t.Errorf("Expected overridden batch size 4, got %d", over.Dataset().BatchSize)
	}

	if _, _, err := execute(t, "", "show", "-o", "xml", cifarFile); err == nil {
		t.Error("Expected error for unknown output format")
	}
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(cifarFile)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "good.json", string(data))
	writeFile(t, dir, "broken.json", brokenScenario(t))
	writeFile(t, dir, "notes.txt", "ignored")

	report := filepath.Join(t.TempDir(), "catalog.md")
	out, _, err := execute(t, "", "list", "--errors", "--report", report, dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "2 scenarios, 1 failed") {
		t.Errorf("Expected summary line, got:\n%s", out)
	}
	if !strings.Contains(out, "ProjectedGradientDescent") || !strings.Contains(out, "attack.knowledge") {
		t.Errorf("Expected attack column and error details, got:\n%s", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("Expected non-scenario files to be skipped, got:\n%s", out)
	}

	md, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("Expected report file, got %v", err)
	}
	if !strings.Contains(string(md), "- **Failed:** 1") {
		t.Errorf("Expected failure count in report, got:\n%s", md)
	}
}

func TestListCommandMissingDir(t *testing.T) {
	if _, _, err := execute(t, "", "list", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.yaml")
	t.Setenv("SCENARIO_INIT_DATASET_NAME", "mnist")

	if _, _, err := execute(t, "", "init", "--no-prompt", path); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg, err := scenario.Load(path)
	if err != nil {
		t.Fatalf("Expected scaffold to load, got %v", err)
	}
	if cfg.Dataset().Name != "mnist" {
		t.Errorf("Expected dataset mnist, got %s", cfg.Dataset().Name)
	}

	if _, _, err := execute(t, "", "init", "--no-prompt", path); err == nil {
		t.Error("Expected refusal to overwrite")
	}
	if _, _, err := execute(t, "", "init", "--no-prompt", "--force", path); err != nil {
		t.Errorf("Expected --force to overwrite, got %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, _, err := execute(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got %v", err)
	}
	if !strings.Contains(out, "Strict: false") {
		t.Errorf("Expected default settings, got:\n%s", out)
	}

	if _, _, err := execute(t, "", "--config", path, "--strict", "--eps-step-policy", "error", "config", "init", "--no-prompt"); err != nil {
		t.Fatalf("config init: %v", err)
	}

	out, _, err = execute(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "Strict: true") || !strings.Contains(out, "Eps Step Policy: error") {
		t.Errorf("Expected saved settings, got:\n%s", out)
	}
	if !strings.Contains(out, "Loaded from "+path) {
		t.Errorf("Expected config file path, got:\n%s", out)
	}

	if _, _, err := execute(t, "", "--config", path, "config", "init", "--no-prompt"); err == nil {
		t.Error("Expected refusal to overwrite settings")
	}

	broken := writeFile(t, t.TempDir(), "config.yaml", "strict: [\n")
	if _, _, err := execute(t, "", "--config", broken, "config", "show"); err == nil {
		t.Error("Expected error for a malformed config file")
	}
}

func TestInvalidSettings(t *testing.T) {
	if _, _, err := execute(t, "", "--eps-step-policy", "sometimes", "validate", cifarFile); err == nil {
		t.Error("Expected error for invalid policy")
	}
}
