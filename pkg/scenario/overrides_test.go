package scenario

import (
	"errors"
	"strings"
	"testing"
)

func TestWithOverrides(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	updated, err := cfg.WithOverrides(map[string]interface{}{
		"attack.kwargs.eps":    0.3,
		"dataset.batch_size":   32,
		"sysconfig.output_dir": "/tmp/out",
		"adhoc.skip_benign":    true,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if eps, _ := updated.Attack().Eps(); eps != 0.3 {
		t.Errorf("Expected eps 0.3, got %v", eps)
	}
	if updated.Dataset().BatchSize != 32 {
		t.Errorf("Expected batch size 32, got %d", updated.Dataset().BatchSize)
	}
	if updated.SysConfig().OutputDir != "/tmp/out" {
		t.Errorf("Expected output dir '/tmp/out', got '%s'", updated.SysConfig().OutputDir)
	}
	if _, ok := updated.Adhoc().Get("skip_benign"); !ok {
		t.Error("Expected adhoc section to be created")
	}

	// The original is untouched
	if eps, _ := cfg.Attack().Eps(); eps != 0.2 {
		t.Errorf("Expected original eps 0.2, got %v", eps)
	}
	if cfg.Dataset().BatchSize != 16 {
		t.Errorf("Expected original batch size 16, got %d", cfg.Dataset().BatchSize)
	}
}

func TestWithOverridesRevalidates(t *testing.T) {
	cfg, err := quietLoader(WithEpsStepPolicy(EpsStepError)).LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	_, err = cfg.WithOverrides(map[string]interface{}{"dataset.batch_size": 0})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "after overrides") {
		t.Errorf("Expected error to mention overrides, got %v", err)
	}

	// Options from the original load carry over
	_, err = cfg.WithOverrides(map[string]interface{}{"attack.kwargs.eps_step": 0.5})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.HasPath("attack.kwargs.eps_step") {
		t.Errorf("Expected eps_step error under the error policy, got %v", err)
	}
}

func TestWithOverridesErrors(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if _, err := cfg.WithOverrides(map[string]interface{}{"attack.knowledge.level": 1}); err == nil {
		t.Error("Expected error when descending into a string")
	}
	if _, err := cfg.WithOverrides(map[string]interface{}{"attack..eps": 1}); err == nil {
		t.Error("Expected error for an empty path segment")
	}
	if _, err := cfg.WithOverrides(map[string]interface{}{"attack.kwargs.eps": struct{}{}}); err == nil {
		t.Error("Expected error for unsupported value")
	}

	same, err := cfg.WithOverrides(nil)
	if err != nil || same != cfg {
		t.Errorf("Expected empty overrides to return the receiver, got %v", err)
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		in   string
		path string
		want Value
	}{
		{"attack.kwargs.eps=0.3", "attack.kwargs.eps", Float(0.3)},
		{"dataset.batch_size=8", "dataset.batch_size", Int(8)},
		{"sysconfig.gpus=all", "sysconfig.gpus", String("all")},
		{"model.fit=false", "model.fit", Bool(false)},
		{"defense=null", "defense", Null()},
		{"metric.task=[a, b]", "metric.task", List(String("a"), String("b"))},
		{"sysconfig.output_dir=", "sysconfig.output_dir", String("")},
		{" scenario.name = ASR", "scenario.name", String("ASR")},
		{"sysconfig.docker_image=repo/img:1.0", "sysconfig.docker_image", String("repo/img:1.0")},
	}
	for _, tt := range tests {
		path, value, err := ParseOverride(tt.in)
		if err != nil {
			t.Errorf("ParseOverride(%q): unexpected error %v", tt.in, err)
			continue
		}
		if path != tt.path {
			t.Errorf("ParseOverride(%q): expected path %s, got %s", tt.in, tt.path, path)
		}
		if !value.Equal(tt.want) {
			t.Errorf("ParseOverride(%q): expected %s, got %s", tt.in, tt.want, value)
		}
	}

	for _, bad := range []string{"no-equals", "=1", "a=[unclosed"} {
		if _, _, err := ParseOverride(bad); err == nil {
			t.Errorf("ParseOverride(%q): expected error", bad)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCENARIO_GPUS", "2")
	t.Setenv("SCENARIO_DOCKER_IMAGE", "twosixarmory/tf2:0.13.0")
	t.Setenv("SCENARIO_USE_GPU", "true")

	overrides, err := EnvironmentOverrides()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(overrides) != 3 {
		t.Errorf("Expected 3 overrides, got %d: %v", len(overrides), overrides)
	}

	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	updated, err := cfg.WithOverrides(overrides)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sys := updated.SysConfig()
	if sys.GPUs.Mode != GPUCount || sys.GPUs.Count != 2 {
		t.Errorf("Expected 2 GPUs, got %s", sys.GPUs)
	}
	if sys.DockerImage != "twosixarmory/tf2:0.13.0" {
		t.Errorf("Expected docker image override, got '%s'", sys.DockerImage)
	}
	if !sys.UseGPU {
		t.Error("Expected use_gpu to be true")
	}
}

func TestEnvironmentOverridesInvalid(t *testing.T) {
	t.Setenv("SCENARIO_BATCH_SIZE", "[1, 2")
	if _, err := EnvironmentOverrides(); err == nil {
		t.Error("Expected error for malformed value")
	}
}
