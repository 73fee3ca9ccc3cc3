package scenario

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConfigJSONRoundTrip(t *testing.T) {
	loader := quietLoader()
	for _, path := range []string{exampleJSON, exampleYAML} {
		t.Run(path, func(t *testing.T) {
			cfg, err := loader.LoadFile(path)
			if err != nil {
				t.Fatalf("Failed to load: %v", err)
			}
			data, err := cfg.JSON()
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			again, err := loader.LoadBytes(data, FormatJSON)
			if err != nil {
				t.Fatalf("Failed to reload: %v\n%s", err, data)
			}
			if !cfg.Equal(again) {
				t.Errorf("Expected round trip to preserve the document\nbefore: %s\nafter:  %s", cfg.Raw(), again.Raw())
			}
			if cfg.Model().NbEpochs != again.Model().NbEpochs {
				t.Errorf("Expected %d epochs, got %d", cfg.Model().NbEpochs, again.Model().NbEpochs)
			}
		})
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	loader := quietLoader()
	for _, path := range []string{exampleJSON, exampleYAML} {
		t.Run(path, func(t *testing.T) {
			cfg, err := loader.LoadFile(path)
			if err != nil {
				t.Fatalf("Failed to load: %v", err)
			}
			data, err := cfg.YAML()
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			again, err := loader.LoadBytes(data, FormatYAML)
			if err != nil {
				t.Fatalf("Failed to reload: %v\n%s", err, data)
			}
			if !cfg.Equal(again) {
				t.Errorf("Expected YAML round trip to preserve the document\n%s", data)
			}
		})
	}
}

func TestConfigCanonicalJSON(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	first, _ := cfg.JSON()
	second, _ := cfg.JSON()
	if string(first) != string(second) {
		t.Error("Expected serialization to be deterministic")
	}
	if !strings.Contains(string(first), `"nb_epochs": 20000`) {
		t.Errorf("Expected integer epochs to stay integral:\n%s", first)
	}
	if !strings.HasSuffix(string(first), "}\n") {
		t.Error("Expected trailing newline")
	}
	if !json.Valid(first) {
		t.Error("Expected valid JSON")
	}
	// Keys are sorted
	if strings.Index(string(first), `"attack"`) > strings.Index(string(first), `"dataset"`) {
		t.Error("Expected attack before dataset")
	}

	compact, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(compact) != cfg.Raw().String() {
		t.Errorf("Expected MarshalJSON to match the canonical form")
	}
}

func TestConfigDigest(t *testing.T) {
	loader := quietLoader()
	a, err := loader.LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	b, err := loader.LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Error("Expected identical documents to share a digest")
	}
	if len(a.Digest()) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a.Digest()))
	}

	c, err := a.WithOverrides(map[string]interface{}{"attack.kwargs.eps": 0.3})
	if err != nil {
		t.Fatalf("Failed to override: %v", err)
	}
	if a.Digest() == c.Digest() {
		t.Error("Expected a changed document to change the digest")
	}
	if a.Equal(c) {
		t.Error("Expected changed document to compare unequal")
	}
}

func TestConfigAccessorsReturnCopies(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	metric := cfg.Metric()
	metric.Tasks[0] = "changed"
	if cfg.Metric().Tasks[0] != "categorical_accuracy" {
		t.Errorf("Expected tasks to be unaffected, got %v", cfg.Metric().Tasks)
	}

	attack := cfg.Attack()
	attack.Knowledge = KnowledgeBlack
	if cfg.Attack().Knowledge != KnowledgeWhite {
		t.Error("Expected attack section to be unaffected")
	}

	speech, err := quietLoader().LoadFile(exampleYAML)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	warnings := speech.Warnings()
	if len(warnings) == 0 {
		t.Fatal("Expected warnings")
	}
	warnings[0].Path = "changed"
	if speech.Warnings()[0].Path == "changed" {
		t.Error("Expected warnings to be unaffected")
	}
}

func TestConfigExampleSections(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleJSON)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if _, ok := cfg.Defense(); ok {
		t.Error("Expected null defense to be absent")
	}
	if _, ok := cfg.DatasetTest(); ok {
		t.Error("Expected dataset_test to be absent")
	}
	if cfg.Dataset().BatchSize != 16 {
		t.Errorf("Expected batch size 16, got %d", cfg.Dataset().BatchSize)
	}
	if cfg.Dataset().Ref() != "armory.data.datasets.cifar10" {
		t.Errorf("Expected dataset ref, got %s", cfg.Dataset().Ref())
	}
	if cfg.SysConfig().GPUs.Mode != GPUAll {
		t.Errorf("Expected all GPUs, got %s", cfg.SysConfig().GPUs)
	}
	if cfg.Model().Kwargs.Kind() != MapKind || cfg.Model().Kwargs.Len() != 0 {
		t.Errorf("Expected empty model kwargs, got %v", cfg.Model().Kwargs)
	}
	if step, ok := cfg.Attack().EpsStep(); !ok || step != 0.1 {
		t.Errorf("Expected eps_step 0.1, got %v", step)
	}
	if !cfg.Attack().UseLabel {
		t.Error("Expected use_label to be set")
	}

	summary := cfg.String()
	for _, want := range []string{"Knowledge: white", "Batch Size: 16", "Defense: none", "Epochs: 20000", "GPUs: all"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Expected summary to contain %q:\n%s", want, summary)
		}
	}
}

func TestConfigSpeechExample(t *testing.T) {
	cfg, err := quietLoader().LoadFile(exampleYAML)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	defense, ok := cfg.Defense()
	if !ok || defense.Type != DefensePreprocessor {
		t.Errorf("Expected a Preprocessor defense, got %+v (present=%t)", defense, ok)
	}
	channel, ok := cfg.AudioChannel()
	if !ok || channel.Attenuation != 0.5 {
		t.Errorf("Expected audio channel with attenuation 0.5, got %v", channel)
	}
	if !hasIssue(cfg.Warnings(), "adhoc.audio_channel") {
		t.Errorf("Expected identity channel warning, got %v", cfg.Warnings())
	}
	if !cfg.Attack().Targeted || cfg.Attack().TargetedLabels.Kind() != MapKind {
		t.Errorf("Expected targeted attack with labels, got %+v", cfg.Attack())
	}
	if cfg.SysConfig().GPUs.Mode != GPUCount || cfg.SysConfig().GPUs.Count != 0 {
		t.Errorf("Expected zero GPUs, got %s", cfg.SysConfig().GPUs)
	}
	if cfg.Scenario().ExportSamples != 10 {
		t.Errorf("Expected 10 export samples, got %d", cfg.Scenario().ExportSamples)
	}
	if cfg.Model().Fit {
		t.Error("Expected fit to be false")
	}
}
