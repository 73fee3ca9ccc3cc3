package scenario

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScenarioConfig is a validated, read-only scenario. Accessors return copies;
// overrides produce a new ScenarioConfig.
type ScenarioConfig struct {
	raw            Value
	description    string
	hasDescription bool
	adhoc          Value
	audioChannel   *AudioChannel
	attack         AttackSpec
	dataset        DatasetSpec
	datasetTest    *DatasetSpec
	defense        *DefenseSpec
	model          ModelSpec
	metric         MetricSpec
	scenario       ScenarioTaskSpec
	sysconfig      SysConfig
	warnings       []Issue
	opts           ValidateOptions
}

// Description returns _description when it is set
func (c *ScenarioConfig) Description() (string, bool) {
	return c.description, c.hasDescription
}

// Adhoc returns the free-form adhoc section (null when absent)
func (c *ScenarioConfig) Adhoc() Value { return c.adhoc }

// AudioChannel returns adhoc.audio_channel when configured
func (c *ScenarioConfig) AudioChannel() (AudioChannel, bool) {
	if c.audioChannel == nil {
		return AudioChannel{}, false
	}
	return *c.audioChannel, true
}

// Attack returns the attack section
func (c *ScenarioConfig) Attack() AttackSpec { return c.attack }

// Dataset returns the dataset section
func (c *ScenarioConfig) Dataset() DatasetSpec { return c.dataset }

// DatasetTest returns the optional dataset_test section
func (c *ScenarioConfig) DatasetTest() (DatasetSpec, bool) {
	if c.datasetTest == nil {
		return DatasetSpec{}, false
	}
	return *c.datasetTest, true
}

// Defense returns the optional defense section
func (c *ScenarioConfig) Defense() (DefenseSpec, bool) {
	if c.defense == nil {
		return DefenseSpec{}, false
	}
	return *c.defense, true
}

// Model returns the model section
func (c *ScenarioConfig) Model() ModelSpec { return c.model }

// Metric returns the metric section
func (c *ScenarioConfig) Metric() MetricSpec {
	m := c.metric
	m.Tasks = append([]string(nil), c.metric.Tasks...)
	return m
}

// Scenario returns the scenario task section
func (c *ScenarioConfig) Scenario() ScenarioTaskSpec { return c.scenario }

// SysConfig returns the runtime hints
func (c *ScenarioConfig) SysConfig() SysConfig { return c.sysconfig }

// Warnings returns advisory issues found during validation
func (c *ScenarioConfig) Warnings() []Issue {
	return append([]Issue(nil), c.warnings...)
}

// Raw returns the validated document tree
func (c *ScenarioConfig) Raw() Value { return c.raw }

// MarshalJSON emits the document as compact canonical JSON
func (c *ScenarioConfig) MarshalJSON() ([]byte, error) {
	return c.raw.MarshalJSON()
}

// JSON emits the document as indented canonical JSON with sorted keys
func (c *ScenarioConfig) JSON() ([]byte, error) {
	compact, err := c.raw.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("error marshaling scenario: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "    "); err != nil {
		return nil, fmt.Errorf("error indenting scenario: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// YAML emits the document as YAML
func (c *ScenarioConfig) YAML() ([]byte, error) {
	data, err := yaml.Marshal(toYAMLNode(c.raw))
	if err != nil {
		return nil, fmt.Errorf("error marshaling scenario: %w", err)
	}
	return data, nil
}

// Digest is the hex SHA-256 of the canonical JSON form
func (c *ScenarioConfig) Digest() string {
	data, err := c.raw.MarshalJSON()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two configurations describe the same document
func (c *ScenarioConfig) Equal(o *ScenarioConfig) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.raw.Equal(o.raw)
}

// String returns a human-readable summary of the configuration
func (c *ScenarioConfig) String() string {
	var b strings.Builder

	if desc, ok := c.Description(); ok {
		fmt.Fprintf(&b, "Scenario: %s\n", desc)
	} else {
		fmt.Fprintf(&b, "Scenario: %s\n", c.scenario.Ref())
	}

	fmt.Fprintf(&b, `
Task:
  Implementation: %s
  Export Samples: %d

Dataset:
  Loader: %s
  Batch Size: %d
  Framework: %s

Attack:
  Implementation: %s
  Knowledge: %s
  Targeted: %t
  Use Label: %t
`,
		c.scenario.Ref(),
		c.scenario.ExportSamples,
		c.dataset.Ref(),
		c.dataset.BatchSize,
		orDash(c.dataset.Framework),
		c.attack.Ref(),
		c.attack.Knowledge,
		c.attack.Targeted,
		c.attack.UseLabel,
	)
	if eps, ok := c.attack.Eps(); ok {
		fmt.Fprintf(&b, "  Eps: %g\n", eps)
	}
	if step, ok := c.attack.EpsStep(); ok {
		fmt.Fprintf(&b, "  Eps Step: %g\n", step)
	}

	if d, ok := c.Defense(); ok {
		fmt.Fprintf(&b, "\nDefense:\n  Implementation: %s\n  Type: %s\n", d.Ref(), orDash(string(d.Type)))
	} else {
		b.WriteString("\nDefense: none\n")
	}

	fmt.Fprintf(&b, `
Model:
  Implementation: %s
  Fit: %t
`, c.model.Ref(), c.model.Fit)
	if c.model.Fit {
		fmt.Fprintf(&b, "  Epochs: %d\n", c.model.NbEpochs)
	}
	if c.model.WeightsFile != "" {
		fmt.Fprintf(&b, "  Weights File: %s\n", c.model.WeightsFile)
	}

	fmt.Fprintf(&b, `
Metric:
  Tasks: %s
  Perturbation: %s
  Means: %t
  Record Per Sample: %t

System:
  Docker Image: %s
  GPUs: %s
  Use GPU: %t`,
		strings.Join(c.metric.Tasks, ", "),
		orDash(c.metric.Perturbation),
		c.metric.Means,
		c.metric.RecordMetricPerSample,
		orDash(c.sysconfig.DockerImage),
		c.sysconfig.GPUs,
		c.sysconfig.UseGPU,
	)

	if ch, ok := c.AudioChannel(); ok {
		fmt.Fprintf(&b, "\n\nAudio Channel: %s", ch)
	}
	return b.String()
}

// toYAMLNode keeps explicit tags so floats and strings survive a YAML round trip
func toYAMLNode(v Value) *yaml.Node {
	switch v.Kind() {
	case BoolKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case IntKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.i, 10)}
	case FloatKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(v.f)}
	case StringKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
	case ListKind:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.list {
			n.Content = append(n.Content, toYAMLNode(item))
		}
		return n
	case MapKind:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Keys() {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toYAMLNode(v.m[k]),
			)
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
