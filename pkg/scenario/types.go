package scenario

import (
	"fmt"
	"strconv"
)

// ComponentSpec references an externally implemented component by module and
// symbol name. Kwargs is always a mapping.
type ComponentSpec struct {
	Module string
	Name   string
	Kwargs Value
}

// Ref returns "module.name"
func (c ComponentSpec) Ref() string {
	return c.Module + "." + c.Name
}

// Knowledge is the adversary's access level to the model
type Knowledge string

const (
	KnowledgeWhite Knowledge = "white"
	KnowledgeBlack Knowledge = "black"
	KnowledgeGrey  Knowledge = "grey"
)

var validKnowledge = []string{string(KnowledgeWhite), string(KnowledgeBlack), string(KnowledgeGrey)}

// AttackTypePreloaded marks attacks served from a pre-generated adversarial dataset
const AttackTypePreloaded = "preloaded"

// AttackSpec describes the adversarial attack
type AttackSpec struct {
	ComponentSpec
	Knowledge      Knowledge
	Type           string
	Targeted       bool
	UseLabel       bool
	TargetedLabels Value
}

// Eps returns kwargs.eps when it is numeric
func (a AttackSpec) Eps() (float64, bool) {
	v, ok := a.Kwargs.Get("eps")
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// EpsStep returns kwargs.eps_step when it is numeric
func (a AttackSpec) EpsStep() (float64, bool) {
	v, ok := a.Kwargs.Get("eps_step")
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// DatasetSpec describes a dataset loader
type DatasetSpec struct {
	ComponentSpec
	BatchSize  int
	Framework  string // "numpy", "tf", "pytorch" or empty
	EvalSplit  string
	TrainSplit string
}

var validFrameworks = []string{"numpy", "tf", "pytorch"}

// DefenseType selects how the evaluation engine applies a defense
type DefenseType string

const (
	DefensePreprocessor  DefenseType = "Preprocessor"
	DefensePostprocessor DefenseType = "Postprocessor"
	DefenseTrainer       DefenseType = "Trainer"
	DefenseTransform     DefenseType = "Transform"
)

var validDefenseTypes = []string{
	string(DefensePreprocessor),
	string(DefensePostprocessor),
	string(DefenseTrainer),
	string(DefenseTransform),
}

// DefenseSpec describes an optional defense
type DefenseSpec struct {
	ComponentSpec
	Type DefenseType
}

// ModelSpec describes the model under evaluation. Its Kwargs come from model_kwargs.
type ModelSpec struct {
	ComponentSpec
	Fit           bool
	FitKwargs     Value
	NbEpochs      int
	FitBatchSize  int // 0 when the dataset batch size is reused
	WeightsFile   string
	WrapperKwargs Value
	PredictKwargs Value
}

// MetricSpec selects the metrics recorded during evaluation
type MetricSpec struct {
	Tasks                 []string
	Perturbation          string
	Means                 bool
	RecordMetricPerSample bool
	ProfilerType          string // "", "basic" or "deterministic"
}

var validProfilers = []string{"basic", "deterministic"}

// ScenarioTaskSpec names the evaluation scenario implementation
type ScenarioTaskSpec struct {
	ComponentSpec
	ExportSamples int
}

// GPUMode is the GPU selection policy
type GPUMode int

const (
	GPUUnset GPUMode = iota
	GPUAll
	GPUCount
)

// GPUSelection is sysconfig.gpus: unset, "all", or a device count
type GPUSelection struct {
	Mode  GPUMode
	Count int
}

func (g GPUSelection) String() string {
	switch g.Mode {
	case GPUAll:
		return "all"
	case GPUCount:
		return strconv.Itoa(g.Count)
	default:
		return "unset"
	}
}

// SysConfig holds runtime hints; every field is optional
type SysConfig struct {
	DockerImage        string
	ExternalGithubRepo string
	GPUs               GPUSelection
	OutputDir          string
	OutputFilename     string
	UseGPU             bool
	LocalRepoPath      string
}

// AudioChannel is the multipath channel configured under adhoc.audio_channel
type AudioChannel struct {
	Delay       int
	Attenuation float64
}

// Identity reports whether the channel leaves audio unchanged
func (a AudioChannel) Identity() bool {
	return a.Delay == 0 || a.Attenuation == 0
}

func (a AudioChannel) String() string {
	return fmt.Sprintf("delay=%d attenuation=%g", a.Delay, a.Attenuation)
}
