package scenario

import (
	"fmt"
	"strings"
)

// EpsStepPolicy decides how an attack step larger than its budget is reported
type EpsStepPolicy int

const (
	EpsStepWarn EpsStepPolicy = iota
	EpsStepError
)

func (p EpsStepPolicy) String() string {
	if p == EpsStepError {
		return "error"
	}
	return "warn"
}

// ParseEpsStepPolicy parses "warn" or "error"
func ParseEpsStepPolicy(s string) (EpsStepPolicy, error) {
	switch strings.ToLower(s) {
	case "", "warn", "warning":
		return EpsStepWarn, nil
	case "error":
		return EpsStepError, nil
	default:
		return EpsStepWarn, fmt.Errorf("unknown eps_step policy %q (expected warn or error)", s)
	}
}

// ValidateOptions tunes validation policy
type ValidateOptions struct {
	// Strict rejects unknown fields instead of warning about them
	Strict        bool
	EpsStep       EpsStepPolicy
	MetricTasks   *TagRegistry // nil uses DefaultMetricTasks
	Perturbations *TagRegistry // nil uses DefaultPerturbations
}

const asrScenarioName = "AutomaticSpeechRecognition"

var (
	rootFields = []string{
		"_description", "adhoc", "attack", "dataset", "dataset_test",
		"defense", "metric", "model", "scenario", "sysconfig",
	}
	attackFields = []string{
		"module", "name", "kwargs", "knowledge", "type", "targeted",
		"use_label", "targeted_labels", "generate_kwargs",
	}
	datasetFields  = []string{"module", "name", "kwargs", "batch_size", "framework", "eval_split", "train_split"}
	defenseFields  = []string{"module", "name", "kwargs", "type"}
	modelFields    = []string{"module", "name", "model_kwargs", "wrapper_kwargs", "fit", "fit_kwargs", "weights_file", "predict_kwargs"}
	metricFields   = []string{"task", "perturbation", "means", "record_metric_per_sample", "profiler_type"}
	scenarioFields = []string{"module", "name", "kwargs", "export_samples"}
	sysFields      = []string{"docker_image", "external_github_repo", "gpus", "output_dir", "output_filename", "use_gpu", "local_repo_path"}
)

// Validate checks an untyped document tree and builds the typed configuration.
// Every violation is collected before returning.
func Validate(root Value, opts ValidateOptions) (*ScenarioConfig, error) {
	if opts.MetricTasks == nil {
		opts.MetricTasks = DefaultMetricTasks
	}
	if opts.Perturbations == nil {
		opts.Perturbations = DefaultPerturbations
	}

	v := &validator{opts: opts}
	cfg := v.document(root)
	if len(v.errs) > 0 {
		return nil, &ValidationError{Issues: v.errs, Warnings: v.warns}
	}
	cfg.warnings = v.warns
	cfg.opts = opts
	return cfg, nil
}

type validator struct {
	opts  ValidateOptions
	errs  []Issue
	warns []Issue
}

func (v *validator) errorf(path, format string, args ...interface{}) {
	v.errs = append(v.errs, Issue{Path: path, Reason: fmt.Sprintf(format, args...), Severity: SeverityError})
}

func (v *validator) warnf(path, format string, args ...interface{}) {
	v.warns = append(v.warns, Issue{Path: path, Reason: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// checkFields reports keys outside the known schema of a section
func (v *validator) checkFields(section Value, path string, known []string) {
	for _, key := range section.Keys() {
		if contains(known, key) {
			continue
		}
		if v.opts.Strict {
			v.errorf(join(path, key), "unknown field")
		} else {
			v.warnf(join(path, key), "unknown field ignored")
		}
	}
}

// section fetches a mapping-valued field; null counts as absent
func (v *validator) section(parent Value, path, key string, required bool) (Value, bool) {
	p := join(path, key)
	item, ok := parent.Get(key)
	if !ok || item.IsNull() {
		if required {
			v.errorf(p, "is required")
		}
		return Value{}, false
	}
	if item.Kind() != MapKind {
		v.errorf(p, "must be a mapping, got %s", item.Kind())
		return Value{}, false
	}
	return item, true
}

func (v *validator) requiredString(section Value, path, key string) string {
	p := join(path, key)
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		v.errorf(p, "is required")
		return ""
	}
	s, isString := item.AsString()
	if !isString {
		v.errorf(p, "must be a string, got %s", item.Kind())
		return ""
	}
	if strings.TrimSpace(s) == "" {
		v.errorf(p, "must not be empty")
	}
	return s
}

func (v *validator) optionalString(section Value, path, key string) string {
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		return ""
	}
	s, isString := item.AsString()
	if !isString {
		v.errorf(join(path, key), "must be a string or null, got %s", item.Kind())
	}
	return s
}

func (v *validator) optionalBool(section Value, path, key string) bool {
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		return false
	}
	b, isBool := item.AsBool()
	if !isBool {
		v.errorf(join(path, key), "must be a boolean, got %s", item.Kind())
	}
	return b
}

// integer checks item is an integer no smaller than min
func (v *validator) integer(item Value, path string, min int64) int {
	i, ok := item.AsInt()
	if !ok {
		v.errorf(path, "must be an integer, got %s", item.Kind())
		return 0
	}
	if i < min {
		if min == 1 {
			v.errorf(path, "must be a positive integer, got %d", i)
		} else {
			v.errorf(path, "must be >= %d, got %d", min, i)
		}
		return 0
	}
	return int(i)
}

func (v *validator) optionalInt(section Value, path, key string, min int64) (int, bool) {
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		return 0, false
	}
	return v.integer(item, join(path, key), min), true
}

func (v *validator) requiredInt(section Value, path, key string, min int64) int {
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		v.errorf(join(path, key), "is required")
		return 0
	}
	return v.integer(item, join(path, key), min)
}

func (v *validator) oneOf(section Value, path, key string, options []string, required bool) string {
	p := join(path, key)
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		if required {
			v.errorf(p, "is required (one of %s)", strings.Join(options, ", "))
		}
		return ""
	}
	s, isString := item.AsString()
	if !isString {
		v.errorf(p, "must be a string, got %s", item.Kind())
		return ""
	}
	if !contains(options, s) {
		v.errorf(p, "must be one of %s, got %q", strings.Join(options, ", "), s)
		return ""
	}
	return s
}

// kwargs validates an optional keyword-argument mapping; absent or null
// resolves to an empty mapping.
func (v *validator) kwargs(section Value, path, key string) Value {
	p := join(path, key)
	item, ok := section.Get(key)
	if !ok || item.IsNull() {
		return Map(nil)
	}
	if item.Kind() != MapKind {
		v.errorf(p, "must be a mapping, got %s", item.Kind())
		return Map(nil)
	}
	v.batchSizes(item, p)
	return item
}

// batchSizes requires every nested batch_size to be a positive integer
func (v *validator) batchSizes(m Value, path string) {
	for _, key := range m.Keys() {
		item, _ := m.Get(key)
		p := join(path, key)
		if (key == "batch_size" || key == "fit_batch_size") && !item.IsNull() {
			v.integer(item, p, 1)
			continue
		}
		if item.Kind() == MapKind {
			v.batchSizes(item, p)
		}
	}
}

func (v *validator) component(section Value, path, kwargsKey string) ComponentSpec {
	return ComponentSpec{
		Module: v.requiredString(section, path, "module"),
		Name:   v.requiredString(section, path, "name"),
		Kwargs: v.kwargs(section, path, kwargsKey),
	}
}

func (v *validator) document(root Value) *ScenarioConfig {
	cfg := &ScenarioConfig{raw: root}
	if root.Kind() != MapKind {
		v.errorf("document", "must be a mapping, got %s", root.Kind())
		return cfg
	}
	v.checkFields(root, "", rootFields)

	if item, ok := root.Get("_description"); ok && !item.IsNull() {
		s, isString := item.AsString()
		if !isString {
			v.errorf("_description", "must be a string or null, got %s", item.Kind())
		}
		cfg.description = s
		cfg.hasDescription = isString
	}

	if attack, ok := v.section(root, "", "attack", true); ok {
		cfg.attack = v.attack(attack, "attack")
	}
	if dataset, ok := v.section(root, "", "dataset", true); ok {
		cfg.dataset = v.dataset(dataset, "dataset", true)
	}
	if datasetTest, ok := v.section(root, "", "dataset_test", false); ok {
		spec := v.dataset(datasetTest, "dataset_test", false)
		cfg.datasetTest = &spec
	}
	if defense, ok := v.section(root, "", "defense", false); ok {
		spec := v.defense(defense, "defense")
		cfg.defense = &spec
	}
	if model, ok := v.section(root, "", "model", true); ok {
		cfg.model = v.model(model, "model")
	}
	if metric, ok := v.section(root, "", "metric", true); ok {
		cfg.metric = v.metric(metric, "metric")
	}
	if scenario, ok := v.section(root, "", "scenario", true); ok {
		cfg.scenario = v.scenarioTask(scenario, "scenario")
	}
	if sys, ok := v.section(root, "", "sysconfig", false); ok {
		cfg.sysconfig = v.sysconfig(sys, "sysconfig")
	}

	cfg.adhoc, _ = root.Get("adhoc")
	cfg.audioChannel = v.adhoc(cfg.adhoc, "adhoc")

	if cfg.scenario.Name == asrScenarioName && cfg.dataset.BatchSize > 1 {
		v.warnf("dataset.batch_size", "evaluation batch_size %d may not be supported by %s", cfg.dataset.BatchSize, asrScenarioName)
	}
	return cfg
}

func (v *validator) attack(section Value, path string) AttackSpec {
	v.checkFields(section, path, attackFields)
	spec := AttackSpec{
		ComponentSpec:  v.component(section, path, "kwargs"),
		Knowledge:      Knowledge(v.oneOf(section, path, "knowledge", validKnowledge, true)),
		Type:           v.optionalString(section, path, "type"),
		Targeted:       v.optionalBool(section, path, "targeted"),
		UseLabel:       v.optionalBool(section, path, "use_label"),
		TargetedLabels: Null(),
	}
	v.kwargs(section, path, "generate_kwargs")

	kwargsPath := join(path, "kwargs")
	eps, hasEps := v.perturbationBound(spec.Kwargs, kwargsPath, "eps")
	step, hasStep := v.perturbationBound(spec.Kwargs, kwargsPath, "eps_step")
	if hasEps && hasStep && step > eps {
		if v.opts.EpsStep == EpsStepError {
			v.errorf(join(kwargsPath, "eps_step"), "eps_step %g exceeds eps %g", step, eps)
		} else {
			v.warnf(join(kwargsPath, "eps_step"), "eps_step %g exceeds eps %g", step, eps)
		}
	}

	if labels, ok := section.Get("targeted_labels"); ok && !labels.IsNull() {
		if labels.Kind() != MapKind {
			v.errorf(join(path, "targeted_labels"), "must be a mapping, got %s", labels.Kind())
		} else {
			spec.TargetedLabels = labels
		}
	}
	if spec.Targeted && spec.Type != AttackTypePreloaded && spec.TargetedLabels.IsNull() {
		v.errorf(join(path, "targeted_labels"), "is required when targeted is true")
	}
	if spec.Targeted && spec.UseLabel {
		v.warnf(join(path, "use_label"), "use_label takes precedence over targeted; target labels will not be generated")
	}
	return spec
}

// perturbationBound reads a non-negative numeric kwarg
func (v *validator) perturbationBound(kwargs Value, path, key string) (float64, bool) {
	item, ok := kwargs.Get(key)
	if !ok || item.IsNull() {
		return 0, false
	}
	p := join(path, key)
	f, isNumber := item.AsFloat()
	if !isNumber {
		v.errorf(p, "%s must be a number, got %s", key, item.Kind())
		return 0, false
	}
	if f < 0 {
		v.errorf(p, "%s must be >= 0, got %g", key, f)
		return 0, false
	}
	return f, true
}

func (v *validator) dataset(section Value, path string, batchRequired bool) DatasetSpec {
	v.checkFields(section, path, datasetFields)
	spec := DatasetSpec{
		ComponentSpec: v.component(section, path, "kwargs"),
		Framework:     v.oneOf(section, path, "framework", validFrameworks, false),
		EvalSplit:     v.optionalString(section, path, "eval_split"),
		TrainSplit:    v.optionalString(section, path, "train_split"),
	}
	if batchRequired {
		spec.BatchSize = v.requiredInt(section, path, "batch_size", 1)
	} else {
		spec.BatchSize, _ = v.optionalInt(section, path, "batch_size", 1)
	}
	return spec
}

func (v *validator) defense(section Value, path string) DefenseSpec {
	v.checkFields(section, path, defenseFields)
	spec := DefenseSpec{
		ComponentSpec: v.component(section, path, "kwargs"),
		Type:          DefenseType(v.oneOf(section, path, "type", validDefenseTypes, false)),
	}
	if item, ok := section.Get("type"); !ok || item.IsNull() {
		v.warnf(join(path, "type"), "not set; the defense will not be applied")
	}
	if spec.Type == DefenseTransform {
		v.warnf(join(path, "type"), "Transform defenses are not supported by the evaluation engine")
	}
	return spec
}

func (v *validator) model(section Value, path string) ModelSpec {
	v.checkFields(section, path, modelFields)
	spec := ModelSpec{
		ComponentSpec: v.component(section, path, "model_kwargs"),
		Fit:           v.optionalBool(section, path, "fit"),
		WeightsFile:   v.optionalString(section, path, "weights_file"),
		WrapperKwargs: v.kwargs(section, path, "wrapper_kwargs"),
		PredictKwargs: v.kwargs(section, path, "predict_kwargs"),
		FitKwargs:     Map(nil),
	}

	fitPath := join(path, "fit_kwargs")
	fitKwargs, present := section.Get("fit_kwargs")
	switch {
	case !present || fitKwargs.IsNull():
		if spec.Fit {
			v.errorf(fitPath, "is required when fit is true")
		}
		return spec
	case fitKwargs.Kind() != MapKind:
		v.errorf(fitPath, "must be a mapping, got %s", fitKwargs.Kind())
		return spec
	}

	spec.FitKwargs = v.kwargs(section, path, "fit_kwargs")
	if spec.Fit {
		spec.NbEpochs = v.requiredInt(fitKwargs, fitPath, "nb_epochs", 1)
	} else {
		spec.NbEpochs, _ = v.optionalInt(fitKwargs, fitPath, "nb_epochs", 1)
	}
	if item, ok := fitKwargs.Get("fit_batch_size"); ok {
		if i, isInt := item.AsInt(); isInt && i > 0 {
			spec.FitBatchSize = int(i)
		}
	}
	return spec
}

func (v *validator) metric(section Value, path string) MetricSpec {
	v.checkFields(section, path, metricFields)
	spec := MetricSpec{
		Means:                 v.optionalBool(section, path, "means"),
		RecordMetricPerSample: v.optionalBool(section, path, "record_metric_per_sample"),
		ProfilerType:          v.oneOf(section, path, "profiler_type", validProfilers, false),
	}

	taskPath := join(path, "task")
	tasks, ok := section.Get("task")
	switch {
	case !ok || tasks.IsNull():
		v.errorf(taskPath, "is required")
	case tasks.Kind() != ListKind:
		v.errorf(taskPath, "must be a list of strings, got %s", tasks.Kind())
	case tasks.Len() == 0:
		v.errorf(taskPath, "must not be empty")
	default:
		for i, item := range tasks.Items() {
			p := fmt.Sprintf("%s[%d]", taskPath, i)
			tag, isString := item.AsString()
			if !isString || tag == "" {
				v.errorf(p, "must be a non-empty string")
				continue
			}
			if !v.opts.MetricTasks.Has(tag) {
				v.warnf(p, "unrecognised task %q", tag)
			}
			spec.Tasks = append(spec.Tasks, tag)
		}
	}

	spec.Perturbation = v.optionalString(section, path, "perturbation")
	if spec.Perturbation != "" && !v.opts.Perturbations.Has(spec.Perturbation) {
		v.warnf(join(path, "perturbation"), "unrecognised perturbation norm %q", spec.Perturbation)
	}
	return spec
}

func (v *validator) scenarioTask(section Value, path string) ScenarioTaskSpec {
	v.checkFields(section, path, scenarioFields)
	spec := ScenarioTaskSpec{ComponentSpec: v.component(section, path, "kwargs")}
	spec.ExportSamples, _ = v.optionalInt(section, path, "export_samples", 0)
	return spec
}

func (v *validator) sysconfig(section Value, path string) SysConfig {
	v.checkFields(section, path, sysFields)
	spec := SysConfig{
		DockerImage:        v.optionalString(section, path, "docker_image"),
		ExternalGithubRepo: v.optionalString(section, path, "external_github_repo"),
		OutputDir:          v.optionalString(section, path, "output_dir"),
		OutputFilename:     v.optionalString(section, path, "output_filename"),
		UseGPU:             v.optionalBool(section, path, "use_gpu"),
		LocalRepoPath:      v.optionalString(section, path, "local_repo_path"),
	}

	gpus, ok := section.Get("gpus")
	if !ok || gpus.IsNull() {
		return spec
	}
	if s, isString := gpus.AsString(); isString {
		if s == "all" {
			spec.GPUs = GPUSelection{Mode: GPUAll}
		} else {
			v.errorf(join(path, "gpus"), "must be \"all\", a non-negative integer or null, got %q", s)
		}
		return spec
	}
	if _, isInt := gpus.AsInt(); !isInt {
		v.errorf(join(path, "gpus"), "must be \"all\", a non-negative integer or null, got %s", gpus.Kind())
		return spec
	}
	spec.GPUs = GPUSelection{Mode: GPUCount, Count: v.integer(gpus, join(path, "gpus"), 0)}
	return spec
}

// adhoc is free-form; only the keys the evaluation engine interprets are checked
func (v *validator) adhoc(adhoc Value, path string) *AudioChannel {
	if adhoc.Kind() != MapKind {
		return nil
	}
	if item, ok := adhoc.Get("skip_adversarial"); ok && !item.IsNull() {
		if _, isBool := item.AsBool(); !isBool {
			v.errorf(join(path, "skip_adversarial"), "must be a boolean, got %s", item.Kind())
		}
	}

	section, ok := v.section(adhoc, path, "audio_channel", false)
	if !ok {
		return nil
	}
	channelPath := join(path, "audio_channel")
	errsBefore := len(v.errs)
	channel := &AudioChannel{Delay: v.requiredInt(section, channelPath, "delay", 0)}

	attenuation, present := section.Get("attenuation")
	f, isNumber := attenuation.AsFloat()
	switch {
	case !present || attenuation.IsNull():
		v.errorf(join(channelPath, "attenuation"), "is required")
	case !isNumber:
		v.errorf(join(channelPath, "attenuation"), "must be a number, got %s", attenuation.Kind())
	default:
		channel.Attenuation = f
		if f < -1 || f > 1 {
			v.warnf(join(channelPath, "attenuation"), "filter attenuation %g not in [-1, 1]", f)
		}
	}
	if len(v.errs) == errsBefore && channel.Identity() {
		v.warnf(channelPath, "delay or attenuation is zero; an identity channel will be used")
	}
	return channel
}
