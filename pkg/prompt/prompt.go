package prompt

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

// Field types
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeList    = "list"   // comma separated strings
	TypeScalar  = "scalar" // YAML scalar, e.g. "all" or 2
)

// Field is one question of the scenario scaffold, stored at a dotted path
type Field struct {
	Path        string
	Description string
	Type        string
	Default     interface{}
	Options     []string
	Required    bool
	Min         interface{}
	Max         interface{}
	// DependsOn names a boolean field that must be true for this one to be asked
	DependsOn string
}

// EnvKey is the environment variable that presets the field,
// e.g. SCENARIO_INIT_DATASET_BATCH_SIZE.
func (f Field) EnvKey() string {
	return "SCENARIO_INIT_" + strings.ToUpper(strings.ReplaceAll(f.Path, ".", "_"))
}

// SkeletonFields are the questions asked when scaffolding a new scenario
var SkeletonFields = []Field{
	{Path: "_description", Description: "Scenario description:", Type: TypeString, Default: "New evaluation scenario"},
	{Path: "scenario.module", Description: "Scenario module:", Type: TypeString, Default: "armory.scenarios.image_classification", Required: true},
	{Path: "scenario.name", Description: "Scenario task:", Type: TypeString, Default: "ImageClassificationTask", Required: true,
		Options: []string{"ImageClassificationTask", "AutomaticSpeechRecognition", "ObjectDetectionTask", "CarlaObjectDetectionTask", "Poison"}},
	{Path: "dataset.module", Description: "Dataset module:", Type: TypeString, Default: "armory.data.datasets", Required: true},
	{Path: "dataset.name", Description: "Dataset loader:", Type: TypeString, Default: "cifar10", Required: true},
	{Path: "dataset.batch_size", Description: "Evaluation batch size:", Type: TypeInteger, Default: 16, Min: 1},
	{Path: "dataset.framework", Description: "Dataset framework:", Type: TypeString, Default: "numpy", Options: []string{"numpy", "tf", "pytorch"}},
	{Path: "attack.module", Description: "Attack module:", Type: TypeString, Default: "art.attacks.evasion", Required: true},
	{Path: "attack.name", Description: "Attack class:", Type: TypeString, Default: "ProjectedGradientDescent", Required: true},
	{Path: "attack.knowledge", Description: "Adversary knowledge:", Type: TypeString, Default: "white", Options: []string{"white", "black", "grey"}},
	{Path: "attack.kwargs.eps", Description: "Perturbation budget (eps):", Type: TypeFloat, Default: 0.031, Min: 0},
	{Path: "attack.kwargs.eps_step", Description: "Attack step size (eps_step):", Type: TypeFloat, Default: 0.007, Min: 0},
	{Path: "model.module", Description: "Model module:", Type: TypeString, Default: "armory.baseline_models.pytorch.cifar", Required: true},
	{Path: "model.name", Description: "Model factory:", Type: TypeString, Default: "get_art_model", Required: true},
	{Path: "model.fit", Description: "Train the model before evaluation?", Type: TypeBoolean, Default: false},
	{Path: "model.fit_kwargs.nb_epochs", Description: "Training epochs:", Type: TypeInteger, Default: 20, Min: 1, DependsOn: "model.fit"},
	{Path: "metric.task", Description: "Task metrics (comma separated):", Type: TypeList, Default: "categorical_accuracy", Required: true},
	{Path: "metric.perturbation", Description: "Perturbation norm:", Type: TypeString, Default: "linf", Options: []string{"linf", "l0", "l1", "l2", "snr", "snr_db"}},
	{Path: "sysconfig.docker_image", Description: "Docker image:", Type: TypeString, Default: "twosixarmory/pytorch:0.13.0"},
	{Path: "sysconfig.gpus", Description: "GPUs (\"all\" or a count):", Type: TypeScalar, Default: "all"},
	{Path: "sysconfig.use_gpu", Description: "Run on GPU?", Type: TypeBoolean, Default: false},
}

// Interactive reports whether prompts may be shown; SCENARIO_SKIP_PROMPTS=true
// disables them for CI and automation.
func Interactive() bool {
	return os.Getenv("SCENARIO_SKIP_PROMPTS") != "true"
}

// PromptForFields asks for each field in order. When interactive is false
// nothing is asked and values come from the environment or field defaults.
func PromptForFields(fields []Field, interactive bool) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, field := range fields {
		if field.DependsOn != "" {
			if enabled, _ := result[field.DependsOn].(bool); !enabled {
				continue
			}
		}
		value, err := promptForField(field, interactive)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", field.Path, err)
		}
		result[field.Path] = value
	}

	return result, nil
}

// promptForField prompts for a single field
func promptForField(field Field, interactive bool) (interface{}, error) {
	envValue := os.Getenv(field.EnvKey())

	if !interactive {
		if envValue != "" {
			return ParseValue(envValue, field)
		}
		if field.Default != nil {
			return ParseValue(fmt.Sprintf("%v", field.Default), field)
		}
		if field.Required {
			return nil, fmt.Errorf("required field %s not provided and no default available", field.Path)
		}
		return nil, nil
	}

	// An environment value becomes the suggested default
	if envValue != "" {
		if _, err := ParseValue(envValue, field); err == nil {
			field.Default = envValue
		}
	}

	switch field.Type {
	case TypeInteger:
		return promptInteger(field)
	case TypeFloat:
		return promptFloat(field)
	case TypeBoolean:
		return promptBoolean(field)
	case TypeString, TypeList, TypeScalar:
		raw, err := promptString(field)
		if err != nil {
			return nil, err
		}
		return ParseValue(raw, field)
	default:
		return nil, fmt.Errorf("unsupported field type: %s", field.Type)
	}
}

// ParseValue converts raw text according to the field type and range
func ParseValue(raw string, field Field) (interface{}, error) {
	switch field.Type {
	case TypeInteger:
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %w", err)
		}
		if err := checkRange(float64(value), field); err != nil {
			return nil, err
		}
		return value, nil
	case TypeFloat:
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %w", err)
		}
		if err := checkRange(value, field); err != nil {
			return nil, err
		}
		return value, nil
	case TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case TypeString:
		if field.Required && strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("value is required")
		}
		return raw, nil
	case TypeList:
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if field.Required && len(items) == 0 {
			return nil, fmt.Errorf("at least one value is required")
		}
		return items, nil
	case TypeScalar:
		_, value, err := scenario.ParseOverride(field.Path + "=" + raw)
		if err != nil {
			return nil, err
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported field type: %s", field.Type)
	}
}

func checkRange(value float64, field Field) error {
	if field.Min != nil {
		if minRange := toFloat64(field.Min); value < minRange {
			return fmt.Errorf("value must be at least %g", minRange)
		}
	}
	if field.Max != nil {
		if maxRange := toFloat64(field.Max); value > maxRange {
			return fmt.Errorf("value must be at most %g", maxRange)
		}
	}
	return nil
}

// validatorFor rejects input ParseValue would reject, so survey re-asks
func validatorFor(field Field) survey.Validator {
	return func(val interface{}) error {
		str, _ := val.(string)
		_, err := ParseValue(str, field)
		return err
	}
}

func promptInteger(field Field) (int, error) {
	prompt := &survey.Input{
		Message: field.Description,
		Default: defaultString(field),
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(validatorFor(field))); err != nil {
		return 0, err
	}

	value, err := ParseValue(result, field)
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

func promptFloat(field Field) (float64, error) {
	prompt := &survey.Input{
		Message: field.Description,
		Default: defaultString(field),
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(validatorFor(field))); err != nil {
		return 0, err
	}

	value, err := ParseValue(result, field)
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

func promptString(field Field) (string, error) {
	// If options are provided, use a select prompt
	if len(field.Options) > 0 {
		prompt := &survey.Select{
			Message: field.Description,
			Options: field.Options,
			Default: defaultString(field),
		}

		var result string
		if err := survey.AskOne(prompt, &result); err != nil {
			return "", err
		}
		return result, nil
	}

	prompt := &survey.Input{
		Message: field.Description,
		Default: defaultString(field),
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(validatorFor(field))); err != nil {
		return "", err
	}
	return result, nil
}

func promptBoolean(field Field) (bool, error) {
	defaultBool := false
	switch v := field.Default.(type) {
	case bool:
		defaultBool = v
	case string:
		defaultBool = v == "true" || v == "yes" || v == "1"
	}

	prompt := &survey.Confirm{
		Message: field.Description,
		Default: defaultBool,
	}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func defaultString(field Field) string {
	if field.Default == nil {
		return ""
	}
	return fmt.Sprintf("%v", field.Default)
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
