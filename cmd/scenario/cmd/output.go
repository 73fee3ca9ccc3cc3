package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/picogrid/scenario-config/pkg/logger"
	"github.com/picogrid/scenario-config/pkg/scenario"
)

// stdinSource names standard input on the command line
const stdinSource = "-"

func paint(attr color.Attribute, text string) string {
	if !logger.ColorEnabled() {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

// shortDigest abbreviates a content digest for display
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// failureLabel names the stage a load failed in
func failureLabel(err error) string {
	switch scenario.FailedStage(err) {
	case scenario.StageParsed:
		return "syntax error"
	case scenario.StageValidated:
		return "invalid"
	default:
		return "unreadable"
	}
}

// collectOverrides merges SCENARIO_* variables (when useEnv is set) with
// --set path=value flags. Flags win over the environment.
func collectOverrides(sets []string, useEnv bool) (map[string]interface{}, error) {
	overrides := make(map[string]interface{})
	if useEnv {
		env, err := scenario.EnvironmentOverrides()
		if err != nil {
			return nil, err
		}
		for path, value := range env {
			overrides[path] = value
		}
	}
	for _, s := range sets {
		path, value, err := scenario.ParseOverride(s)
		if err != nil {
			return nil, err
		}
		overrides[path] = value
	}
	return overrides, nil
}

// loadSource loads one file, or standard input for "-", and applies overrides
func loadSource(loader *scenario.Loader, stdin io.Reader, source string, format scenario.Format, overrides map[string]interface{}) (*scenario.ScenarioConfig, error) {
	var (
		cfg *scenario.ScenarioConfig
		err error
	)
	if source == stdinSource {
		cfg, err = loader.LoadReader(stdin, format)
	} else {
		cfg, err = loader.LoadFile(source)
	}
	if err != nil {
		return nil, err
	}
	return cfg.WithOverrides(overrides)
}

// sourceFormat is the syntax used to record or read a source
func sourceFormat(source string, stdinFormat scenario.Format) scenario.Format {
	if source == stdinSource {
		return stdinFormat
	}
	return scenario.FormatFromPath(source)
}

// printIssues writes each error and warning of err (or warnings alone) on its own line
func printIssues(w io.Writer, err error, warnings []scenario.Issue) {
	var verr *scenario.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		for _, issue := range verr.Issues {
			_, _ = fmt.Fprintf(w, "  %s %s %s\n", paint(color.FgRed, "error  "), paint(color.FgCyan, issue.Path), issue.Reason)
		}
		warnings = verr.Warnings
	default:
		_, _ = fmt.Fprintf(w, "  %s %v\n", paint(color.FgRed, "error  "), err)
	}

	for _, issue := range warnings {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n", paint(color.FgYellow, "warning"), paint(color.FgCyan, issue.Path), issue.Reason)
	}
}
