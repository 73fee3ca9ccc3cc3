package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/config"
	"github.com/picogrid/scenario-config/pkg/logger"
)

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI settings",
		Long:  `Show or create the settings file used as defaults for every command`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, a.settings.String())
			if used := a.v.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(out, "\nLoaded from %s\n", used)
			}
			return nil
		},
	})

	var force, noPrompt bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.initSettings(force, !noPrompt && isTerminal(os.Stdin))
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	initCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "save the current settings without asking")
	configCmd.AddCommand(initCmd)

	return configCmd
}

func (a *app) initSettings(force, interactive bool) error {
	path := a.cfgFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	s := a.settings
	if interactive {
		if err := askSettings(&s); err != nil {
			return err
		}
	}

	if err := config.SaveSettings(path, &s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	logger.Successf("Settings written to %s", path)
	return nil
}

// askSettings prompts for each setting, starting from the current values
func askSettings(s *config.Settings) error {
	levelPrompt := &survey.Select{
		Message: "Log level:",
		Options: []string{"debug", "info", "warn", "error"},
		Default: optionDefault([]string{"debug", "info", "warn", "error"}, s.LogLevel, "info"),
	}
	if err := survey.AskOne(levelPrompt, &s.LogLevel); err != nil {
		return err
	}

	strictPrompt := &survey.Confirm{
		Message: "Reject unknown fields (strict mode)?",
		Default: s.Strict,
	}
	if err := survey.AskOne(strictPrompt, &s.Strict); err != nil {
		return err
	}

	policyPrompt := &survey.Select{
		Message: "When eps_step exceeds eps:",
		Options: []string{"warn", "error"},
		Default: optionDefault([]string{"warn", "error"}, s.EpsStepPolicy, "warn"),
	}
	if err := survey.AskOne(policyPrompt, &s.EpsStepPolicy); err != nil {
		return err
	}

	colorPrompt := &survey.Confirm{
		Message: "Disable colored output?",
		Default: s.NoColor,
	}
	if err := survey.AskOne(colorPrompt, &s.NoColor); err != nil {
		return err
	}

	auditPrompt := &survey.Input{
		Message: "History database (empty for the default):",
		Default: s.AuditDB,
		Help:    "Loads are recorded here by \"validate --record\"",
	}
	return survey.AskOne(auditPrompt, &s.AuditDB)
}

// optionDefault returns value when it is one of options, else fallback
func optionDefault(options []string, value, fallback string) string {
	for _, o := range options {
		if o == value {
			return value
		}
	}
	return fallback
}
