package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/logger"
	"github.com/picogrid/scenario-config/pkg/prompt"
	"github.com/picogrid/scenario-config/pkg/scenario"
)

func (a *app) newInitCmd() *cobra.Command {
	var (
		force    bool
		noPrompt bool
	)

	cmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Scaffold a new scenario file",
		Long: `Ask for the essential fields of a scenario and write a validated document.
The format follows the file extension (default scenario.json). Answers can be
preset with SCENARIO_INIT_<PATH> variables, e.g. SCENARIO_INIT_DATASET_NAME.
Without a terminal, or with SCENARIO_SKIP_PROMPTS=true, nothing is asked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scenario.json"
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			interactive := !noPrompt && prompt.Interactive() && isTerminal(os.Stdin)
			answers, err := prompt.PromptForFields(prompt.SkeletonFields, interactive)
			if err != nil {
				return err
			}

			opts, err := a.settings.ValidateOptions()
			if err != nil {
				return err
			}
			cfg, err := prompt.Skeleton(answers, opts)
			if err != nil {
				printIssues(cmd.ErrOrStderr(), err, nil)
				return err
			}

			var data []byte
			if scenario.FormatFromPath(path) == scenario.FormatYAML {
				data, err = cfg.YAML()
			} else {
				data, err = cfg.JSON()
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			logger.Successf("Created %s", path)
			printIssues(cmd.ErrOrStderr(), nil, cfg.Warnings())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "use environment presets and defaults without asking")

	return cmd
}
