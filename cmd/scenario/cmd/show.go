package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

func (a *app) newShowCmd() *cobra.Command {
	var (
		sets        []string
		useEnv      bool
		output      string
		inputFormat string
	)

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show a validated scenario",
		Long: `Load a scenario, apply overrides and print it as a summary (text) or as
canonical JSON or YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdinFormat, err := scenario.ParseFormat(inputFormat)
			if err != nil {
				return err
			}
			overrides, err := collectOverrides(sets, useEnv)
			if err != nil {
				return err
			}
			loader, err := a.loader()
			if err != nil {
				return err
			}

			cfg, err := loadSource(loader, cmd.InOrStdin(), args[0], stdinFormat, overrides)
			if err != nil {
				printIssues(cmd.ErrOrStderr(), err, nil)
				return fmt.Errorf("%s: %s", args[0], failureLabel(err))
			}

			out := cmd.OutOrStdout()
			switch output {
			case "text":
				_, _ = fmt.Fprintln(out, cfg.String())
				_, _ = fmt.Fprintf(out, "\nDigest: %s\n", cfg.Digest())
				return nil
			case "digest":
				_, _ = fmt.Fprintln(out, cfg.Digest())
				return nil
			}

			format, err := scenario.ParseFormat(output)
			if err != nil {
				return err
			}
			var data []byte
			if format == scenario.FormatYAML {
				data, err = cfg.YAML()
			} else {
				data, err = cfg.JSON()
			}
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a field, e.g. --set sysconfig.gpus=2 (repeatable)")
	cmd.Flags().BoolVar(&useEnv, "env", false, "apply SCENARIO_* environment overrides")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml, digest)")
	cmd.Flags().StringVar(&inputFormat, "format", "json", "format of standard input (json, yaml)")

	return cmd
}
