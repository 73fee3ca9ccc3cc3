package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/catalog"
	"github.com/picogrid/scenario-config/pkg/logger"
)

func (a *app) newListCmd() *cobra.Command {
	var (
		showErrors bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "list [DIR]",
		Short: "List available scenarios",
		Long: `List every scenario document under DIR with its load status. Without DIR
the nearest scenario_configs directory above the working directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listScenarios(cmd, args, showErrors, reportPath)
		},
	}

	cmd.Flags().BoolVar(&showErrors, "errors", false, "print the problems of scenarios that fail to load")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a catalog report (.json or .md)")

	return cmd
}

func (a *app) listScenarios(cmd *cobra.Command, args []string, showErrors bool, reportPath string) error {
	root := ""
	if len(args) == 1 {
		root = args[0]
	} else {
		dir, err := catalog.FindScenarioDir(".")
		if err != nil {
			return err
		}
		root = dir
	}

	loader, err := a.loader()
	if err != nil {
		return err
	}
	entries, err := catalog.Discover(root, loader)
	if err != nil {
		return fmt.Errorf("failed to discover scenarios: %w", err)
	}

	if reportPath != "" {
		if err := catalog.NewReport(root, entries).Save(reportPath); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		logger.Successf("Report saved to: %s", reportPath)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No scenarios found")
		return nil
	}

	table := logger.NewTable("FILE", "STATUS", "NAME", "ATTACK", "WARNINGS")
	failed := 0
	for _, e := range entries {
		rel, err := filepath.Rel(root, e.Path)
		if err != nil || rel == "." {
			rel = e.Path
		}
		if !e.OK() {
			failed++
			table.AddRow(rel, failureLabel(e.Err), e.Name(), "-", "-")
			continue
		}
		table.AddRow(rel, "ok", e.Name(), e.Config.Attack().Ref(), strconv.Itoa(len(e.Config.Warnings())))
	}
	table.Print(out)

	_, _ = fmt.Fprintf(out, "\n%d scenarios, %d failed\n", len(entries), failed)

	if showErrors {
		for _, e := range entries {
			if e.OK() {
				continue
			}
			_, _ = fmt.Fprintf(out, "\n%s %s\n", logger.IconFile, e.Path)
			printIssues(out, e.Err, nil)
		}
	}
	return nil
}
