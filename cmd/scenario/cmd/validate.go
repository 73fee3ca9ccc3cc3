package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/audit"
	"github.com/picogrid/scenario-config/pkg/logger"
	"github.com/picogrid/scenario-config/pkg/scenario"
)

type validateFlags struct {
	sets   []string
	useEnv bool
	format string
	record bool
	quiet  bool
}

func (a *app) newValidateCmd() *cobra.Command {
	f := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate scenario files",
		Long: `Load and validate one or more scenario files. Every problem in a file is
reported, not just the first. Use "-" to read a document from standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, f)
		},
	}

	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "override a field, e.g. --set attack.kwargs.eps=0.1 (repeatable)")
	cmd.Flags().BoolVar(&f.useEnv, "env", false, "apply SCENARIO_* environment overrides")
	cmd.Flags().StringVar(&f.format, "format", "json", "format of standard input (json, yaml)")
	cmd.Flags().BoolVar(&f.record, "record", false, "record each load in the history database")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "only report failures")

	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, args []string, f *validateFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdinFormat, err := scenario.ParseFormat(f.format)
	if err != nil {
		return err
	}
	overrides, err := collectOverrides(f.sets, f.useEnv)
	if err != nil {
		return err
	}
	loader, err := a.loader()
	if err != nil {
		return err
	}

	// Recording is on when asked for or when a database is configured
	var store *audit.Store
	if f.record || a.settings.AuditDB != "" {
		store, err = audit.NewStore(a.settings.AuditPath())
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, source := range args {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cfg, loadErr := loadSource(loader, cmd.InOrStdin(), source, stdinFormat, overrides)
		if store != nil {
			a.recordLoad(ctx, store, source, sourceFormat(source, stdinFormat), cfg, loadErr)
		}

		if loadErr != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s %s %s\n", logger.IconError, source,
				paint(color.FgRed, "("+failureLabel(loadErr)+")"))
			printIssues(out, loadErr, nil)
			continue
		}

		if f.quiet {
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s %s\n", logger.IconSuccess, source, paint(color.FgHiBlack, shortDigest(cfg.Digest())))
		printIssues(out, nil, cfg.Warnings())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed validation", failed, len(args))
	}
	logger.Debugf("%d scenarios valid", len(args))
	return nil
}

func (a *app) recordLoad(ctx context.Context, store *audit.Store, source string, format scenario.Format, cfg *scenario.ScenarioConfig, loadErr error) {
	rec, err := store.RecordLoad(ctx, source, format, cfg, loadErr)
	if err != nil {
		logger.Warnf("Failed to record load of %s: %v", source, err)
		return
	}
	logger.WithField("id", rec.ID).Debugf("recorded %s load of %s", rec.Stage, source)
}
