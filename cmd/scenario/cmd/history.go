package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/picogrid/scenario-config/pkg/audit"
	"github.com/picogrid/scenario-config/pkg/logger"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var filter audit.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scenario loads",
		Long:  `List the loads recorded by "validate --record", newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := audit.NewStore(a.settings.AuditPath())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				_, _ = fmt.Fprintln(out, "No loads recorded")
				return nil
			}

			table := logger.NewTable("ID", "TIME", "SOURCE", "STAGE", "ERRORS", "WARNINGS", "DIGEST")
			for _, r := range records {
				table.AddRow(
					r.ID[:8],
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Source,
					r.Stage,
					strconv.Itoa(r.ErrorCount),
					strconv.Itoa(r.WarningCount),
					shortDigest(r.Digest),
				)
			}
			table.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum records to show (0 for all)")
	cmd.Flags().StringVar(&filter.Source, "source", "", "only show loads of this source")
	cmd.Flags().BoolVar(&filter.FailedOnly, "failed", false, "only show failed loads")

	cmd.AddCommand(a.newHistoryShowCmd())
	cmd.AddCommand(a.newHistoryPruneCmd())

	return cmd
}

func (a *app) newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one recorded load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := audit.NewStore(a.settings.AuditPath())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			r, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger.LogSection(out, "Load "+r.ID)
			logger.LogKeyValue(out, "Time", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			logger.LogKeyValue(out, "Source", r.Source)
			logger.LogKeyValue(out, "Format", r.Format)
			if r.Succeeded() {
				logger.LogKeyValue(out, "Stage", paint(color.FgGreen, r.Stage))
				logger.LogKeyValue(out, "Digest", r.Digest)
			} else {
				logger.LogKeyValue(out, "Stage", paint(color.FgRed, r.Stage))
				logger.LogKeyValue(out, "Errors", r.ErrorCount)
				logger.LogKeyValue(out, "Message", r.Message)
			}
			logger.LogKeyValue(out, "Warnings", r.WarningCount)

			if r.Document != "" {
				var doc bytes.Buffer
				if err := json.Indent(&doc, []byte(r.Document), "", "    "); err != nil {
					return fmt.Errorf("stored document is corrupt: %w", err)
				}
				_, _ = fmt.Fprintf(out, "\n%s\n", doc.String())
			}
			return nil
		},
	}
}

func (a *app) newHistoryPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old recorded loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := audit.NewStore(a.settings.AuditPath())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			logger.Successf("Removed %d records, kept the newest %d", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "number of newest records to keep")

	return cmd
}
