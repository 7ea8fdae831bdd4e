package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vigil/internal/aggregating"
	"vigil/internal/config"
	"vigil/internal/queue"
	"vigil/internal/report"
	"vigil/internal/segment"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Show the analysis report for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				run, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %d not found", id)
				}

				rep, err := loadReport(cmd, store, cfg, run)
				if err != nil {
					return err
				}

				if asJSON {
					payload, err := rep.Marshal()
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), payload)
					return nil
				}
				renderReport(cmd, run, rep)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}

// loadReport returns the finalized report when the run completed, or a
// partial snapshot built from persisted verdicts for an interrupted run.
func loadReport(cmd *cobra.Command, store *queue.Store, cfg *config.Config, run *queue.Run) (report.Report, error) {
	if strings.TrimSpace(run.ReportJSON) != "" {
		return report.Unmarshal(run.ReportJSON)
	}
	if strings.TrimSpace(run.SegmentsJSON) == "" {
		return report.Report{}, fmt.Errorf("run %d has no analyzable output yet (status %s)", run.ID, run.Status)
	}
	segments, err := segment.Unmarshal(run.SegmentsJSON)
	if err != nil {
		return report.Report{}, err
	}
	return aggregating.BuildPartialReport(cmd.Context(), store, run, segments, cfg.Analysis.EscalateOnDisagreement)
}

func renderReport(cmd *cobra.Command, run *queue.Run, rep report.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Run %d: %s\n", run.ID, run.Title)
	if rep.Partial {
		fmt.Fprintln(out, "NOTE: run did not complete; showing verdicts recorded before interruption.")
	}
	fmt.Fprintf(out, "Segments: %d  Compliant: %d  PolicyConcern: %d  Inconclusive: %d  Skipped: %d\n",
		rep.Summary.TotalSegments,
		rep.Summary.Compliant,
		rep.Summary.PolicyConcern,
		rep.Summary.Inconclusive,
		rep.Summary.Skipped,
	)

	if len(rep.Entries) > 0 {
		rows := make([][]string, 0, len(rep.Entries))
		for _, entry := range rep.Entries {
			category := colorizeCategory(string(entry.Category))
			if entry.Escalated {
				category += " (escalated)"
			}
			detail := entry.Rationale
			if entry.Skipped {
				detail = "skipped: " + entry.SkipReason
			}
			rows = append(rows, []string{
				fmt.Sprintf("%s - %s", entry.StartLabel, entry.EndLabel),
				category,
				fmt.Sprintf("%.2f", entry.Confidence),
				detail,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Window", "Category", "Confidence", "Rationale"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	if len(rep.FlaggedRanges) > 0 {
		fmt.Fprintln(out, "Flagged ranges:")
		for _, r := range rep.FlaggedRanges {
			fmt.Fprintf(out, "  %s - %s\n", r.StartLabel, r.EndLabel)
		}
	}
}
