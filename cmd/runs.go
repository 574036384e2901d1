package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tradu/emailqc/internal/model"
	"github.com/tradu/emailqc/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect QC run history",
	Long:  "Commands for listing, viewing, and summarizing QC runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List QC runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		silo, _ := cmd.Flags().GetString("silo")
		entity, _ := cmd.Flags().GetString("entity")
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		filter := store.RunFilter{
			Silo:     silo,
			Entity:   entity,
			Page:     page,
			PageSize: pageSize,
		}

		runs, total, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		fmt.Fprintf(os.Stdout, "\n%d of %d runs\n", len(runs), total)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.RunFilter{PageSize: 100}
		if since > 0 {
			from := time.Now().Add(-since)
			filter.From = &from
		}

		var all []model.QcRun
		for page := 1; ; page++ {
			filter.Page = page
			runs, total, err := st.ListRuns(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "runs stats")
			}
			all = append(all, runs...)
			if len(all) >= total || len(runs) == 0 {
				break
			}
		}

		stats := computeRunStats(all)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("silo", "", "filter by brand silo")
	runsListCmd.Flags().String("entity", "", "filter by regulatory entity")
	runsListCmd.Flags().Int("page", 1, "page number")
	runsListCmd.Flags().Int("page-size", 50, "runs per page (max 100)")

	runsStatsCmd.Flags().Duration("since", 7*24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Completed  int
	Passed     int
	Failed     int
	InFlight   int
	AvgDurSecs float64
}

func computeRunStats(runs []model.QcRun) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStageCompleted:
			s.Completed++
			if r.SummaryPass != nil && *r.SummaryPass {
				s.Passed++
			}
			if r.FinishedAt != nil {
				totalDur += r.FinishedAt.Sub(r.StartedAt)
				durCount++
			}
		case model.RunStageFailed:
			s.Failed++
		default:
			s.InFlight++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.QcRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSILO\tENTITY\tTYPE\tSTATUS\tVERDICT\tSTARTED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t----\t------\t-------\t-------")

	for _, r := range runs {
		verdict := ""
		if r.SummaryPass != nil {
			if *r.SummaryPass {
				verdict = "pass"
			} else {
				verdict = "fail"
			}
		}

		name := r.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			name,
			r.Silo,
			r.Entity,
			r.EmailType,
			r.Status,
			verdict,
			r.StartedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "  Passed:\t%d\n", s.Passed)
	_, _ = fmt.Fprintf(w, "  Flagged:\t%d\n", s.Completed-s.Passed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.InFlight)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
