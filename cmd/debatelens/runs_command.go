package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"debatelens/internal/runstore"
	"debatelens/internal/textutil"
)

const defaultRunsLimit = 20

type runView struct {
	ID           string  `json:"id"`
	Stage        string  `json:"stage"`
	Source       string  `json:"source,omitempty"`
	WorkDir      string  `json:"work_dir"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   string  `json:"finished_at,omitempty"`
	DurationSecs float64 `json:"duration_seconds"`
	FailureCount int     `json:"failure_count"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent stage executions from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunsTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRunsLimit, "Maximum number of runs to show")
	return cmd
}

func newRunView(run runstore.Run) runView {
	view := runView{
		ID:           run.ID,
		Stage:        run.Stage,
		Source:       run.Source,
		WorkDir:      run.WorkDir,
		Status:       string(run.Status),
		Error:        run.ErrorMessage,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		DurationSecs: run.Duration().Seconds(),
		FailureCount: run.FailureCount,
	}
	if !run.FinishedAt.IsZero() {
		view.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func renderRunsTable(runs []runstore.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		target := run.Source
		if target == "" {
			target = run.WorkDir
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.Stage,
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			strconv.Itoa(run.FailureCount),
			textutil.Truncate(target, 48),
		})
	}
	return renderTable(
		[]string{"Run", "Stage", "Status", "Started", "Duration", "Failures", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
