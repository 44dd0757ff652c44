package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"debatelens/internal/logging"
	"debatelens/internal/workdir"
)

func newWorkdirsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workdirs",
		Short: "Inspect and prune work directories under paths.work_root",
	}
	cmd.AddCommand(newWorkdirsListCommand(ctx))
	cmd.AddCommand(newWorkdirsPruneCommand(ctx))
	return cmd
}

func newWorkdirsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List work directories with their artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := workdir.List(cfg.Paths.WorkRoot)
			if err != nil {
				return fmt.Errorf("list work directories: %w", err)
			}
			if ctx.wantJSON() {
				if dirs == nil {
					dirs = []workdir.Info{}
				}
				return writeJSON(cmd, dirs)
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No work directories in %s\n", cfg.Paths.WorkRoot)
				return nil
			}
			rows := make([][]string, 0, len(dirs))
			for _, d := range dirs {
				artifacts := strings.Join(d.Artifacts, ", ")
				if artifacts == "" {
					artifacts = "-"
				}
				rows = append(rows, []string{
					d.Name,
					humanize.Time(d.ModTime),
					humanize.Bytes(uint64(d.Size)),
					artifacts,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Directory", "Modified", "Size", "Artifacts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newWorkdirsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove work directories not modified within --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			result := workdir.Prune(cmd.Context(), cfg.Paths.WorkRoot, olderThan, logging.NewComponentLogger(logger, "workdir"))

			out := cmd.OutOrStdout()
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (in use)\n", path)
			}
			if len(result.Removed) == 0 && len(result.Skipped) == 0 {
				fmt.Fprintln(out, "Nothing to prune")
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("prune: %d director(ies) could not be removed: %w", len(result.Errors), result.Errors[0].Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of directories to remove")
	return cmd
}
