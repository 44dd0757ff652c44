package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"debatelens/internal/debate"
	"debatelens/internal/workdir"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var showSegments bool
	cmd := &cobra.Command{
		Use:   "summary <dir-or-json>",
		Short: "Show statistics for a final debate document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				dir, err := workdir.New(path)
				if err != nil {
					return err
				}
				path = dir.DocumentPath(cfg.Aggregation.OutputName)
			}
			doc, err := debate.LoadDocument(path)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, doc.Statistics)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderSummary(doc, shouldColorize(out)))
			if showSegments && len(doc.Segments) > 0 {
				fmt.Fprintln(out, renderSegmentTable(doc.Segments))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSegments, "segments", false, "Also list every annotated segment")
	return cmd
}
