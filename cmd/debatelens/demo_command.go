package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"debatelens/internal/debate"
	"debatelens/internal/demo"
	"debatelens/internal/workdir"
)

func newDemoCommand(ctx *commandContext) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "demo <dir>",
		Short: "Write a synthetic annotated document for trying out viewers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := workdir.New(args[0])
			if err != nil {
				return err
			}
			if err := dir.Ensure(); err != nil {
				return err
			}

			now := time.Now()
			if !cmd.Flags().Changed("seed") {
				seed = uint64(now.UnixNano())
			}
			doc, err := demo.Document(demo.Options{Seed: seed, Now: now})
			if err != nil {
				return err
			}
			path := dir.DocumentPath(cfg.Aggregation.OutputName)
			if err := debate.SaveDocument(path, doc); err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, doc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote demo document to %s\n", path)
			fmt.Fprint(out, renderSummary(doc, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for the generated stance scores (default: time based)")
	return cmd
}
