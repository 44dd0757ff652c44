package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"debatelens/internal/config"
	"debatelens/internal/debate"
	"debatelens/internal/workdir"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newFetchCommand(ctx),
		newSliceCommand(ctx),
		newTranscribeCommand(ctx),
		newDiarizeCommand(ctx),
		newStanceCommand(ctx),
		newMergeCommand(ctx),
		newRunCommand(ctx),
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a video's audio track into a work directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := resolveDir(cfg, dirFlag, args[0])
			if err != nil {
				return err
			}
			s, err := ctx.openSession(cfg, false)
			if err != nil {
				return err
			}
			defer s.close()

			path, err := s.pipeline.Fetch(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, map[string]string{"dir": dir.Root, "audio": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dirFlag, "dir", "", "Work directory (default: derived from the URL under paths.work_root)")
	return cmd
}

func newSliceCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string
	var chunkSeconds float64
	var overlapSeconds float64
	cmd := &cobra.Command{
		Use:   "slice <audio>",
		Short: "Cut a recording into overlapping fixed-length chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			if cmd.Flags().Changed("chunk-seconds") {
				cfg.Segmenter.ChunkSeconds = chunkSeconds
			}
			if cmd.Flags().Changed("overlap-seconds") {
				cfg.Segmenter.OverlapSeconds = overlapSeconds
			}
			dir, err := resolveDir(&cfg, dirFlag, args[0])
			if err != nil {
				return err
			}
			s, err := ctx.openSession(&cfg, false)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.pipeline.Slice(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, debate.ChunkManifest{
					Recording:      result.Recording.Path,
					Duration:       result.Recording.Duration,
					SampleRate:     result.Recording.SampleRate,
					ChunkSeconds:   cfg.Segmenter.ChunkSeconds,
					OverlapSeconds: cfg.Segmenter.OverlapSeconds,
					Chunks:         result.Chunks,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sliced %.2fs into %d chunk(s) in %s\n", result.Recording.Duration, len(result.Chunks), dir.Root)
			rows := make([][]string, 0, len(result.Chunks))
			for _, chunk := range result.Chunks {
				rows = append(rows, []string{
					chunk.Name(),
					formatSeconds(chunk.Start),
					formatSeconds(chunk.End()),
					formatSeconds(chunk.Overlap),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Chunk", "Start", "End", "Overlap"}, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&dirFlag, "dir", "", "Work directory (default: derived from the audio file name under paths.work_root)")
	cmd.Flags().Float64Var(&chunkSeconds, "chunk-seconds", config.Default().Segmenter.ChunkSeconds, "Chunk length in seconds")
	cmd.Flags().Float64Var(&overlapSeconds, "overlap-seconds", config.Default().Segmenter.OverlapSeconds, "Overlap between consecutive chunks in seconds")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <dir>",
		Short: "Transcribe every chunk of a sliced work directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, args[0], func(s *session, dir workdir.Dir) error {
				artifact, err := s.pipeline.Transcribe(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, artifact)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Transcribed %d segment(s) with %s\n", len(artifact.Segments), artifact.Model)
				printFailures(out, artifact.Failures)
				return nil
			})
		},
	}
}

func newDiarizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "diarize <dir>",
		Short: "Label speakers over the recording of a work directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, args[0], func(s *session, dir workdir.Dir) error {
				intervals, err := s.pipeline.Diarize(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					if intervals == nil {
						intervals = []debate.SpeakerInterval{}
					}
					return writeJSON(cmd, intervals)
				}
				speakers := map[string]struct{}{}
				for _, interval := range intervals {
					speakers[interval.Speaker] = struct{}{}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Diarized %d interval(s) across %d speaker(s)\n", len(intervals), len(speakers))
				return nil
			})
		},
	}
}

func newStanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stance <dir>",
		Short: "Score the stance of every transcript segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, args[0], func(s *session, dir workdir.Dir) error {
				artifact, err := s.pipeline.Stance(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, artifact)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scored %d segment(s) over %s\n", len(artifact.Scores), strings.Join(artifact.Categories, ", "))
				printFailures(out, artifact.Failures)
				return nil
			})
		},
	}
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var outputName string
	cmd := &cobra.Command{
		Use:   "merge <dir>",
		Short: "Join stage artifacts into the final annotated document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			if strings.TrimSpace(outputName) != "" {
				cfg.Aggregation.OutputName = strings.TrimSpace(outputName)
			}
			dir, err := workdir.New(args[0])
			if err != nil {
				return err
			}
			if err := dir.RequireExisting(); err != nil {
				return err
			}
			s, err := ctx.openSession(&cfg, false)
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.pipeline.Merge(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d segment(s) to %s\n", len(doc.Segments), dir.DocumentPath(cfg.Aggregation.OutputName))
			return nil
		},
	}
	cmd.Flags().StringVar(&outputName, "output", "", "Output file name inside the work directory (default: aggregation.output_name)")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string
	cmd := &cobra.Command{
		Use:   "run <audio-or-url>",
		Short: "Run every stage in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := resolveDir(cfg, dirFlag, args[0])
			if err != nil {
				return err
			}
			s, err := ctx.openSession(cfg, true)
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.pipeline.Run(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, doc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", dir.DocumentPath(cfg.Aggregation.OutputName))
			fmt.Fprint(out, renderSummary(doc, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dirFlag, "dir", "", "Work directory (default: derived from the source under paths.work_root)")
	return cmd
}

// withStage resolves an existing work directory and opens a session for a
// model stage that reads earlier artifacts.
func (c *commandContext) withStage(cmd *cobra.Command, dirArg string, fn func(*session, workdir.Dir) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	dir, err := workdir.New(dirArg)
	if err != nil {
		return err
	}
	if err := dir.RequireExisting(); err != nil {
		return err
	}
	s, err := c.openSession(cfg, true)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s, dir)
}

func printFailures(out io.Writer, failures []debate.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(out, renderFailureTable(failures))
}
