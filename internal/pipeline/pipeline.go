package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"debatelens/internal/analysis"
	"debatelens/internal/config"
	"debatelens/internal/debate"
	"debatelens/internal/logging"
	"debatelens/internal/runstore"
	"debatelens/internal/services"
	"debatelens/internal/workdir"
)

// Stage names used in logs, failures, and the run ledger.
const (
	StageFetch      = "fetch"
	StageSlice      = "slice"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageStance     = "stance"
	StageMerge      = "merge"
	StageRun        = "run"
)

// Options carries the collaborators a Pipeline needs besides configuration.
type Options struct {
	// Models may be nil for stages that make no model calls.
	Models *analysis.Bundle
	// Runner executes ffmpeg, ffprobe and yt-dlp; nil runs real commands.
	Runner services.CommandRunner
	// Store is the run ledger; nil disables ledger recording.
	Store  *runstore.Store
	Logger *slog.Logger
	// Now is used for document timestamps.
	Now func() time.Time
}

// Pipeline executes stages with one configuration.
type Pipeline struct {
	cfg    *config.Config
	models *analysis.Bundle
	run    services.CommandRunner
	store  *runstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// New validates cfg and returns a Pipeline.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "pipeline", "config required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runner := opts.Runner
	if runner == nil {
		runner = services.ExecRunner
	}
	return &Pipeline{
		cfg:    cfg,
		models: opts.Models,
		run:    runner,
		store:  opts.Store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    now,
	}, nil
}

type stageFunc func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error)

// execute locks dir, opens a ledger run, and runs fn as the named stage.
func (p *Pipeline) execute(ctx context.Context, name string, dir workdir.Dir, source string, fn stageFunc) error {
	lock, err := dir.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			p.logger.Warn("work dir unlock failed", logging.Error(unlockErr))
		}
	}()

	if strings.TrimSpace(source) != "" {
		ctx = services.WithSource(ctx, source)
	}
	run := p.beginRun(ctx, name, source, dir)
	if run != nil {
		ctx = services.WithRunID(ctx, run.ID)
	}

	failures, err := p.step(ctx, name, fn)
	p.finishRun(ctx, run, failures, err)
	return err
}

// step logs the lifecycle of one stage.
func (p *Pipeline) step(ctx context.Context, name string, fn stageFunc) ([]debate.Failure, error) {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, p.logger)

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	failures, err := fn(stageCtx, logger)
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return failures, err
	}
	if len(failures) > 0 {
		logging.WarnWithContext(logger, "stage completed with failed items", "stage_partial",
			logging.Int("failed_items", len(failures)),
			logging.String(logging.FieldImpact, "failed items are listed as missing in the final document"),
			logging.String(logging.FieldErrorHint, "rerun without --keep-going to halt on the first failure"),
		)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("failed_items", len(failures)),
	)
	return failures, nil
}

func (p *Pipeline) beginRun(ctx context.Context, name, source string, dir workdir.Dir) *runstore.Run {
	if p.store == nil {
		return nil
	}
	run, err := p.store.Begin(ctx, name, source, dir.Root)
	if err != nil {
		p.logger.Warn("run ledger unavailable", logging.Error(err))
		return nil
	}
	return run
}

func (p *Pipeline) finishRun(ctx context.Context, run *runstore.Run, failures []debate.Failure, stageErr error) {
	if run == nil {
		return
	}
	// The stage context may already be cancelled; the ledger row should still close.
	ctx = context.WithoutCancel(ctx)
	if err := p.store.RecordFailures(ctx, run.ID, failures); err != nil {
		p.logger.Warn("record stage failures", logging.Error(err))
	}
	status := runstore.StatusSucceeded
	message := ""
	switch {
	case stageErr != nil:
		status = runstore.StatusFailed
		message = stageErr.Error()
	case len(failures) > 0:
		status = runstore.StatusPartial
	}
	if err := p.store.Finish(ctx, run.ID, status, message); err != nil {
		p.logger.Warn("finish run ledger entry", logging.Error(err))
	}
}

func (p *Pipeline) keepGoing() bool {
	return p.cfg.Pipeline.KeepGoing
}

func (p *Pipeline) requireModels(stage string) error {
	if p.models == nil {
		return services.Wrap(services.ErrConfiguration, stage, "models", "no model backends configured", nil)
	}
	return nil
}

func concurrency(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func itemError(stage, item string, err error) error {
	if strings.Contains(err.Error(), item) {
		return err
	}
	return fmt.Errorf("%s %s: %w", stage, item, err)
}
