package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"debatelens/internal/analysis"
	"debatelens/internal/config"
	"debatelens/internal/logging"
	"debatelens/internal/pipeline"
	"debatelens/internal/runstore"
	"debatelens/internal/workdir"
)

type commandContext struct {
	configFlag *string
	keepGoing  *bool
	jsonOutput *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, keepGoing, jsonOutput *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		keepGoing:  keepGoing,
		jsonOutput: jsonOutput,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.keepGoing != nil && *c.keepGoing {
			cfg.Pipeline.KeepGoing = true
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) wantJSON() bool {
	return c.jsonOutput != nil && *c.jsonOutput
}

// session bundles what one stage command needs and releases it on close.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runstore.Store
	pipeline *pipeline.Pipeline
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession builds a pipeline over cfg. Model backends are only constructed
// when withModels is set so that fetch, slice and merge work without them.
func (c *commandContext) openSession(cfg *config.Config, withModels bool) (*session, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	s := &session{cfg: cfg, logger: logger, store: store}

	opts := pipeline.Options{Store: store, Logger: logger}
	if withModels {
		models, err := analysis.New(cfg, nil)
		if err != nil {
			s.close()
			return nil, err
		}
		opts.Models = models
	}
	p, err := pipeline.New(cfg, opts)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

// resolveDir returns the explicit --dir, or a directory under the work root
// derived from source.
func resolveDir(cfg *config.Config, dirFlag, source string) (workdir.Dir, error) {
	if strings.TrimSpace(dirFlag) != "" {
		return workdir.New(dirFlag)
	}
	return workdir.ForSource(cfg.Paths.WorkRoot, source)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
