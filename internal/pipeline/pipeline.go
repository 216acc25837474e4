// Package pipeline assembles the backend, cache, limiter, validator and
// history store from configuration and hands out controllers built on them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"go.uber.org/zap"

	"github.com/ppiankov/originpoint/internal/cache"
	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/grounding"
	"github.com/ppiankov/originpoint/internal/history"
	"github.com/ppiankov/originpoint/internal/llm"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/render"
	"github.com/ppiankov/originpoint/internal/validate"
	"github.com/ppiankov/originpoint/internal/worker"
)

const appName = "originpoint"

// Pipeline owns the long-lived components of one OriginPoint process
type Pipeline struct {
	config    *model.Config
	backend   llm.Backend
	client    *grounding.Client
	profile   grounding.Profile
	validator *validate.Validator // nil when validation is disabled
	history   *history.Store      // nil when history is disabled
	fetcher   *Fetcher
	logger    *zap.Logger
}

// NewPipeline builds the backend named by the configuration and everything on top of it
func NewPipeline(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	backend, err := llm.NewBackend(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.LLM.Provider, err)
	}
	return NewPipelineWithBackend(cfg, backend, logger)
}

// NewPipelineWithBackend builds a pipeline over an existing backend
func NewPipelineWithBackend(cfg *model.Config, backend llm.Backend, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	profile, err := grounding.ProfileFor(cfg.Revision)
	if err != nil {
		return nil, err
	}

	var responseCache cache.Cache = cache.Nop{}
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = filepath.Join(xdg.CacheHome, appName, "responses")
		}
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
		if removed, err := layered.Prune(); err != nil {
			logger.Warn("cache prune failed", zap.String("dir", dir), zap.Error(err))
		} else if removed > 0 {
			logger.Debug("pruned expired cache entries", zap.Int("removed", removed))
		}
		responseCache = layered
	}

	p := &Pipeline{
		config:  cfg,
		backend: backend,
		profile: profile,
		fetcher: NewFetcher(cfg.Validation.Timeout, cfg.Validation.UserAgent, maxDocumentBytes),
		logger:  logger,
	}

	p.client = grounding.NewClient(backend, grounding.Options{
		Models:          cfg.Models,
		ChallengeBudget: cfg.Reasoning.ChallengeBudget,
		Profile:         &profile,
		Cache:           responseCache,
		CacheTTL:        cfg.Cache.MemoryTTL,
		Limiter:         worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		Logger:          logger.Named("grounding"),
	})

	if cfg.Validation.Enabled {
		p.validator = validate.NewValidator(validate.OptionsFromModel(cfg.Validation, cfg.LLM), logger.Named("validate"))
	}

	if cfg.History.Enabled {
		dir := cfg.History.Dir
		if dir == "" {
			dir = filepath.Join(xdg.DataHome, appName)
		}
		store, err := history.Open(dir)
		if err != nil {
			// History is optional, the session still works without it
			logger.Warn("history disabled", zap.String("dir", dir), zap.Error(err))
		} else {
			p.history = store
		}
	}

	logger.Debug("pipeline ready",
		zap.String("backend", backend.Name()),
		zap.String("revision", profile.Name),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("validation", p.validator != nil),
		zap.Bool("history", p.history != nil))

	return p, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *model.Config {
	return p.config
}

// Backend returns the AI backend
func (p *Pipeline) Backend() llm.Backend {
	return p.backend
}

// History returns the history store, nil when disabled
func (p *Pipeline) History() *history.Store {
	return p.history
}

// NewController returns a fresh controller with module selected
func (p *Pipeline) NewController(module model.Module) *controller.Controller {
	opts := controller.Options{
		Profile: &p.profile,
		Module:  module,
		Logger:  p.logger.Named("controller"),
	}
	// Assign only non-nil values so the interfaces stay nil when disabled
	if p.validator != nil {
		opts.Auditor = p.validator
	}
	if p.history != nil {
		opts.Recorder = p.history
	}
	return controller.New(p.client, opts)
}

// Run executes one batch item on a fresh controller
func (p *Pipeline) Run(ctx context.Context, item worker.Item) (controller.Snapshot, error) {
	c := p.NewController(item.Module)
	err := c.Submit(ctx, item.Query)
	return c.Snapshot(), err
}

// LoadDocument reads a document image from a local path or an http(s) URL
func (p *Pipeline) LoadDocument(ctx context.Context, ref string) (model.Document, error) {
	if isRemote(ref) {
		return p.fetcher.FetchWithRetry(ctx, ref)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return model.Document{}, fmt.Errorf("open document: %w", err)
	}
	if info.Size() > maxDocumentBytes {
		return model.Document{}, fmt.Errorf("document %s is larger than %d bytes", ref, maxDocumentBytes)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return model.Document{}, fmt.Errorf("read document: %w", err)
	}
	return model.Document{Name: filepath.Base(ref), Data: data}, nil
}

// RenderReport writes the snapshot to the requested files; empty paths are skipped
func (p *Pipeline) RenderReport(s controller.Snapshot, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := writeFile(jsonPath, func(f *os.File) error { return render.JSON(f, s) }); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if mdPath != "" {
		w := func(f *os.File) error {
			return render.NewMarkdownWriter(f, p.config.Output.IncludeFooter).Write(s)
		}
		if err := writeFile(mdPath, w); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	return nil
}

// Close releases the history store
func (p *Pipeline) Close() error {
	if p.history == nil {
		return nil
	}
	return p.history.Close()
}

func writeFile(path string, write func(*os.File) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return write(f)
}
