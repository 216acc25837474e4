// Package grounding wraps the generative-AI backend with one operation
// per OriginPoint use case: it assembles prompts, declares response
// schemas and normalizes responses into model types.
package grounding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/originpoint/internal/cache"
	"github.com/ppiankov/originpoint/internal/llm"
	"github.com/ppiankov/originpoint/internal/model"
)

// Operation names, used in errors, logs and cache keys
const (
	OpSearch    = "search"
	OpMap       = "map"
	OpAudit     = "audit"
	OpConflicts = "conflicts"
	OpVisualize = "visualize"
	OpChallenge = "challenge"
	OpSummarize = "summarize"
	OpScan      = "scan"
)

// Limiter throttles backend calls per key (the model id)
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Options configures a Client. Zero values fall back to the built-in defaults.
type Options struct {
	Models          model.ModelsConfig
	ChallengeBudget int
	Profile         *Profile
	Cache           cache.Cache
	CacheTTL        time.Duration
	Limiter         Limiter
	Logger          *zap.Logger
}

// Client performs grounded queries. It holds no per-query state and is
// safe for concurrent use.
type Client struct {
	backend  llm.Backend
	models   model.ModelsConfig
	budget   int
	profile  Profile
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  Limiter
	logger   *zap.Logger
}

// NewClient creates a client over the given backend
func NewClient(backend llm.Backend, opts Options) *Client {
	defaults := model.DefaultConfig()

	models := opts.Models
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&models.Search, defaults.Models.Search)
	fill(&models.Map, defaults.Models.Map)
	fill(&models.Audit, defaults.Models.Audit)
	fill(&models.Conflicts, defaults.Models.Conflicts)
	fill(&models.Visualize, defaults.Models.Visualize)
	fill(&models.Challenge, defaults.Models.Challenge)
	fill(&models.Summarize, defaults.Models.Summarize)
	fill(&models.Scan, defaults.Models.Scan)

	budget := opts.ChallengeBudget
	if budget <= 0 {
		budget = defaults.Reasoning.ChallengeBudget
	}
	if budget > model.MaxReasoningBudget {
		budget = model.MaxReasoningBudget
	}

	profile := Archival()
	if opts.Profile != nil {
		profile = *opts.Profile
	}

	c := &Client{
		backend:  backend,
		models:   models,
		budget:   budget,
		profile:  profile,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
	if c.cache == nil {
		c.cache = cache.Nop{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Profile returns the revision profile the client was built with
func (c *Client) Profile() Profile {
	return c.profile
}

// SearchRecords runs a web-grounded records search
func (c *Client) SearchRecords(ctx context.Context, query string) (*model.AnalysisResult, error) {
	return c.grounded(ctx, OpSearch, c.models.Search, llm.GroundingSearch, c.profile.Prompts.Search, "query", query)
}

// MapProperty runs a maps-grounded property lookup
func (c *Client) MapProperty(ctx context.Context, location string) (*model.AnalysisResult, error) {
	return c.grounded(ctx, OpMap, c.models.Map, llm.GroundingMaps, c.profile.Prompts.Map, "location", location)
}

// GroundingAudit checks a claim against web sources
func (c *Client) GroundingAudit(ctx context.Context, claim string) (*model.AnalysisResult, error) {
	return c.grounded(ctx, OpAudit, c.models.Audit, llm.GroundingSearch, c.profile.Prompts.Audit, "claim", claim)
}

func (c *Client) grounded(ctx context.Context, op, modelID string, mode llm.GroundingMode, template, field, input string) (*model.AnalysisResult, error) {
	input, err := requireText(field, input)
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation: op,
		Model:     modelID,
		System:    c.profile.Prompts.System,
		Prompt:    render(template, input),
		Grounding: mode,
	}, true)
	if err != nil {
		return nil, err
	}

	return &model.AnalysisResult{
		Text:    resp.Text,
		Sources: normalizeSources(resp.Citations, c.profile.Classifier),
	}, nil
}

// DetectConflicts asks for a structured list of record discrepancies.
// The batch is returned whole or not at all.
func (c *Client) DetectConflicts(ctx context.Context, query string) ([]model.Conflict, error) {
	query, err := requireText("query", query)
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation: OpConflicts,
		Model:     c.models.Conflicts,
		System:    c.profile.Prompts.System,
		Prompt:    render(c.profile.Prompts.Conflicts, query),
		Schema:    conflictSchema,
	}, true)
	if err != nil {
		return nil, err
	}

	conflicts, err := parseConflicts(resp.Text)
	if err != nil {
		// A cached payload that fails to parse must not be served again
		_ = c.cache.Delete(c.cacheKey(OpConflicts, c.models.Conflicts, render(c.profile.Prompts.Conflicts, query)))
		return nil, &SchemaParseError{Operation: OpConflicts, Payload: resp.Text, Err: err}
	}
	return conflicts, nil
}

// GenerateVisualData asks for a timeline and lineage map. A payload that
// does not parse degrades to empty data; backend failures still error.
func (c *Client) GenerateVisualData(ctx context.Context, query string) (*model.VisualizationData, error) {
	query, err := requireText("query", query)
	if err != nil {
		return nil, err
	}

	prompt := render(c.profile.Prompts.Visualize, query)
	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation: OpVisualize,
		Model:     c.models.Visualize,
		System:    c.profile.Prompts.System,
		Prompt:    prompt,
		Schema:    visualizationSchema,
	}, true)
	if err != nil {
		return nil, err
	}

	data, err := parseVisualization(resp.Text)
	if err != nil {
		c.logger.Warn("visualization payload did not parse, returning empty data",
			zap.Error(err),
			zap.Int("payload_bytes", len(resp.Text)))
		_ = c.cache.Delete(c.cacheKey(OpVisualize, c.models.Visualize, prompt))
		return model.EmptyVisualization(), nil
	}
	return data, nil
}

// SubmitChallenge re-analyzes a disputed connection against new evidence
// with the configured reasoning budget. Challenges are never cached.
func (c *Client) SubmitChallenge(ctx context.Context, target, evidence string) (string, error) {
	target, err := requireText("target", target)
	if err != nil {
		return "", err
	}
	evidence, err = requireText("evidence", evidence)
	if err != nil {
		return "", err
	}

	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation:       OpChallenge,
		Model:           c.models.Challenge,
		System:          c.profile.Prompts.System,
		Prompt:          fmt.Sprintf(c.profile.Prompts.Challenge, target, evidence),
		ReasoningBudget: c.budget,
	}, false)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// FastSummarize condenses prior result text
func (c *Client) FastSummarize(ctx context.Context, text string) (string, error) {
	text, err := requireText("text", text)
	if err != nil {
		return "", err
	}

	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation: OpSummarize,
		Model:     c.models.Summarize,
		Prompt:    render(c.profile.Prompts.Summarize, text),
	}, true)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ScanDocument extracts the facts of a photographed record
func (c *Client) ScanDocument(ctx context.Context, doc model.Document) (*model.AnalysisResult, error) {
	if len(doc.Data) == 0 {
		return nil, &ValidationError{Field: "document"}
	}
	mime := doc.DetectedMIMEType()
	if !strings.HasPrefix(mime, "image/") {
		return nil, &ValidationError{Field: "document", Reason: "unsupported type " + mime + ", expected an image"}
	}

	metadata := documentMetadata(doc.Data)
	c.logger.Debug("document metadata", zap.String("document", doc.Name), zap.Strings("exif", metadata))

	resp, err := c.call(ctx, llm.GenerateRequest{
		Operation:   OpScan,
		Model:       c.models.Scan,
		System:      c.profile.Prompts.System,
		Prompt:      withMetadata(c.profile.Prompts.Scan, metadata),
		Attachments: []llm.Attachment{{MIMEType: mime, Data: doc.Data}},
	}, false)
	if err != nil {
		return nil, err
	}

	return &model.AnalysisResult{
		Text:    resp.Text,
		Sources: normalizeSources(resp.Citations, c.profile.Classifier),
	}, nil
}

// call performs one backend round trip through the cache and limiter
func (c *Client) call(ctx context.Context, req llm.GenerateRequest, cacheable bool) (*llm.GenerateResponse, error) {
	var key string
	if cacheable {
		key = c.cacheKey(req.Operation, req.Model, req.Prompt)
		var cached llm.GenerateResponse
		if cache.GetJSON(c.cache, key, &cached) {
			c.logger.Debug("cache hit", zap.String("operation", req.Operation), zap.String("model", req.Model))
			return &cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.Model); err != nil {
			return nil, &UpstreamError{Operation: req.Operation, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.backend.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("backend call failed",
			zap.String("operation", req.Operation),
			zap.String("backend", c.backend.Name()),
			zap.String("model", req.Model),
			zap.Error(err))
		return nil, &UpstreamError{Operation: req.Operation, Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, &UpstreamError{Operation: req.Operation, Err: errEmptyPayload}
	}

	c.logger.Debug("backend call",
		zap.String("operation", req.Operation),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed),
		zap.Int("citations", len(resp.Citations)),
		zap.Duration("elapsed", time.Since(start)))

	if cacheable {
		if err := cache.SetJSON(c.cache, key, resp, c.cacheTTL); err != nil {
			c.logger.Warn("cache write failed", zap.String("operation", req.Operation), zap.Error(err))
		}
	}
	return resp, nil
}

func (c *Client) cacheKey(op, modelID, prompt string) string {
	return cache.CacheKey(op, c.backend.Name(), modelID, c.profile.Name, prompt)
}

func requireText(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &ValidationError{Field: field}
	}
	return trimmed, nil
}
