package validate

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/originpoint/internal/classify"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/util"
)

const (
	validateMaxRetries = 3

	// maxTitleBytes bounds how much of a page is read looking for <title>
	maxTitleBytes = 256 << 10

	defaultUserAgent = "OriginPoint/0.1 (+https://github.com/ppiankov/originpoint)"
)

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// Options configures a Validator
type Options struct {
	Timeout       time.Duration
	Workers       int
	RespectRobots bool
	UserAgent     string
	HTTPProxy     string
	HTTPSProxy    string
	NoProxy       string
}

// OptionsFromModel converts the validation config block into Options
func OptionsFromModel(cfg model.ValidationConfig, llm model.LLMConfig) Options {
	return Options{
		Timeout:       cfg.Timeout,
		Workers:       cfg.Workers,
		RespectRobots: cfg.RespectRobots,
		UserAgent:     cfg.UserAgent,
		HTTPProxy:     llm.HTTPProxy,
		HTTPSProxy:    llm.HTTPSProxy,
		NoProxy:       llm.NoProxy,
	}
}

// Validator checks that cited sources are reachable
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	robots     *util.RobotsChecker
	logger     *zap.Logger
}

// Report is the outcome of validating one result's sources
type Report struct {
	// Sources are the input sources, titles and categories refined where a page title was read
	Sources []model.GroundingSource
	Checks  []model.SourceCheck
	// Score is round(100 * weighted accessible / total), nil when there was nothing to check
	Score *int
}

// NewValidator creates a new validator
func NewValidator(opts Options, logger *zap.Logger) *Validator {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &Validator{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		maxWorkers: opts.Workers,
		userAgent:  opts.UserAgent,
		logger:     logger,
	}
	if opts.RespectRobots {
		v.robots = util.NewRobotsChecker(opts.UserAgent, opts.Timeout)
	}
	return v
}

// Audit checks every source concurrently, refines titles and categories
// with the classifier, and computes the verification score. It never
// fails: per-source problems are recorded in the checks.
func (v *Validator) Audit(ctx context.Context, sources []model.GroundingSource, classifier *classify.Classifier) Report {
	report := Report{
		Sources: append([]model.GroundingSource(nil), sources...),
		Checks:  make([]model.SourceCheck, len(sources)),
	}
	if len(sources) == 0 {
		return report
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxWorkers)
	for i, src := range sources {
		g.Go(func() error {
			report.Checks[i] = v.checkWithRetry(gctx, src.URI, needsTitle(src))
			return nil
		})
	}
	_ = g.Wait()

	for i, check := range report.Checks {
		if check.PageTitle == "" {
			continue
		}
		report.Sources[i].Title = check.PageTitle
		if classifier == nil {
			continue
		}
		if cat, ok := classifier.Match(check.PageTitle, report.Sources[i].URI); ok {
			report.Sources[i].Category = cat
		}
	}

	score := Score(report.Checks)
	report.Score = &score

	v.logger.Debug("sources audited",
		zap.Int("sources", len(sources)),
		zap.Int("score", score))

	return report
}

// Score weighs accessible sources 1, robots-blocked 0.5 and everything else 0
func Score(checks []model.SourceCheck) int {
	if len(checks) == 0 {
		return 0
	}
	var weighted float64
	for _, c := range checks {
		switch {
		case c.IsAccessible:
			weighted += 1
		case c.BlockedRobots:
			weighted += 0.5
		}
	}
	return int(math.Round(100 * weighted / float64(len(checks))))
}

// needsTitle reports whether the citation title is missing or only a hostname
func needsTitle(src model.GroundingSource) bool {
	title := strings.TrimSpace(src.Title)
	if title == "" || title == "Web Source" || title == "Map Location" {
		return true
	}
	parsed, err := url.Parse(src.URI)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	return strings.EqualFold(strings.TrimPrefix(title, "www."), host)
}

// checkSingle checks one source URI
func (v *Validator) checkSingle(ctx context.Context, uri string, wantTitle bool) model.SourceCheck {
	result := model.SourceCheck{URI: uri}

	if v.robots != nil {
		allowed, err := v.robots.CanFetch(ctx, uri)
		if err != nil {
			result.Error = fmt.Sprintf("robots check: %v", err)
			result.IsDead = true
			return result
		}
		if !allowed {
			result.BlockedRobots = true
			return result
		}
	}

	method := http.MethodHead
	if wantTitle {
		method = http.MethodGet
	}

	resp, err := v.do(ctx, method, uri)
	if err == nil && method == http.MethodHead && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = v.do(ctx, http.MethodGet, uri)
	}
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != uri {
		result.RedirectURL = final
	}

	if wantTitle && result.IsAccessible && resp.Request.Method == http.MethodGet && isHTML(resp) {
		result.PageTitle = extractTitle(io.LimitReader(resp.Body, maxTitleBytes))
	}

	return result
}

func (v *Validator) do(ctx context.Context, method, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)
	return v.httpClient.Do(req)
}

func isHTML(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return ct == "" || strings.Contains(ct, "html")
}

// checkWithRetry retries transient failures with exponential backoff
func (v *Validator) checkWithRetry(ctx context.Context, uri string, wantTitle bool) model.SourceCheck {
	var result model.SourceCheck
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkSingle(ctx, uri, wantTitle)
		if !isRetryable(result) || ctx.Err() != nil {
			return result
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			validateSleepFunc(backoff)
		}
	}
	return result
}

// isRetryable returns true for results that indicate transient failures
func isRetryable(result model.SourceCheck) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" {
		return isRetryableNetworkError(result.Error)
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
