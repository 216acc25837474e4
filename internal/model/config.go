package model

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete OriginPoint configuration
type Config struct {
	Revision     string             `yaml:"revision" mapstructure:"revision"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Models       ModelsConfig       `yaml:"models" mapstructure:"models"`
	Reasoning    ReasoningConfig    `yaml:"reasoning" mapstructure:"reasoning"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Validation   ValidationConfig   `yaml:"validation" mapstructure:"validation"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	History      HistoryConfig      `yaml:"history" mapstructure:"history"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// LLMConfig selects and configures the AI backend
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds per backend call
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ModelsConfig is the fixed operation to model mapping
type ModelsConfig struct {
	Search    string `yaml:"search" mapstructure:"search"`
	Map       string `yaml:"map" mapstructure:"map"`
	Audit     string `yaml:"audit" mapstructure:"audit"`
	Conflicts string `yaml:"conflicts" mapstructure:"conflicts"`
	Visualize string `yaml:"visualize" mapstructure:"visualize"`
	Challenge string `yaml:"challenge" mapstructure:"challenge"`
	Summarize string `yaml:"summarize" mapstructure:"summarize"`
	Scan      string `yaml:"scan" mapstructure:"scan"`
}

// ReasoningConfig bounds the reasoning effort of the challenge path
type ReasoningConfig struct {
	ChallengeBudget int `yaml:"challenge_budget" mapstructure:"challenge_budget"` // tokens
}

// MaxReasoningBudget is the upper bound accepted for ChallengeBudget
const MaxReasoningBudget = 32768

// CacheConfig configures the backend response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"` // empty = XDG cache dir
}

// ValidationConfig configures source link checks for audits
type ValidationConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// RateLimitingConfig limits backend calls per model in batch mode
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// HistoryConfig configures the interaction history store
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir,omitempty" mapstructure:"dir"` // empty = XDG data dir
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// OutputConfig configures terminal and file rendering
type OutputConfig struct {
	Style         string `yaml:"style" mapstructure:"style"` // glamour style: auto, dark, light, notty
	Width         int    `yaml:"width" mapstructure:"width"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Revision: "", // empty = build-time default revision
		LLM: LLMConfig{
			Provider:  "gemini",
			Timeout:   120,
			MaxTokens: 8192,
		},
		Models: ModelsConfig{
			Search:    "gemini-3-flash-preview",
			Map:       "gemini-2.5-flash",
			Audit:     "gemini-3-flash-preview",
			Conflicts: "gemini-3-pro-preview",
			Visualize: "gemini-3-flash-preview",
			Challenge: "gemini-3-pro-preview",
			Summarize: "gemini-2.5-flash-lite",
			Scan:      "gemini-3-pro-preview",
		},
		Reasoning: ReasoningConfig{
			ChallengeBudget: 15000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Validation: ValidationConfig{
			Enabled:       true,
			Timeout:       10 * time.Second,
			Workers:       8,
			RespectRobots: true,
			UserAgent:     "OriginPoint/0.1 (+https://github.com/ppiankov/originpoint)",
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Output: OutputConfig{
			Style:         "auto",
			Width:         100,
			IncludeFooter: true,
		},
	}
}

// Validate checks the configuration for values the rest of the code cannot handle
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "google", "openai", "anthropic", "claude", "ollama":
	default:
		return fmt.Errorf("unknown llm.provider: %q (supported: gemini, openai, anthropic, ollama)", c.LLM.Provider)
	}
	switch strings.ToLower(c.Revision) {
	case "", "classic", "archival":
	default:
		return fmt.Errorf("unknown revision: %q (supported: classic, archival)", c.Revision)
	}
	if c.Reasoning.ChallengeBudget < 1 || c.Reasoning.ChallengeBudget > MaxReasoningBudget {
		return fmt.Errorf("reasoning.challenge_budget must be between 1 and %d, got %d", MaxReasoningBudget, c.Reasoning.ChallengeBudget)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.Cache.MemoryTTL < 0 || c.Cache.DiskTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	if c.Validation.Workers < 0 {
		return fmt.Errorf("validation.workers must not be negative")
	}
	if c.RateLimiting.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limiting.requests_per_second must not be negative")
	}
	return nil
}

// Redacted returns a copy safe to print, with the API key masked
func (c *Config) Redacted() *Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return &out
}
