package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Backend defines the interface for generative-AI backends
type Backend interface {
	// Name returns the backend name
	Name() string

	// Generate performs a single completion round trip
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the backend is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// GroundingMode selects the external grounding capability for a call
type GroundingMode string

const (
	GroundingNone   GroundingMode = ""
	GroundingSearch GroundingMode = "search" // Web search grounding
	GroundingMaps   GroundingMode = "maps"   // Location grounding
)

// CitationOrigin tells which grounding capability produced a citation
type CitationOrigin string

const (
	OriginWeb  CitationOrigin = "web"
	OriginMaps CitationOrigin = "maps"
)

// GenerateRequest contains the input for one backend call
type GenerateRequest struct {
	// Operation names the use case, used for logging and cache keys
	Operation string

	// Model is the specific model to use (backend-specific)
	Model string

	// System is an optional system instruction
	System string

	// Prompt is the user instruction
	Prompt string

	// Grounding requests citations from an external capability
	Grounding GroundingMode

	// Schema, when set, requests JSON output of this shape
	Schema *Schema

	// ReasoningBudget bounds the reasoning effort in tokens (0 = backend default)
	ReasoningBudget int

	// MaxTokens limits the response length
	MaxTokens int

	// Attachments are inline binary parts sent before the prompt (document images)
	Attachments []Attachment
}

// Attachment is an inline binary input
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Citation is one grounding reference returned by the backend
type Citation struct {
	Title  string
	URI    string
	Origin CitationOrigin
}

// GenerateResponse contains the backend output
type GenerateResponse struct {
	// Text is the generated text (JSON when a schema was requested)
	Text string `json:"text"`

	// Citations are the grounding references, in backend order
	Citations []Citation `json:"citations,omitempty"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"tokens_used"`
}

// Config holds backend configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model is the fallback model when a request names none
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, proxies, test servers)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Timeout:   120,
		MaxTokens: 8192,
	}
}

// schemaInstruction renders a schema as a prompt suffix for backends
// without native structured output
func schemaInstruction(schema *Schema) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\n\nRespond ONLY with JSON (no prose, no code fences) matching this JSON schema:\n%s", string(data))
}

// Helper functions

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"']+`)

// extractURLs extracts all URLs from text, deduplicated, in order of appearance
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		// Clean up trailing punctuation
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}

// citationsFromText derives web citations from URLs mentioned in the text,
// used by backends that have no grounding metadata
func citationsFromText(text string) []Citation {
	urls := extractURLs(text)
	if len(urls) == 0 {
		return nil
	}
	citations := make([]Citation, 0, len(urls))
	for _, u := range urls {
		citations = append(citations, Citation{Title: hostOf(u), URI: u, Origin: OriginWeb})
	}
	return citations
}

func hostOf(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

func pick(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
