package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ppiankov/originpoint/internal/util"
)

// defaultGeminiModel is used when neither the request nor the config names one
const defaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend implements the Backend interface with the Google GenAI SDK.
// It is the only backend with native search and maps grounding.
type GeminiBackend struct {
	client *genai.Client
	config Config
}

// NewGeminiBackend creates a new Gemini backend
func NewGeminiBackend(config Config) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = strings.TrimSuffix(config.BaseURL, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		client: client,
		config: config,
	}, nil
}

// Name returns the backend name
func (b *GeminiBackend) Name() string {
	return "gemini"
}

// IsAvailable checks if the configured model can be looked up
func (b *GeminiBackend) IsAvailable(ctx context.Context) bool {
	model := pickString(b.config.Model, defaultGeminiModel)
	if _, err := b.client.Models.Get(ctx, model, nil); err != nil {
		return false
	}
	return true
}

// Generate performs one GenerateContent call
func (b *GeminiBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := pickString(req.Model, b.config.Model, defaultGeminiModel)

	timeout := time.Duration(b.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	switch req.Grounding {
	case GroundingSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case GroundingMaps:
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
	}

	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenAISchema(req.Schema)
	}

	maxTokens := pick(req.MaxTokens, b.config.MaxTokens)
	if req.ReasoningBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(req.ReasoningBudget)),
		}
		// Thinking tokens count against the output limit
		if maxTokens > 0 {
			maxTokens += req.ReasoningBudget
		}
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctxWithTimeout, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	out := &GenerateResponse{
		Text:      strings.TrimSpace(resp.Text()),
		Citations: geminiCitations(resp),
		Model:     pickString(resp.ModelVersion, model),
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	return out, nil
}

// geminiCitations extracts web and maps grounding chunks from the first candidate
func geminiCitations(resp *genai.GenerateContentResponse) []Citation {
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}

	var citations []Citation
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil {
			continue
		}
		if chunk.Web != nil {
			citations = append(citations, Citation{
				Title:  pickString(chunk.Web.Title, "Web Source"),
				URI:    chunk.Web.URI,
				Origin: OriginWeb,
			})
		}
		if chunk.Maps != nil {
			citations = append(citations, Citation{
				Title:  pickString(chunk.Maps.Title, "Map Location"),
				URI:    chunk.Maps.URI,
				Origin: OriginMaps,
			})
		}
	}
	return citations
}

// toGenAISchema converts the neutral schema to the SDK representation
func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}

	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	out.Items = toGenAISchema(s.Items)

	return out
}
