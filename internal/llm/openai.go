package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/originpoint/internal/util"
)

// wrappedArrayKey holds array payloads, json_schema output must be an object at the root
const wrappedArrayKey = "items"

// OpenAIBackend implements the Backend interface for OpenAI-compatible chat APIs.
// It has no grounding tools; citations are the URLs the model writes in its answer.
type OpenAIBackend struct {
	client *openai.Client
	config Config
}

// NewOpenAIBackend creates a new OpenAI backend
func NewOpenAIBackend(config Config) (*OpenAIBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the backend name
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// IsAvailable checks if the backend is properly configured
func (b *OpenAIBackend) IsAvailable(ctx context.Context) bool {
	// Listing models is the cheapest authenticated call
	_, err := b.client.ListModels(ctx)
	return err == nil
}

// Generate performs one chat completion
func (b *OpenAIBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := pickString(req.Model, b.config.Model, openai.GPT4oMini)
	if strings.HasPrefix(model, "gemini-") {
		// Operation table defaults name Gemini models
		model = pickString(b.config.Model, openai.GPT4oMini)
	}

	maxTokens := pick(req.MaxTokens, b.config.MaxTokens, 1000)

	timeout := time.Duration(b.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openAIUserMessage(req))

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}

	wrapped := false
	if req.Schema != nil {
		schema := req.Schema
		if schema.Type == TypeArray {
			schema = &Schema{
				Type:       TypeObject,
				Properties: map[string]*Schema{wrappedArrayKey: req.Schema},
				Required:   []string{wrappedArrayKey},
			}
			wrapped = true
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   pickString(req.Operation, "response"),
				Schema: schema,
			},
		}
	}

	if req.ReasoningBudget > 0 {
		chatReq.ReasoningEffort = reasoningEffort(req.ReasoningBudget)
		chatReq.Temperature = 0
	}

	resp, err := b.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if wrapped {
		text = unwrapArray(text)
	}

	out := &GenerateResponse{
		Text:       text,
		Model:      pickString(resp.Model, model),
		TokensUsed: resp.Usage.TotalTokens,
	}
	if req.Schema == nil {
		out.Citations = citationsFromText(text)
	}

	return out, nil
}

func openAIUserMessage(req GenerateRequest) openai.ChatCompletionMessage {
	if len(req.Attachments) == 0 {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + att.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(att.Data),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})

	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

// reasoningEffort maps a token budget onto the three effort levels
func reasoningEffort(budget int) string {
	switch {
	case budget >= 12000:
		return "high"
	case budget >= 4000:
		return "medium"
	default:
		return "low"
	}
}

// unwrapArray returns the array under wrappedArrayKey, or the input unchanged
func unwrapArray(text string) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return text
	}
	if items, ok := envelope[wrappedArrayKey]; ok {
		return string(items)
	}
	return text
}
