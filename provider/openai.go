package provider

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/textloom/textloom"
)

// OpenAIProvider implements Provider using OpenAI's chat completion API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string // OpenAI API key
	Model   string // Default model when the request carries none (default: "gpt-4o-mini")
	BaseURL string // Custom base URL (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Submit sends a batch of texts through OpenAI and returns one result per
// input text plus token usage.
func (p *OpenAIProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	if len(req.Texts) == 0 {
		return &Completion{Texts: []string{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: textloom.BuildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: textloom.BuildUserMessage(req)},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &textloom.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableOpenAIError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &textloom.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	texts, err := parseBatch(resp.Choices[0].Message.Content, len(req.Texts))
	if err != nil {
		return nil, err
	}

	return &Completion{
		Texts:     texts,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

// isRetryableOpenAIError classifies by HTTP status when the SDK surfaces
// one, otherwise by transport-level symptoms.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	return retryableTransportError(err)
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
