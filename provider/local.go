package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/textloom/textloom"
)

// LocalProvider communicates with a local Ollama-compatible HTTP server.
type LocalProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// LocalConfig holds configuration for the local provider.
type LocalConfig struct {
	BaseURL string        // Server URL (default: "http://localhost:11434")
	Model   string        // Default model (default: "llama3.2")
	Timeout time.Duration // HTTP timeout per attempt (default: 120s)
}

// NewLocalProvider creates a new local HTTP provider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &LocalProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type localRequest struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Format   string         `json:"format,omitempty"`
	Stream   bool           `json:"stream"`
	Options  localOptions   `json:"options,omitempty"`
}

type localResponse struct {
	Message         localMessage `json:"message"`
	Done            bool         `json:"done"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

// Submit sends a batch of texts through the local server and returns one
// result per input text plus token usage.
func (p *LocalProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	if len(req.Texts) == 0 {
		return &Completion{Texts: []string{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(localRequest{
		Model: model,
		Messages: []localMessage{
			{Role: "system", Content: textloom.BuildSystemPrompt(req)},
			{Role: "user", Content: textloom.BuildUserMessage(req)},
		},
		Format: "json",
		Stream: false,
		Options: localOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, &textloom.ProviderError{Message: "marshal local request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &textloom.ProviderError{Message: "create local request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &textloom.ProviderError{
			Message:   "local model request failed",
			Cause:     err,
			Retryable: retryableTransportError(err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &textloom.ProviderError{
			Message:   fmt.Sprintf("local model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var localResp localResponse
	if err := json.NewDecoder(resp.Body).Decode(&localResp); err != nil {
		return nil, &textloom.ProviderError{Message: "decode local response", Cause: err, Retryable: true}
	}

	texts, err := parseBatch(localResp.Message.Content, len(req.Texts))
	if err != nil {
		return nil, err
	}

	return &Completion{
		Texts:     texts,
		TokensIn:  localResp.PromptEvalCount,
		TokensOut: localResp.EvalCount,
	}, nil
}

// Verify LocalProvider implements Provider
var _ Provider = (*LocalProvider)(nil)
